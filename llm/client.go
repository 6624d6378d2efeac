// ABOUTME: Client with provider routing and a middleware chain for LLM calls.
// ABOUTME: NewClient with functional options, FromEnv construction, and adapter lifecycle management.

package llm

import (
	"context"
	"fmt"
	"os"
)

// Middleware wraps an LLM call, enabling request/response transformation,
// logging, and other cross-cutting concerns. Middleware executes in
// registration order for requests and reverse order for responses.
type Middleware func(ctx context.Context, req Request, next NextFunc) (*Response, error)

// NextFunc continues the middleware chain.
type NextFunc func(ctx context.Context, req Request) (*Response, error)

// Client routes completion requests to registered provider adapters and
// applies the middleware chain around each call.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithProvider registers an adapter under the given name. The first provider
// registered becomes the default unless one has been set explicitly.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
		if c.defaultProvider == "" {
			c.defaultProvider = name
		}
	}
}

// WithDefaultProvider sets the provider used when a Request leaves Provider empty.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends middleware to the client's chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient creates a Client with the given options applied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromEnv builds a Client by detecting API keys in the environment.
// OPENAI_API_KEY wires the OpenAI-compatible adapter (honoring
// OPENAI_BASE_URL when set); MUX_API_KEY wires the mux adapter. The first
// detected provider becomes the default. Returns a ConfigurationError when
// no keys are present.
func FromEnv() (*Client, error) {
	var opts []ClientOption

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		adapter := NewOpenAIAdapter(key, WithBaseURL(os.Getenv("OPENAI_BASE_URL")))
		opts = append(opts, WithProvider("openai", adapter))
	}
	if key := os.Getenv("MUX_API_KEY"); key != "" {
		adapter, err := NewMuxAdapter(key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithProvider("mux", adapter))
	}

	if len(opts) == 0 {
		return nil, &ConfigurationError{
			SDKError: SDKError{
				Message: "no API keys found in environment (checked OPENAI_API_KEY, MUX_API_KEY)",
			},
		}
	}

	return NewClient(opts...), nil
}

// resolveProvider picks the adapter for the request, falling back to the
// default provider when the request does not name one.
func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{
			SDKError: SDKError{
				Message: "no provider specified and no default provider configured",
			},
		}
	}

	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{
			SDKError: SDKError{
				Message: fmt.Sprintf("provider %q not registered", name),
			},
		}
	}
	return adapter, nil
}

// Complete sends a request through the middleware chain and on to the
// resolved provider adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	handler := func(ctx context.Context, req Request) (*Response, error) {
		adapter, err := c.resolveProvider(req)
		if err != nil {
			return nil, err
		}
		return adapter.Complete(ctx, req)
	}

	// Wrap in reverse order so the first registered middleware is outermost.
	chain := handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := chain
		chain = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}

	return chain(ctx, req)
}

// RegisterProvider adds or replaces an adapter on the client. If no default
// is set, the new provider becomes the default.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// Close shuts down all registered adapters, collecting any errors.
func (c *Client) Close() error {
	var errs []error
	for name, adapter := range c.providers {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		combined := errs[0]
		for _, e := range errs[1:] {
			combined = fmt.Errorf("%w; %v", combined, e)
		}
		return combined
	}
	return nil
}
