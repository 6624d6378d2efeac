// ABOUTME: ProviderAdapter interface that concrete LLM provider integrations implement.
// ABOUTME: Adapters translate the unified Request/Response model to provider-specific wire formats.

package llm

import (
	"context"
	"strings"
)

// ProviderAdapter is the interface that each provider integration implements.
// Adapters are responsible for translating between the unified types and the
// provider's own API, and for mapping provider failures onto the error
// hierarchy in this package.
type ProviderAdapter interface {
	// Name returns the provider's registry name (e.g. "openai", "mux").
	Name() string

	// Complete sends a completion request and blocks until the full response
	// is available or ctx is cancelled.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Close releases any resources held by the adapter.
	Close() error
}

// ExtractSystemMessages separates system role messages from the rest. The
// text of all system messages is concatenated (joined by newlines) for
// providers that take a single system field.
func ExtractSystemMessages(messages []Message) (systemText string, remaining []Message) {
	var systemParts []string

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			text := msg.TextContent()
			if text != "" {
				systemParts = append(systemParts, text)
			}
		} else {
			remaining = append(remaining, msg)
		}
	}

	return strings.Join(systemParts, "\n"), remaining
}
