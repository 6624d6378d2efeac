// ABOUTME: Tests for client routing, middleware chaining, and error classification.
// ABOUTME: Uses an in-package fake ProviderAdapter; no network calls.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeAdapter records requests and returns a canned response or error.
type fakeAdapter struct {
	name     string
	lastReq  Request
	response *Response
	err      error
	calls    int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &Response{
		ID:           "resp-1",
		Model:        req.Model,
		Provider:     f.name,
		Message:      AssistantMessage("ok"),
		FinishReason: FinishReason{Reason: FinishStop},
	}, nil
}

func (f *fakeAdapter) Close() error { return nil }

func TestClientRoutesToDefaultProvider(t *testing.T) {
	a := &fakeAdapter{name: "alpha"}
	c := NewClient(WithProvider("alpha", a))

	resp, err := c.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Provider != "alpha" {
		t.Errorf("Provider = %q, want alpha", resp.Provider)
	}
	if a.calls != 1 {
		t.Errorf("adapter calls = %d, want 1", a.calls)
	}
}

func TestClientRoutesByRequestProvider(t *testing.T) {
	a := &fakeAdapter{name: "alpha"}
	b := &fakeAdapter{name: "beta"}
	c := NewClient(WithProvider("alpha", a), WithProvider("beta", b))

	_, err := c.Complete(context.Background(), Request{Provider: "beta", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if b.calls != 1 || a.calls != 0 {
		t.Errorf("calls alpha=%d beta=%d, want 0/1", a.calls, b.calls)
	}
}

func TestClientUnknownProvider(t *testing.T) {
	c := NewClient(WithProvider("alpha", &fakeAdapter{name: "alpha"}))

	_, err := c.Complete(context.Background(), Request{Provider: "missing"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestClientNoProviders(t *testing.T) {
	c := NewClient()
	_, err := c.Complete(context.Background(), Request{})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(tag string) Middleware {
		return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
			order = append(order, tag+"-in")
			resp, err := next(ctx, req)
			order = append(order, tag+"-out")
			return resp, err
		}
	}

	c := NewClient(
		WithProvider("p", &fakeAdapter{name: "p"}),
		WithMiddleware(mw("outer"), mw("inner")),
	)

	if _, err := c.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	want := []string{"outer-in", "inner-in", "inner-out", "outer-out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRegisterProviderSetsDefault(t *testing.T) {
	c := NewClient()
	c.RegisterProvider("solo", &fakeAdapter{name: "solo"})

	resp, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Provider != "solo" {
		t.Errorf("Provider = %q, want solo", resp.Provider)
	}
}

func TestRetryRetriesRetryableErrors(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 1.0,
	}

	err := Retry(context.Background(), policy, func() error {
		attempts++
		if attempts < 3 {
			return &ServerError{ProviderError: ProviderError{
				SDKError:  SDKError{Message: "boom"},
				Retryable: true,
			}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	policy := DefaultRetryPolicy()
	policy.BaseDelay = time.Millisecond

	err := Retry(context.Background(), policy, func() error {
		attempts++
		return &AuthenticationError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "bad key"},
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{403, false},
		{422, false},
		{429, true},
		{500, true},
		{503, true},
		{418, true}, // unknown codes treated as transient
	}

	for _, tc := range tests {
		err := ErrorFromStatusCode(tc.status, "msg", "prov", "", nil, nil)
		type retryable interface {
			IsRetryable() bool
		}
		r, ok := err.(retryable)
		if !ok {
			t.Fatalf("status %d: error %T lacks IsRetryable", tc.status, err)
		}
		if r.IsRetryable() != tc.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tc.status, r.IsRetryable(), tc.retryable)
		}
	}
}

func TestRateLimitErrorRetryAfterHint(t *testing.T) {
	ra := 5.0
	err := &RateLimitError{ProviderError: ProviderError{
		SDKError:   SDKError{Message: "slow down"},
		Retryable:  true,
		RetryAfter: &ra,
	}}

	delay := applyRetryAfter(err, time.Second)
	if delay != 5*time.Second {
		t.Errorf("delay = %v, want 5s", delay)
	}
}

func TestExtractSystemMessages(t *testing.T) {
	messages := []Message{
		SystemMessage("You are the referee."),
		UserMessage("Hello"),
		SystemMessage("Be fair."),
		AssistantMessage("Hi"),
	}

	systemText, remaining := ExtractSystemMessages(messages)
	if systemText != "You are the referee.\nBe fair." {
		t.Errorf("systemText = %q", systemText)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d messages, want 2", len(remaining))
	}
	if remaining[0].Role != RoleUser || remaining[1].Role != RoleAssistant {
		t.Errorf("remaining roles = %q, %q", remaining[0].Role, remaining[1].Role)
	}
}

func TestMessageHelpers(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			TextPart("thinking "),
			ToolCallPart("tc1", "lookup", []byte(`{"q":"x"}`)),
			TextPart("done"),
		},
	}

	if got := msg.TextContent(); got != "thinking done" {
		t.Errorf("TextContent = %q", got)
	}
	calls := msg.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "lookup" {
		t.Fatalf("ToolCalls = %+v", calls)
	}
	args, err := calls[0].ArgumentsMap()
	if err != nil {
		t.Fatalf("ArgumentsMap: %v", err)
	}
	if args["q"] != "x" {
		t.Errorf("args = %v", args)
	}
}
