// ABOUTME: OpenAI Chat Completions provider adapter with base URL support for compatible gateways.
// ABOUTME: Converts the unified Request/Response model to openai-go params and maps API failures to typed errors.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements ProviderAdapter using the OpenAI Chat Completions
// API. A custom base URL points it at any OpenAI-compatible service
// (OpenRouter, Cerebras, a local gateway).
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
}

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL      string
	defaultModel string
}

// WithBaseURL points the adapter at an OpenAI-compatible endpoint. An empty
// value leaves the SDK default in place.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = baseURL
	}
}

// WithDefaultModel sets the model used when a Request leaves Model empty.
func WithDefaultModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.defaultModel = model
	}
}

// NewOpenAIAdapter creates an adapter for the Chat Completions endpoint.
func NewOpenAIAdapter(apiKey string, opts ...OpenAIOption) *OpenAIAdapter {
	cfg := openAIConfig{defaultModel: "gpt-5.2"}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(reqOpts...),
		defaultModel: cfg.defaultModel,
	}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) Close() error { return nil }

// Complete sends the request and returns the unified response.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = a.defaultModel
	}

	params, err := a.convertRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	return a.convertResponse(resp), nil
}

// convertRequest converts a unified Request to ChatCompletionNewParams.
func (a *OpenAIAdapter) convertRequest(req Request) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}

	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.TextContent()))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.TextContent()))
		case RoleAssistant:
			messages = append(messages, convertAssistantMessage(msg))
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					messages = append(messages, openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ToolCallID))
				}
			}
		}
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			var schema map[string]any
			if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
				return params, &ConfigurationError{
					SDKError: SDKError{
						Message: fmt.Sprintf("invalid parameters schema for tool %q", tool.Name),
						Cause:   err,
					},
				}
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(schema),
				},
			})
		}
		params.Tools = tools
	}

	return params, nil
}

// convertAssistantMessage handles assistant turns, including prior tool calls
// being replayed back to the model.
func convertAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	textContent := msg.TextContent()

	for _, part := range msg.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   part.ToolCall.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.ToolCall.Name,
					Arguments: string(part.ToolCall.Arguments),
				},
			})
		}
	}

	if len(toolCalls) > 0 {
		asstMsg := openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: toolCalls,
		}
		if textContent != "" {
			asstMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.String(textContent),
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg}
	}

	return openai.AssistantMessage(textContent)
}

// convertResponse converts an openai ChatCompletion to the unified Response.
func (a *OpenAIAdapter) convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.Name(),
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}

	if len(resp.Choices) == 0 {
		result.FinishReason = FinishReason{Reason: FinishOther}
		return result
	}

	choice := resp.Choices[0]

	switch choice.FinishReason {
	case "stop":
		result.FinishReason = FinishReason{Reason: FinishStop, Raw: choice.FinishReason}
	case "tool_calls":
		result.FinishReason = FinishReason{Reason: FinishToolCalls, Raw: choice.FinishReason}
	case "length":
		result.FinishReason = FinishReason{Reason: FinishLength, Raw: choice.FinishReason}
	default:
		result.FinishReason = FinishReason{Reason: FinishOther, Raw: choice.FinishReason}
	}

	if choice.Message.Content != "" {
		result.Message.Content = append(result.Message.Content, TextPart(choice.Message.Content))
	}

	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			log.Printf("component=llm action=tool_call_args_invalid tool=%s", tc.Function.Name)
			args = json.RawMessage("{}")
		}
		result.Message.Content = append(result.Message.Content, ToolCallPart(tc.ID, tc.Function.Name, args))
	}

	return result
}

// mapOpenAIError converts openai-go SDK errors into the typed hierarchy.
func mapOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return ErrorFromStatusCode(apierr.StatusCode, apierr.Error(), "openai", "", nil, nil)
	}
	return &NetworkError{SDKError: SDKError{Message: "openai request failed", Cause: err}}
}

var _ ProviderAdapter = (*OpenAIAdapter)(nil)
