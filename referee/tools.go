// ABOUTME: Tool registry for the narrator loop and the rules query tool definition.
// ABOUTME: Tools return display strings, never errors, because they execute inside an LLM reasoning step.

package referee

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/2389-research/arbiter/llm"
)

// RegisteredTool pairs a tool definition with its execute function.
type RegisteredTool struct {
	Definition llm.ToolDefinition
	Execute    func(args map[string]any) string
}

// ToolRegistry is a thread-safe collection of narrator tools.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*RegisteredTool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(tool *RegisteredTool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition.Name] = tool
	return nil
}

// Get returns the named tool, or nil.
func (r *ToolRegistry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions for an LLM request.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	return defs
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// RulesQuerier answers a rules lookup as a display string.
type RulesQuerier interface {
	Query(query string, limit int) string
}

var rulesQuerySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Rule, spell, item, or condition to look up. A bare name triggers exact lookup; longer questions use ranked search."
		},
		"limit": {
			"type": "integer",
			"description": "Maximum number of rules to return, 1 to 10. Defaults to 3."
		}
	},
	"required": ["query"]
}`)

// NewRulesQueryTool wraps a rules querier as the query_rules_database tool.
func NewRulesQueryTool(querier RulesQuerier) *RegisteredTool {
	return &RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "query_rules_database",
			Description: "Look up game rules, spells, items, and conditions. Results are cached on the active turn for later reference.",
			Parameters:  rulesQuerySchema,
		},
		Execute: func(args map[string]any) string {
			query, _ := args["query"].(string)
			limit := 3
			if v, ok := args["limit"].(float64); ok {
				limit = int(v)
			}
			return querier.Query(query, limit)
		},
	}
}
