// ABOUTME: The engine builder: wires the turn manager, orchestrator, summarizer, and rules tool together.
// ABOUTME: Exposes the session-facing operations that the TUI and HTTP surfaces drive.

package referee

import (
	"context"
	"fmt"

	"github.com/2389-research/arbiter/engine"
	"github.com/2389-research/arbiter/extract"
	"github.com/2389-research/arbiter/llm"
	"github.com/2389-research/arbiter/rules"
)

// CommandApplier receives the merged extraction result after each
// extraction run. Character-state storage stays outside the engine; this
// hook is how a caller applies the ordered commands to its own store.
type CommandApplier func(result extract.ExtractionResult)

// Engine is one referee session: a turn tree, the agents that read and
// condense it, and the rules tool the narrator consults.
type Engine struct {
	cfg          Config
	client       *llm.Client
	manager      *engine.TurnManager
	orchestrator *extract.StateExtractionOrchestrator
	tools        *ToolRegistry
	querier      RulesQuerier
	applier      CommandApplier
}

// Option configures an Engine at construction.
type Option func(*engineOptions)

type engineOptions struct {
	summarizer   engine.Summarizer
	orchestrator *extract.StateExtractionOrchestrator
	applier      CommandApplier
	extraTools   []*RegisteredTool
}

// WithSummarizer replaces the LLM summarizer, e.g. with a fake in tests.
func WithSummarizer(s engine.Summarizer) Option {
	return func(o *engineOptions) { o.summarizer = s }
}

// WithOrchestrator replaces the default orchestrator built from the client.
func WithOrchestrator(orch *extract.StateExtractionOrchestrator) Option {
	return func(o *engineOptions) { o.orchestrator = orch }
}

// WithCommandApplier sets the hook invoked with each extraction result.
func WithCommandApplier(applier CommandApplier) Option {
	return func(o *engineOptions) { o.applier = applier }
}

// WithTool registers an additional narrator tool.
func WithTool(tool *RegisteredTool) Option {
	return func(o *engineOptions) { o.extraTools = append(o.extraTools, tool) }
}

// NewEngine builds a session engine. client may be nil when every LLM-backed
// component is overridden through options; store may be nil to run without
// the rules tool.
func NewEngine(cfg Config, client *llm.Client, store rules.RuleStore, opts ...Option) (*Engine, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	summarizer := o.summarizer
	if summarizer == nil && client != nil {
		summarizer = &LLMSummarizer{
			Client:      client,
			Provider:    cfg.Provider,
			Model:       cfg.Models.Summarizer,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}
	}

	var managerOpts []engine.ManagerOption
	if summarizer != nil {
		managerOpts = append(managerOpts, engine.WithSummarizer(summarizer))
	}
	manager := engine.NewTurnManager(managerOpts...)

	orchestrator := o.orchestrator
	if orchestrator == nil {
		if client == nil {
			return nil, fmt.Errorf("engine needs an LLM client or an orchestrator override")
		}
		agentCfg := func(model string) extract.AgentConfig {
			return extract.AgentConfig{
				Provider:    cfg.Provider,
				Model:       model,
				Temperature: cfg.Temperature,
				MaxTokens:   cfg.MaxTokens,
			}
		}
		orchestrator = extract.NewStateExtractionOrchestrator(
			&extract.LLMEventDetector{Client: client, Config: agentCfg(cfg.Models.Detector)},
			&extract.LLMCombatExtractor{Client: client, Config: agentCfg(cfg.Models.Combat)},
			&extract.LLMResourceExtractor{Client: client, Config: agentCfg(cfg.Models.Resource)},
			&extract.LLMEffectExtractor{Client: client, Config: agentCfg(cfg.Models.Effect)},
			extract.WithTaskDeadline(cfg.ExtractorDeadline()),
		)
	}

	e := &Engine{
		cfg:          cfg,
		client:       client,
		manager:      manager,
		orchestrator: orchestrator,
		tools:        NewToolRegistry(),
		applier:      o.applier,
	}

	if store != nil {
		e.querier = rules.NewQueryTool(store, manager)
		if err := e.tools.Register(NewRulesQueryTool(e.querier)); err != nil {
			return nil, err
		}
	}
	for _, tool := range o.extraTools {
		if err := e.tools.Register(tool); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// SessionID identifies this engine's session.
func (e *Engine) SessionID() string {
	return e.manager.SessionID
}

// StartAndQueueTurns opens one child turn per declaration under the current
// leaf. The last declaration's turn becomes active.
func (e *Engine) StartAndQueueTurns(declarations []engine.ActionDeclaration) ([]string, error) {
	return e.manager.StartAndQueueTurns(declarations)
}

// AppendMessages appends utterances to the active leaf.
func (e *Engine) AppendMessages(inputs []engine.MessageInput) error {
	return e.manager.AppendMessages(inputs)
}

// EndTurn closes the active leaf, condensing it into its parent when no
// queued sibling is pending.
func (e *Engine) EndTurn(ctx context.Context) (engine.EndResult, error) {
	return e.manager.EndTurn(ctx)
}

// CurrentTurn returns the active leaf or nil.
func (e *Engine) CurrentTurn() *engine.TurnContext {
	return e.manager.CurrentTurn()
}

// Snapshot returns a point-in-time view of the active path.
func (e *Engine) Snapshot() engine.Snapshot {
	return e.manager.Snapshot()
}

// MarkDMSawNewMessages clears the new-to-DM flags on the active leaf.
func (e *Engine) MarkDMSawNewMessages() error {
	return e.manager.MarkDMSawNewMessages()
}

// MarkExtractionProcessed marks the active leaf's live messages processed.
func (e *Engine) MarkExtractionProcessed() error {
	return e.manager.MarkExtractionProcessed()
}

// AddCacheEntry caches a rule entry on the active leaf.
func (e *Engine) AddCacheEntry(entry engine.CacheEntry) error {
	return e.manager.AddCacheEntry(entry)
}

// QueryRulesDatabase runs the narrator's rules tool directly. Useful for
// the surfaces' reference panels.
func (e *Engine) QueryRulesDatabase(query string, limit int) string {
	if e.querier == nil {
		return "Rules database is not configured."
	}
	return e.querier.Query(query, limit)
}

// ExtractStateChanges projects the active leaf for the extractor, runs the
// orchestrator, marks the leaf processed, and hands the result to the
// command applier. With no unprocessed messages on the leaf the orchestrator
// is skipped and the result carries only a note, so repeated calls after
// marking are cheap no-ops.
func (e *Engine) ExtractStateChanges(ctx context.Context, gameContext map[string]string) extract.ExtractionResult {
	leaf := e.manager.CurrentTurn()
	if leaf == nil {
		return extract.ExtractionResult{Notes: []string{"no active turn"}}
	}
	if len(leaf.UnprocessedLiveInSelf()) == 0 {
		return extract.ExtractionResult{
			Notes: []string{fmt.Sprintf("no unprocessed messages on turn %s", leaf.TurnID)},
		}
	}

	snap := e.manager.Snapshot()
	narrative := engine.StateExtractorContextBuilder{}.Build(snap)

	result := e.orchestrator.Extract(ctx, narrative, gameContext, &snap)

	// A cancelled run leaves the leaf unmarked so the caller can retry.
	if ctx.Err() != nil {
		return result
	}
	if err := e.manager.MarkExtractionProcessed(); err != nil {
		result.Notes = append(result.Notes, fmt.Sprintf("marking extraction processed failed: %v", err))
	}
	if e.applier != nil {
		e.applier(result)
	}
	return result
}
