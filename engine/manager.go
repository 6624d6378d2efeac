// ABOUTME: TurnManager, the sole mutator of the turn tree and keeper of the active path.
// ABOUTME: Arena plus index model: a flat slice of turns with parent indices, active path as an index stack.

package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Summarizer condenses a closing sub-turn's log into a single string that
// becomes the SUBTURN_RESULT message in the parent.
type Summarizer interface {
	Condense(ctx context.Context, turnXML string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, turnXML string) (string, error)

func (f SummarizerFunc) Condense(ctx context.Context, turnXML string) (string, error) {
	return f(ctx, turnXML)
}

// EndResult reports what end_turn did.
type EndResult struct {
	TurnID             string
	TurnLevel          int
	EmbeddedInParent   bool
	AdvancedToSibling  bool
	CondensationResult string
}

// TurnManager owns the turn tree. It is single-writer: every mutation holds
// the manager lock for the duration of the operation. Readers take snapshots.
//
// Turns live in a flat arena; each entry records its parent's index (-1 for
// root-level turns). The active path is a stack of arena indices from root
// to the current leaf. Children created in a batch but not yet entered wait
// in a per-parent queue and are entered in reverse creation order as their
// elder siblings close.
type TurnManager struct {
	SessionID string

	mu          sync.Mutex
	summarizer  Summarizer
	arena       []*TurnContext
	parents     []int
	childCounts []int
	activePath  []int
	queued      map[int][]int
	rootCount   int
	lastTS      time.Time
}

// ManagerOption configures a TurnManager.
type ManagerOption func(*TurnManager)

// WithSummarizer sets the summarizer invoked when a non-root sub-turn ends.
// Without one, end_turn substitutes the fallback condensate.
func WithSummarizer(s Summarizer) ManagerOption {
	return func(m *TurnManager) {
		m.summarizer = s
	}
}

// NewTurnManager creates an empty turn tree for one session.
func NewTurnManager(opts ...ManagerOption) *TurnManager {
	m := &TurnManager{
		SessionID: uuid.NewString(),
		queued:    make(map[int][]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// nextTimestamp returns a timestamp strictly greater than any previously
// issued by this manager. Call with the lock held.
func (m *TurnManager) nextTimestamp() time.Time {
	now := time.Now()
	if !now.After(m.lastTS) {
		now = m.lastTS.Add(time.Nanosecond)
	}
	m.lastTS = now
	return now
}

// leafIndex returns the arena index of the active leaf, or -1.
// Call with the lock held.
func (m *TurnManager) leafIndex() int {
	if len(m.activePath) == 0 {
		return -1
	}
	return m.activePath[len(m.activePath)-1]
}

// StartAndQueueTurns atomically creates one child turn per declaration under
// the current leaf (or at the root level when the tree is empty). Each child
// opens with one initial LIVE message built from its declaration. The last
// child in the batch becomes the active leaf; earlier children are created
// open but queued, to be entered as their elder siblings close. Returns the
// new turn ids in declaration order.
func (m *TurnManager) StartAndQueueTurns(declarations []ActionDeclaration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(declarations) == 0 {
		return nil, ErrNoDeclarations
	}

	parentIdx := m.leafIndex()

	ids := make([]string, 0, len(declarations))
	indices := make([]int, 0, len(declarations))

	for _, decl := range declarations {
		var id string
		if parentIdx < 0 {
			m.rootCount++
			id = strconv.Itoa(m.rootCount)
		} else {
			m.childCounts[parentIdx]++
			id = m.arena[parentIdx].TurnID + "." + strconv.Itoa(m.childCounts[parentIdx])
		}
		level := strings.Count(id, ".")

		turn := &TurnContext{
			TurnID:          id,
			TurnLevel:       level,
			ActiveCharacter: decl.ActiveCharacter,
			Cause:           decl.Content,
			RulesCache:      make(map[string]CacheEntry),
			StartTime:       m.nextTimestamp(),
		}
		turn.Items = append(turn.Items, messageItem(
			newLiveMessage(decl.Content, decl.Speaker, id, level, m.nextTimestamp()),
		))

		m.arena = append(m.arena, turn)
		m.parents = append(m.parents, parentIdx)
		m.childCounts = append(m.childCounts, 0)

		ids = append(ids, id)
		indices = append(indices, len(m.arena)-1)
	}

	// Last child becomes the leaf; earlier siblings wait in the queue and
	// pop off the tail, so they are entered in reverse creation order.
	m.activePath = append(m.activePath, indices[len(indices)-1])
	if len(indices) > 1 {
		m.queued[parentIdx] = append(m.queued[parentIdx], indices[:len(indices)-1]...)
	}

	return ids, nil
}

// AppendMessages appends the batch to the active leaf. A batch of more than
// one all-LIVE message is wrapped in a single MessageGroup flagged new to
// the DM; a size-1 batch appends as a bare message.
func (m *TurnManager) AppendMessages(inputs []MessageInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafIdx := m.leafIndex()
	if leafIdx < 0 {
		return ErrNoActiveTurn
	}
	if len(inputs) == 0 {
		return nil
	}
	leaf := m.arena[leafIdx]

	allLive := true
	for _, in := range inputs {
		if in.Kind != "" && in.Kind != KindLive {
			allLive = false
			break
		}
	}

	if len(inputs) > 1 && allLive {
		group := &MessageGroup{IsNewToDM: true}
		for _, in := range inputs {
			group.Messages = append(group.Messages,
				newLiveMessage(in.Content, in.Speaker, leaf.TurnID, leaf.TurnLevel, m.nextTimestamp()))
		}
		leaf.Items = append(leaf.Items, groupItem(group))
		return nil
	}

	for _, in := range inputs {
		var msg *TurnMessage
		if in.Kind == KindSubturnResult {
			msg = newSubturnResult(in.Content, leaf.TurnID, leaf.TurnLevel, m.nextTimestamp())
		} else {
			msg = newLiveMessage(in.Content, in.Speaker, leaf.TurnID, leaf.TurnLevel, m.nextTimestamp())
		}
		leaf.Items = append(leaf.Items, messageItem(msg))
	}
	return nil
}

// EndTurn closes the active leaf. With queued siblings pending, the next one
// is entered and no condensation happens. Closing the root empties the tree.
// Otherwise the leaf's log is condensed and folded into the parent as a
// single SUBTURN_RESULT message; summarizer failures substitute a fallback
// condensate, so this operation never fails on agent errors.
func (m *TurnManager) EndTurn(ctx context.Context) (EndResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafIdx := m.leafIndex()
	if leafIdx < 0 {
		return EndResult{}, ErrNoActiveTurn
	}
	leaf := m.arena[leafIdx]
	parentIdx := m.parents[leafIdx]

	if pending := m.queued[parentIdx]; len(pending) > 0 {
		nextIdx := pending[len(pending)-1]
		m.queued[parentIdx] = pending[:len(pending)-1]

		m.closeTurn(leaf)
		m.activePath[len(m.activePath)-1] = nextIdx

		return EndResult{
			TurnID:            leaf.TurnID,
			TurnLevel:         leaf.TurnLevel,
			AdvancedToSibling: true,
		}, nil
	}

	if parentIdx < 0 {
		m.closeTurn(leaf)
		m.activePath = m.activePath[:len(m.activePath)-1]
		return EndResult{TurnID: leaf.TurnID, TurnLevel: leaf.TurnLevel}, nil
	}

	condensate := m.condense(ctx, leaf)

	parent := m.arena[parentIdx]
	parent.Items = append(parent.Items, messageItem(
		newSubturnResult(condensate, leaf.TurnID, leaf.TurnLevel, m.nextTimestamp()),
	))

	m.closeTurn(leaf)
	m.activePath = m.activePath[:len(m.activePath)-1]

	return EndResult{
		TurnID:             leaf.TurnID,
		TurnLevel:          leaf.TurnLevel,
		EmbeddedInParent:   true,
		CondensationResult: condensate,
	}, nil
}

// condense runs the summarizer over the closing leaf's log, substituting the
// fallback condensate on any failure or empty result.
func (m *TurnManager) condense(ctx context.Context, leaf *TurnContext) string {
	if m.summarizer == nil {
		return fallbackCondensate(leaf.TurnID, leaf.TurnLevel, "no summarizer configured")
	}

	turnXML := StructuredSummarizerContextBuilder{}.Build(leaf)
	condensate, err := m.summarizer.Condense(ctx, turnXML)
	if err != nil {
		log.Printf("component=engine action=summarizer_fallback turn=%s err=%v", leaf.TurnID, err)
		return fallbackCondensate(leaf.TurnID, leaf.TurnLevel, err.Error())
	}
	if condensate == "" {
		log.Printf("component=engine action=summarizer_fallback turn=%s err=empty_result", leaf.TurnID)
		return fallbackCondensate(leaf.TurnID, leaf.TurnLevel, "summarizer returned empty result")
	}
	return condensate
}

func fallbackCondensate(turnID string, turnLevel int, errText string) string {
	return fmt.Sprintf("<turn id=%q level=\"%d\"><action>Failed to condense: %s</action><resolution>Turn processing encountered an error</resolution></turn>",
		turnID, turnLevel, errText)
}

func (m *TurnManager) closeTurn(t *TurnContext) {
	ts := m.nextTimestamp()
	t.EndTime = &ts
}

// CurrentTurn returns the active leaf or nil. The returned turn is a
// read-only view; mutate only through manager operations.
func (m *TurnManager) CurrentTurn() *TurnContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafIdx := m.leafIndex()
	if leafIdx < 0 {
		return nil
	}
	return m.arena[leafIdx]
}

// Snapshot returns a point-in-time view of the active path, root to leaf.
// Each turn struct is copied, so the message list length is fixed at take
// time; later tail appends are invisible to the holder.
func (m *TurnManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := make([]*TurnContext, 0, len(m.activePath))
	for _, idx := range m.activePath {
		cp := *m.arena[idx]
		path = append(path, &cp)
	}
	return Snapshot{ActiveTurnsByLevel: path}
}

// MarkDMSawNewMessages clears is_new_to_dm on every message and group in the
// active leaf. Invoked after the narrator consumed a context that rendered
// them as new.
func (m *TurnManager) MarkDMSawNewMessages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafIdx := m.leafIndex()
	if leafIdx < 0 {
		return ErrNoActiveTurn
	}

	for _, item := range m.arena[leafIdx].Items {
		if item.Kind == ItemGroup {
			item.Group.IsNewToDM = false
		}
		item.eachMessage(func(msg *TurnMessage) {
			msg.IsNewToDM = false
		})
	}
	return nil
}

// MarkExtractionProcessed sets processed_for_extraction on every LIVE
// message originating in the active leaf. Idempotent. Invoked after the
// orchestrator returns, whether or not it produced commands.
func (m *TurnManager) MarkExtractionProcessed() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafIdx := m.leafIndex()
	if leafIdx < 0 {
		return ErrNoActiveTurn
	}
	leaf := m.arena[leafIdx]

	for _, item := range leaf.Items {
		item.eachMessage(func(msg *TurnMessage) {
			if msg.Kind == KindLive && msg.OriginTurnID == leaf.TurnID {
				msg.ProcessedForExtraction = true
			}
		})
	}
	return nil
}

// AddCacheEntry stores a rule entry in the active leaf's cache. This is the
// one mutation that happens during a narrator call (from the rules query
// tool), so it takes the manager lock like every other write.
func (m *TurnManager) AddCacheEntry(entry CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafIdx := m.leafIndex()
	if leafIdx < 0 {
		return ErrNoActiveTurn
	}
	RulesCache{}.AddEntry(entry, m.arena[leafIdx])
	return nil
}
