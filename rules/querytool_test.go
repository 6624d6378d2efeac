// ABOUTME: Tests for the narrator rules tool: fast path, search path, and cache side effects.
// ABOUTME: Uses a fake store so behavior is observable without a database.

package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/2389-research/arbiter/engine"
)

type fakeStore struct {
	byName      map[string]RuleEntry
	searchHits  []RuleEntry
	searchErr   error
	searchCalls int
	nameCalls   int
	lastLimit   int
}

func (f *fakeStore) Search(query string, limit int, filterType string) ([]RuleEntry, error) {
	f.searchCalls++
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.searchHits) {
		return f.searchHits[:limit], nil
	}
	return f.searchHits, nil
}

func (f *fakeStore) GetByName(name string, entryType string) (RuleEntry, error) {
	f.nameCalls++
	if e, ok := f.byName[strings.ToLower(name)]; ok {
		return e, nil
	}
	return RuleEntry{}, ErrNotFound
}

func managerWithActiveTurn(t *testing.T) *engine.TurnManager {
	t.Helper()
	m := engine.NewTurnManager()
	if _, err := m.StartAndQueueTurns([]engine.ActionDeclaration{{Speaker: engine.SpeakerPlayer, Content: "I cast Bless"}}); err != nil {
		t.Fatalf("StartAndQueueTurns: %v", err)
	}
	return m
}

func TestShortQueryHitsExactLookup(t *testing.T) {
	store := &fakeStore{byName: map[string]RuleEntry{
		"bless": {Name: "Bless", Type: "spell", Level: 1, School: "enchantment", Content: "Up to three creatures add 1d4 to attack rolls and saves.", Source: "PHB"},
	}}
	m := managerWithActiveTurn(t)
	tool := NewQueryTool(store, m)

	out := tool.Query("Bless", 3)

	if store.nameCalls != 1 || store.searchCalls != 0 {
		t.Errorf("nameCalls=%d searchCalls=%d, want exact lookup only", store.nameCalls, store.searchCalls)
	}
	if strings.Contains(out, resultSeparator) {
		t.Errorf("single hit should not contain separator:\n%s", out)
	}
	if !strings.Contains(out, "Bless") {
		t.Errorf("output missing rule name:\n%s", out)
	}

	leaf := m.CurrentTurn()
	entry, ok := leaf.RulesCache["bless"]
	if !ok {
		t.Fatalf("cache keys = %v, want bless", leaf.RulesCache)
	}
	if entry.EntryType != "spell" || entry.Source != engine.CacheSourceRuleStore {
		t.Errorf("cached entry = %+v", entry)
	}
}

func TestLongQueryUsesSearch(t *testing.T) {
	store := &fakeStore{
		byName: map[string]RuleEntry{"bless": {Name: "Bless", Type: "spell"}},
		searchHits: []RuleEntry{
			{Name: "Grappled", Type: "condition", Content: "Speed becomes 0."},
			{Name: "Shove", Type: "action", Content: "Contested check to push or knock prone."},
		},
	}
	m := managerWithActiveTurn(t)
	tool := NewQueryTool(store, m)

	out := tool.Query("what happens when a creature tries to grapple a much larger creature during combat underwater", 3)

	if store.nameCalls != 0 {
		t.Errorf("nameCalls = %d, long query should skip the fast path", store.nameCalls)
	}
	if store.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want 1", store.searchCalls)
	}
	if !strings.Contains(out, resultSeparator) {
		t.Errorf("multi-hit output missing separator:\n%s", out)
	}

	leaf := m.CurrentTurn()
	if _, ok := leaf.RulesCache["grappled"]; !ok {
		t.Errorf("cache keys = %v, want grappled", leaf.RulesCache)
	}
	if _, ok := leaf.RulesCache["shove"]; !ok {
		t.Errorf("cache keys = %v, want shove", leaf.RulesCache)
	}
}

func TestShortQueryMissFallsThroughToSearch(t *testing.T) {
	store := &fakeStore{searchHits: []RuleEntry{{Name: "Opportunity Attack", Type: "action", Content: "..."}}}
	tool := NewQueryTool(store, managerWithActiveTurn(t))

	out := tool.Query("attack of opportunity", 3)
	if store.nameCalls != 1 || store.searchCalls != 1 {
		t.Errorf("nameCalls=%d searchCalls=%d, want fast path then search", store.nameCalls, store.searchCalls)
	}
	if !strings.Contains(out, "Opportunity Attack") {
		t.Errorf("output = %q", out)
	}
}

func TestNoActiveTurnReturnsErrorString(t *testing.T) {
	store := &fakeStore{byName: map[string]RuleEntry{"bless": {Name: "Bless", Type: "spell"}}}
	m := engine.NewTurnManager()
	tool := NewQueryTool(store, m)

	out := tool.Query("Bless", 3)
	if !strings.Contains(out, "No active turn") {
		t.Errorf("output = %q", out)
	}
	if store.nameCalls != 0 && store.searchCalls != 0 {
		t.Error("store should not be consulted without an active turn")
	}
}

func TestNoHitsDoesNotMutateCache(t *testing.T) {
	store := &fakeStore{}
	m := managerWithActiveTurn(t)
	tool := NewQueryTool(store, m)

	out := tool.Query("Xyzzy", 3)
	if !strings.Contains(out, "No rules found") {
		t.Errorf("output = %q", out)
	}
	if len(m.CurrentTurn().RulesCache) != 0 {
		t.Errorf("cache = %v, want empty", m.CurrentTurn().RulesCache)
	}
}

func TestSearchErrorReadsAsNoRules(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("disk I/O error")}
	m := managerWithActiveTurn(t)
	tool := NewQueryTool(store, m)

	out := tool.Query("what happens when a creature falls into deep water while wearing heavy armor", 3)
	if !strings.Contains(out, "No rules found") {
		t.Errorf("output = %q, want the no-rules string", out)
	}
	if strings.Contains(out, "disk I/O") {
		t.Errorf("store error leaked to the narrator: %q", out)
	}
	if len(m.CurrentTurn().RulesCache) != 0 {
		t.Errorf("cache = %v, want empty", m.CurrentTurn().RulesCache)
	}
}

func TestLimitClamped(t *testing.T) {
	store := &fakeStore{searchHits: []RuleEntry{
		{Name: "A", Type: "spell"}, {Name: "B", Type: "spell"}, {Name: "C", Type: "spell"},
	}}
	tool := NewQueryTool(store, managerWithActiveTurn(t))

	out := tool.Query("one two three four five six seven eight nine ten eleven", 0)
	if parts := strings.Split(out, resultSeparator); len(parts) != 3 {
		t.Errorf("got %d results with limit 0 (default 3): %q", len(parts), out)
	}

	store2 := &fakeStore{searchHits: []RuleEntry{{Name: "A", Type: "spell"}}}
	tool2 := NewQueryTool(store2, managerWithActiveTurn(t))
	tool2.Query("one two three four five six seven eight nine ten eleven", 99)
	if store2.lastLimit != 10 {
		t.Errorf("limit = %d, want clamped to 10", store2.lastLimit)
	}
}
