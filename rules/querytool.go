// ABOUTME: The query_rules_database tool exposed to the narrator.
// ABOUTME: Short queries try exact name lookup first; everything else goes through hybrid search.

package rules

import (
	"fmt"
	"log"
	"strings"

	"github.com/2389-research/arbiter/engine"
)

// shortQueryTokens is the token-count threshold under which a query is
// treated as a probable rule name and tried against exact lookup first.
const shortQueryTokens = 10

// resultSeparator joins multiple formatted rules in one tool reply.
const resultSeparator = "\n\n---\n\n"

// cacheWriter is the slice of the turn manager the tool needs: a view of the
// active leaf and the ability to cache entries on it.
type cacheWriter interface {
	CurrentTurn() *engine.TurnContext
	AddCacheEntry(entry engine.CacheEntry) error
}

// QueryTool answers rules lookups during narration. Every returned rule is
// also cached on the active leaf so later sub-turns inherit it.
type QueryTool struct {
	store   RuleStore
	manager cacheWriter
}

// NewQueryTool binds a rule store to a turn manager.
func NewQueryTool(store RuleStore, manager cacheWriter) *QueryTool {
	return &QueryTool{store: store, manager: manager}
}

// Query resolves a rules question and returns a display string. It never
// returns an error; failures come back as readable text for the narrator,
// and nothing is cached on a miss.
func (t *QueryTool) Query(query string, limit int) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "No query provided."
	}
	if limit < 1 {
		limit = 3
	}
	if limit > 10 {
		limit = 10
	}

	if t.manager.CurrentTurn() == nil {
		return "No active turn; rules lookup is only available during a turn."
	}

	if len(strings.Fields(query)) <= shortQueryTokens {
		entry, err := t.store.GetByName(query, "")
		if err == nil {
			t.cache(entry)
			return FormatEntry(entry)
		}
		if err != ErrNotFound {
			log.Printf("component=rules action=get_by_name_failed query=%q err=%v", query, err)
		}
	}

	// Store failures read the same as a miss; the narrator should narrate
	// around a gap, not surface backend errors to the table.
	entries, err := t.store.Search(query, limit, "")
	if err != nil {
		log.Printf("component=rules action=search_failed query=%q err=%v", query, err)
		return fmt.Sprintf("No rules found for %q.", query)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No rules found for %q.", query)
	}

	formatted := make([]string, 0, len(entries))
	for _, entry := range entries {
		t.cache(entry)
		formatted = append(formatted, FormatEntry(entry))
	}
	return strings.Join(formatted, resultSeparator)
}

func (t *QueryTool) cache(entry RuleEntry) {
	if err := t.manager.AddCacheEntry(ToCacheEntry(entry)); err != nil {
		log.Printf("component=rules action=cache_write_failed name=%q err=%v", entry.Name, err)
	}
}
