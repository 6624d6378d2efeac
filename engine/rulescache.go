// ABOUTME: Rules cache entries and the path-merge service that inherits them down the turn tree.
// ABOUTME: Child entries win over ancestors; siblings off the active path are invisible by construction.

package engine

import "strings"

// CacheEntrySource tags where a cached rule entry came from.
type CacheEntrySource string

const (
	CacheSourceRuleStore CacheEntrySource = "from_rule_store"
	CacheSourceLLM       CacheEntrySource = "llm_generated"
)

// CacheEntry is one cached reference fact, keyed under lowercase(name) in a
// turn's rules cache.
type CacheEntry struct {
	Name         string
	EntryType    string // spell, item, condition, action, effect, variantrule, ...
	Description  string
	Source       CacheEntrySource
	Level        int
	School       string
	DurationText string
	Rarity       string
	Damage       string
}

// RulesCache is a stateless value-type service over per-turn caches.
type RulesCache struct{}

// MergeAlongPath merges the per-turn caches of the given active path,
// root to leaf. Later turns overwrite earlier entries under the same key, so
// the deepest turn wins on collision. Siblings off the path are not in the
// list and therefore cannot leak in.
func (RulesCache) MergeAlongPath(activeTurnsByLevel []*TurnContext) map[string]CacheEntry {
	merged := make(map[string]CacheEntry)
	for _, turn := range activeTurnsByLevel {
		for key, entry := range turn.RulesCache {
			merged[key] = entry
		}
	}
	return merged
}

// FilterByTypes returns the sub-mapping whose entry type is in allowedTypes.
// Entries with an empty type are excluded.
func (RulesCache) FilterByTypes(cache map[string]CacheEntry, allowedTypes []string) map[string]CacheEntry {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}

	filtered := make(map[string]CacheEntry)
	for key, entry := range cache {
		if entry.EntryType == "" {
			continue
		}
		if allowed[strings.ToLower(entry.EntryType)] {
			filtered[key] = entry
		}
	}
	return filtered
}

// AddEntry stores the entry in the turn's cache under its normalised
// lowercase name, overwriting any previous value.
func (RulesCache) AddEntry(entry CacheEntry, turn *TurnContext) {
	if turn.RulesCache == nil {
		turn.RulesCache = make(map[string]CacheEntry)
	}
	turn.RulesCache[strings.ToLower(entry.Name)] = entry
}
