// ABOUTME: RuleStore contract consumed by the engine plus the rule entry shape it returns.
// ABOUTME: Implementations supply hybrid retrieval and exact name lookup; the engine needs nothing else.

package rules

import "errors"

// ErrNotFound is returned by GetByName when no rule matches.
var ErrNotFound = errors.New("rule not found")

// RuleEntry is one retrievable game rule. Level, School, and Rarity are
// populated only for entry types they apply to.
type RuleEntry struct {
	Name       string   `json:"name"`
	Source     string   `json:"source"`
	Type       string   `json:"type"` // spell, item, condition, action, effect, variantrule, ...
	Content    string   `json:"content"`
	References []string `json:"references,omitempty"`
	Level      int      `json:"level,omitempty"`
	School     string   `json:"school,omitempty"`
	Rarity     string   `json:"rarity,omitempty"`
}

// RuleStore is the retrieval surface the engine depends on. Search performs
// hybrid ranked retrieval; GetByName is an exact lookup with optional type
// disambiguation, returning ErrNotFound on miss.
type RuleStore interface {
	Search(query string, limit int, filterType string) ([]RuleEntry, error)
	GetByName(name string, entryType string) (RuleEntry, error)
}
