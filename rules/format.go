// ABOUTME: Rendering of rule entries for the narrator and conversion into cache entries.
// ABOUTME: Keeps the display format stable so cached and fresh lookups read the same.

package rules

import (
	"fmt"
	"strings"

	"github.com/2389-research/arbiter/engine"
)

// FormatEntry renders a rule entry as the human-readable block returned to
// the narrator.
func FormatEntry(entry RuleEntry) string {
	var b strings.Builder

	header := entry.Name
	var tags []string
	if entry.Type != "" {
		tags = append(tags, entry.Type)
	}
	if entry.Level > 0 {
		tags = append(tags, fmt.Sprintf("level %d", entry.Level))
	}
	if entry.School != "" {
		tags = append(tags, entry.School)
	}
	if entry.Rarity != "" {
		tags = append(tags, entry.Rarity)
	}
	if len(tags) > 0 {
		header += " (" + strings.Join(tags, ", ") + ")"
	}

	b.WriteString("## ")
	b.WriteString(header)
	b.WriteString("\n")
	if entry.Source != "" {
		b.WriteString("Source: ")
		b.WriteString(entry.Source)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(entry.Content))
	if len(entry.References) > 0 {
		b.WriteString("\n\nSee also: ")
		b.WriteString(strings.Join(entry.References, ", "))
	}
	return b.String()
}

// ToCacheEntry converts a rule entry into the cache shape stored on the
// active turn.
func ToCacheEntry(entry RuleEntry) engine.CacheEntry {
	return engine.CacheEntry{
		Name:        entry.Name,
		EntryType:   entry.Type,
		Description: summarize(entry.Content),
		Source:      engine.CacheSourceRuleStore,
		Level:       entry.Level,
		School:      entry.School,
		Rarity:      entry.Rarity,
	}
}

// summarize truncates long rule text to a cache-sized description at a word
// boundary.
func summarize(content string) string {
	const maxLen = 280
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= maxLen {
		return content
	}
	cut := strings.LastIndex(content[:maxLen], " ")
	if cut <= 0 {
		cut = maxLen
	}
	return content[:cut] + "..."
}
