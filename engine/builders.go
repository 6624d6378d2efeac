// ABOUTME: Per-consumer projections of the turn tree: DM, state extractor, effect agent, summarizer.
// ABOUTME: Each builder reads a snapshot and produces prompt text; none of them mutate state.

package engine

import (
	"fmt"
	"sort"
	"strings"
)

// DMContextBuilder renders the full hierarchical context for the narrator:
// every turn on the active path with child logs nested inline, followed by a
// new_messages block highlighting what the narrator has not yet responded to.
type DMContextBuilder struct{}

// Build produces the narrator context from a snapshot.
func (DMContextBuilder) Build(snap Snapshot) string {
	if snap.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString(buildNestedLog(snap.ActiveTurnsByLevel, 0))

	newGroups := collectNewGroups(snap.ActiveTurnsByLevel)
	if len(newGroups) > 0 {
		b.WriteString("\n\n<new_messages>\n")
		for _, group := range newGroups {
			b.WriteString("<message_group>\n")
			for _, m := range group.Messages {
				writeXMLMessage(&b, m)
			}
			b.WriteString("</message_group>\n")
		}
		b.WriteString("</new_messages>")
	}

	return b.String()
}

// buildNestedLog renders the path from position i down, nesting each child's
// block inside its parent. Writes only ever target the leaf, so a child's
// spawn point is always the current end of the parent's message list.
func buildNestedLog(path []*TurnContext, i int) string {
	turn := path[i]

	var b strings.Builder
	if turn.TurnLevel == 0 {
		b.WriteString("<turn_log>\n")
	} else {
		b.WriteString(turn.xmlOpenTag(turn.Cause))
		b.WriteString("\n")
	}

	turn.writeXMLItems(&b, true)

	if i+1 < len(path) {
		b.WriteString(buildNestedLog(path, i+1))
		b.WriteString("\n")
	}

	b.WriteString(turn.xmlCloseTag())
	return b.String()
}

// collectNewGroups gathers the message groups still flagged new to the DM
// from every turn on the active path, root to leaf. A group appended to a
// parent before a sub-turn opened stays highlighted until the narrator marks
// it seen.
func collectNewGroups(path []*TurnContext) []*MessageGroup {
	var groups []*MessageGroup
	for _, turn := range path {
		for _, item := range turn.Items {
			if item.Kind == ItemGroup && item.Group.IsNewToDM {
				groups = append(groups, item.Group)
			}
		}
	}
	return groups
}

// StateExtractorContextBuilder emits a turn_log holding only the
// locally-unprocessed LIVE messages of the active leaf. Strict locality
// prevents double extraction when a parent turn is re-entered after its
// earlier messages were already processed.
type StateExtractorContextBuilder struct{}

// Build produces the extractor narrative from a snapshot.
func (StateExtractorContextBuilder) Build(snap Snapshot) string {
	leaf := snap.ActiveLeaf()
	if leaf == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("<turn_log>\n")
	for _, m := range leaf.UnprocessedLiveInSelf() {
		writeXMLMessage(&b, m)
	}
	b.WriteString("</turn_log>")
	return b.String()
}

// EffectAgentContextBuilder produces the effect extractor's three-section
// context: the unprocessed narrative, the merged rules cache along the
// active path filtered to effects/conditions/spells, and game metadata.
type EffectAgentContextBuilder struct{}

// Build produces the effect agent context. gameContext carries optional
// metadata such as the combat round.
func (EffectAgentContextBuilder) Build(snap Snapshot, gameContext map[string]string) string {
	leaf := snap.ActiveLeaf()
	if leaf == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== NARRATIVE ===\n")
	b.WriteString(StateExtractorContextBuilder{}.Build(snap))
	b.WriteString("\n\n=== KNOWN EFFECTS ===\n")

	cache := RulesCache{}
	merged := cache.MergeAlongPath(snap.ActiveTurnsByLevel)
	relevant := cache.FilterByTypes(merged, []string{"effect", "condition", "spell"})
	if len(relevant) == 0 {
		b.WriteString("(none cached)\n")
	} else {
		keys := make([]string, 0, len(relevant))
		for k := range relevant {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(FormatCacheEntry(relevant[k]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n=== GAME CONTEXT ===\n")
	fmt.Fprintf(&b, "Turn: %s\n", leaf.TurnID)
	if leaf.ActiveCharacter != "" {
		fmt.Fprintf(&b, "Active character: %s\n", leaf.ActiveCharacter)
	}
	if round, ok := gameContext["combat_round"]; ok {
		fmt.Fprintf(&b, "Combat round: %s\n", round)
	}

	return b.String()
}

// FormatCacheEntry renders one cached rule entry for an agent prompt: name,
// type with level when present, description, then optional attributes.
func FormatCacheEntry(e CacheEntry) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(e.Name)
	b.WriteString(" (")
	b.WriteString(e.EntryType)
	if e.Level > 0 {
		fmt.Fprintf(&b, ", level %d", e.Level)
	}
	b.WriteString(")")
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.DurationText != "" {
		fmt.Fprintf(&b, " [Duration: %s]", e.DurationText)
	}
	if e.School != "" {
		fmt.Fprintf(&b, " [School: %s]", e.School)
	}
	if e.Damage != "" {
		fmt.Fprintf(&b, " [Damage: %s]", e.Damage)
	}
	return b.String()
}

// StructuredSummarizerContextBuilder renders a closing leaf's full log
// chronologically: live utterances as message elements and already-condensed
// child sub-turns as reaction elements, so the summarizer can weave both
// into one turn element.
type StructuredSummarizerContextBuilder struct{}

// Build produces the summarizer input for a closing turn. The turn's id and
// level ride on the turn_log element so the condensate can carry them without
// the model guessing.
func (StructuredSummarizerContextBuilder) Build(turn *TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<turn_log id=%q level=\"%d\">\n", turn.TurnID, turn.TurnLevel)
	for _, item := range turn.Items {
		item.eachMessage(func(m *TurnMessage) {
			writeXMLMessage(&b, m)
		})
	}
	b.WriteString("</turn_log>")
	return b.String()
}
