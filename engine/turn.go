// ABOUTME: TurnContext, one node of the turn tree, with its read projections and XML rendering.
// ABOUTME: Projections never mutate; all writes go through the TurnManager.

package engine

import (
	"fmt"
	"strings"
	"time"
)

// TurnContext is one node of the turn tree. Turn ids are dotted paths: the
// root is "1", its children "1.1", "1.2", grandchildren "1.1.1". The level
// equals the number of dots in the id.
type TurnContext struct {
	TurnID          string
	TurnLevel       int
	ActiveCharacter string

	// Cause is the declaration content that opened this turn. Rendered as
	// the cause attribute on nested subturn_log blocks.
	Cause string

	// Items is the ordered message list. Insertion order is chronological;
	// timestamps are strictly increasing within a turn.
	Items []TurnItem

	// RulesCache maps normalised lowercase rule names to cached entries.
	RulesCache map[string]CacheEntry

	// Metadata is an opaque side map the engine never reads.
	Metadata map[string]any

	StartTime time.Time
	EndTime   *time.Time
}

// IsOpen reports whether the turn has not yet been closed.
func (t *TurnContext) IsOpen() bool {
	return t.EndTime == nil
}

// LiveMessagesInSelf returns the content of every LIVE message whose origin
// is this turn, in order, flattening groups.
func (t *TurnContext) LiveMessagesInSelf() []string {
	var out []string
	for _, item := range t.Items {
		item.eachMessage(func(m *TurnMessage) {
			if m.Kind == KindLive && m.OriginTurnID == t.TurnID {
				out = append(out, m.Content)
			}
		})
	}
	return out
}

// UnprocessedLiveInSelf returns the LIVE messages originating in this turn
// that have not yet been processed for extraction, in order.
func (t *TurnContext) UnprocessedLiveInSelf() []*TurnMessage {
	var out []*TurnMessage
	for _, item := range t.Items {
		item.eachMessage(func(m *TurnMessage) {
			if m.Kind == KindLive && m.OriginTurnID == t.TurnID && !m.ProcessedForExtraction {
				out = append(out, m)
			}
		})
	}
	return out
}

// ToXMLBlock renders the turn as a context block. Root-level turns use
// <turn_log>; deeper turns use <subturn_log id="..."> with an optional cause
// attribute. When excludeNewGroups is set, message groups still flagged
// is_new_to_dm are omitted so the DM projection can render them separately.
func (t *TurnContext) ToXMLBlock(excludeNewGroups bool, cause string) string {
	var b strings.Builder
	b.WriteString(t.xmlOpenTag(cause))
	b.WriteString("\n")
	t.writeXMLItems(&b, excludeNewGroups)
	b.WriteString(t.xmlCloseTag())
	return b.String()
}

func (t *TurnContext) xmlOpenTag(cause string) string {
	if t.TurnLevel == 0 {
		return "<turn_log>"
	}
	if cause != "" {
		return fmt.Sprintf("<subturn_log id=%q cause=%q>", t.TurnID, escapeAttr(cause))
	}
	return fmt.Sprintf("<subturn_log id=%q>", t.TurnID)
}

func (t *TurnContext) xmlCloseTag() string {
	if t.TurnLevel == 0 {
		return "</turn_log>"
	}
	return "</subturn_log>"
}

// writeXMLItems renders the turn's message list into b, one item per line.
func (t *TurnContext) writeXMLItems(b *strings.Builder, excludeNewGroups bool) {
	for _, item := range t.Items {
		switch item.Kind {
		case ItemMessage:
			writeXMLMessage(b, item.Message)
		case ItemGroup:
			if excludeNewGroups && item.Group.IsNewToDM {
				continue
			}
			b.WriteString("<message_group>\n")
			for _, m := range item.Group.Messages {
				writeXMLMessage(b, m)
			}
			b.WriteString("</message_group>\n")
		}
	}
}

// writeXMLMessage renders one message. Live messages become <message>
// elements; sub-turn results become <reaction> elements whose content is the
// condensate verbatim.
func writeXMLMessage(b *strings.Builder, m *TurnMessage) {
	if m.Kind == KindSubturnResult {
		fmt.Fprintf(b, "<reaction id=%q level=\"%d\">%s</reaction>\n", m.OriginTurnID, m.OriginTurnLevel, m.Content)
		return
	}
	fmt.Fprintf(b, "<message speaker=%q>%s</message>\n", m.Speaker, m.Content)
}

// escapeAttr escapes the characters that would break an attribute value.
// Message bodies are passed through verbatim; they are prompt text, not
// document XML.
func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return s
}
