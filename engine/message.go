// ABOUTME: Leaf data of the turn tree: TurnMessage, MessageGroup, and the TurnItem tagged variant.
// ABOUTME: One message is a single utterance or a condensed sub-turn result folded into its parent.

package engine

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerPlayer Speaker = "player"
	SpeakerDM     Speaker = "dm"
	SpeakerSystem Speaker = "system"
)

// MessageKind discriminates live utterances from condensed sub-turn results.
type MessageKind string

const (
	// KindLive is a real utterance from a player or the narrator.
	KindLive MessageKind = "LIVE"

	// KindSubturnResult is the synthesized condensate of a closed child turn.
	// Always speaker=system, always processed_for_extraction from creation.
	KindSubturnResult MessageKind = "SUBTURN_RESULT"
)

// TurnMessage is an atomic log entry in a turn's message list.
type TurnMessage struct {
	ID                     string
	Content                string
	Speaker                Speaker
	Kind                   MessageKind
	OriginTurnID           string
	OriginTurnLevel        int
	Timestamp              time.Time
	ProcessedForExtraction bool
	IsNewToDM              bool
}

// newLiveMessage builds a LIVE message attributed to the given turn.
func newLiveMessage(content string, speaker Speaker, originID string, originLevel int, ts time.Time) *TurnMessage {
	return &TurnMessage{
		ID:              ulid.Make().String(),
		Content:         content,
		Speaker:         speaker,
		Kind:            KindLive,
		OriginTurnID:    originID,
		OriginTurnLevel: originLevel,
		Timestamp:       ts,
		IsNewToDM:       true,
	}
}

// newSubturnResult builds the condensate message for a closed sub-turn.
// Sub-turn results carry no novel state-change information, so they are
// marked processed from creation.
func newSubturnResult(condensate string, subturnID string, subturnLevel int, ts time.Time) *TurnMessage {
	return &TurnMessage{
		ID:                     ulid.Make().String(),
		Content:                condensate,
		Speaker:                SpeakerSystem,
		Kind:                   KindSubturnResult,
		OriginTurnID:           subturnID,
		OriginTurnLevel:        subturnLevel,
		Timestamp:              ts,
		ProcessedForExtraction: true,
		IsNewToDM:              true,
	}
}

// MessageGroup is an ordered non-empty list of messages that entered the
// system simultaneously, e.g. several reactions declared in one step. All
// messages in a group share the same kind.
type MessageGroup struct {
	Messages  []*TurnMessage
	IsNewToDM bool
}

// TurnItemKind discriminates the two cases of a turn's message list entry.
type TurnItemKind string

const (
	ItemMessage TurnItemKind = "message"
	ItemGroup   TurnItemKind = "group"
)

// TurnItem is the tagged variant stored in a turn's message list: either a
// single TurnMessage or a MessageGroup. The Kind field determines which
// pointer is populated.
type TurnItem struct {
	Kind    TurnItemKind
	Message *TurnMessage
	Group   *MessageGroup
}

func messageItem(m *TurnMessage) TurnItem {
	return TurnItem{Kind: ItemMessage, Message: m}
}

func groupItem(g *MessageGroup) TurnItem {
	return TurnItem{Kind: ItemGroup, Group: g}
}

// firstTimestamp returns the timestamp of the item (a group's first message).
func (it TurnItem) firstTimestamp() time.Time {
	switch it.Kind {
	case ItemMessage:
		return it.Message.Timestamp
	case ItemGroup:
		if len(it.Group.Messages) > 0 {
			return it.Group.Messages[0].Timestamp
		}
	}
	return time.Time{}
}

// eachMessage invokes fn for every message in the item, flattening groups.
func (it TurnItem) eachMessage(fn func(*TurnMessage)) {
	switch it.Kind {
	case ItemMessage:
		fn(it.Message)
	case ItemGroup:
		for _, m := range it.Group.Messages {
			fn(m)
		}
	}
}

// ActionDeclaration is the input envelope for starting new turns. One
// declaration produces one child turn containing one initial live message.
type ActionDeclaration struct {
	Speaker         Speaker
	Content         string
	ActiveCharacter string
}

// MessageInput is one entry in an append_messages batch.
type MessageInput struct {
	Content string
	Speaker Speaker
	Kind    MessageKind // defaults to LIVE when empty
}
