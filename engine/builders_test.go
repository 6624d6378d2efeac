// ABOUTME: Tests for the four context builder projections and cache entry formatting.
// ABOUTME: Verifies extractor locality, DM nesting and new-message highlighting, and effect agent sections.

package engine

import (
	"strings"
	"testing"
)

func TestExtractorContextLocality(t *testing.T) {
	m := NewTurnManager()
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "I attack the orc"}})
	m.AppendMessages([]MessageInput{{Content: "8 slashing damage", Speaker: SpeakerDM}})
	m.MarkExtractionProcessed()
	m.AppendMessages([]MessageInput{{Content: "the orc staggers", Speaker: SpeakerDM}})

	got := StateExtractorContextBuilder{}.Build(m.Snapshot())

	if !strings.Contains(got, "the orc staggers") {
		t.Errorf("missing unprocessed message:\n%s", got)
	}
	if strings.Contains(got, "8 slashing damage") {
		t.Errorf("processed message leaked into extractor context:\n%s", got)
	}
	if strings.Contains(got, "<reaction") || strings.Contains(got, "<subturn_log") {
		t.Errorf("extractor context must never contain reaction or subturn_log:\n%s", got)
	}
	if !strings.HasPrefix(got, "<turn_log>") || !strings.HasSuffix(got, "</turn_log>") {
		t.Errorf("extractor context not wrapped in turn_log:\n%s", got)
	}
}

func TestExtractorContextExcludesParentMessages(t *testing.T) {
	m := NewTurnManager()
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "parent utterance"}})
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "child utterance"}})

	got := StateExtractorContextBuilder{}.Build(m.Snapshot())
	if strings.Contains(got, "parent utterance") {
		t.Errorf("parent message leaked into child extractor context:\n%s", got)
	}
	if !strings.Contains(got, "child utterance") {
		t.Errorf("child message missing:\n%s", got)
	}
}

func TestDMContextNestsSubturns(t *testing.T) {
	m := NewTurnManager()
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "I attack"}})
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "Shield!"}})
	m.AppendMessages([]MessageInput{{Content: "the spell flares", Speaker: SpeakerDM}})

	got := DMContextBuilder{}.Build(m.Snapshot())

	subOpen := strings.Index(got, `<subturn_log id="1.1"`)
	outerClose := strings.LastIndex(got, "</turn_log>")
	if subOpen < 0 {
		t.Fatalf("no nested subturn_log:\n%s", got)
	}
	if outerClose < subOpen {
		t.Errorf("subturn_log not nested inside turn_log:\n%s", got)
	}
	if !strings.Contains(got, `cause="Shield!"`) {
		t.Errorf("missing cause attribute:\n%s", got)
	}
	if !strings.Contains(got, "the spell flares") {
		t.Errorf("missing child message:\n%s", got)
	}
}

func TestDMContextNewMessagesSection(t *testing.T) {
	m := NewTurnManager()
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "start"}})
	m.AppendMessages([]MessageInput{
		{Content: "reaction one", Speaker: SpeakerPlayer},
		{Content: "reaction two", Speaker: SpeakerPlayer},
	})

	got := DMContextBuilder{}.Build(m.Snapshot())

	newIdx := strings.Index(got, "<new_messages>")
	if newIdx < 0 {
		t.Fatalf("no new_messages section:\n%s", got)
	}
	if !strings.Contains(got[newIdx:], "reaction one") || !strings.Contains(got[newIdx:], "reaction two") {
		t.Errorf("new_messages missing group contents:\n%s", got)
	}

	// The new group is excluded from the main log to avoid duplication.
	mainLog := got[:newIdx]
	if strings.Contains(mainLog, "reaction one") {
		t.Errorf("new group duplicated in main log:\n%s", got)
	}

	// After the DM sees them, the section disappears.
	m.MarkDMSawNewMessages()
	got = DMContextBuilder{}.Build(m.Snapshot())
	if strings.Contains(got, "<new_messages>") {
		t.Errorf("new_messages still present after mark:\n%s", got)
	}
	if !strings.Contains(got, "reaction one") {
		t.Errorf("seen group missing from main log after mark:\n%s", got)
	}
}

func TestDMContextKeepsParentNewGroupsAcrossSubturn(t *testing.T) {
	m := NewTurnManager()
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "root action"}})
	m.AppendMessages([]MessageInput{
		{Content: "goblin reacts", Speaker: SpeakerPlayer},
		{Content: "orc reacts", Speaker: SpeakerPlayer},
	})
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "goblin shoots"}})

	got := DMContextBuilder{}.Build(m.Snapshot())

	newIdx := strings.Index(got, "<new_messages>")
	if newIdx < 0 {
		t.Fatalf("no new_messages section while a parent group is unseen:\n%s", got)
	}
	if !strings.Contains(got[newIdx:], "goblin reacts") || !strings.Contains(got[newIdx:], "orc reacts") {
		t.Errorf("parent group missing from new_messages:\n%s", got)
	}
	if !strings.Contains(got, `<subturn_log id="1.1"`) {
		t.Errorf("nested sub-turn missing:\n%s", got)
	}
}

func TestEffectAgentContextSections(t *testing.T) {
	m := NewTurnManager()
	m.StartAndQueueTurns([]ActionDeclaration{{Speaker: SpeakerPlayer, Content: "root", ActiveCharacter: "ranger"}})
	m.AddCacheEntry(CacheEntry{Name: "Haste", EntryType: "spell", Level: 3, Description: "double speed", DurationText: "1 minute"})
	m.AddCacheEntry(CacheEntry{Name: "Longsword", EntryType: "item", Description: "a sword"})
	m.AppendMessages([]MessageInput{{Content: "the haste spell takes hold", Speaker: SpeakerDM}})

	got := EffectAgentContextBuilder{}.Build(m.Snapshot(), map[string]string{"combat_round": "3"})

	for _, section := range []string{"=== NARRATIVE ===", "=== KNOWN EFFECTS ===", "=== GAME CONTEXT ==="} {
		if !strings.Contains(got, section) {
			t.Errorf("missing section %q:\n%s", section, got)
		}
	}
	if !strings.Contains(got, "Haste (spell, level 3)") {
		t.Errorf("missing formatted spell entry:\n%s", got)
	}
	if strings.Contains(got, "Longsword") {
		t.Errorf("item entry leaked into known effects:\n%s", got)
	}
	if !strings.Contains(got, "Turn: 1") || !strings.Contains(got, "Active character: ranger") || !strings.Contains(got, "Combat round: 3") {
		t.Errorf("game context incomplete:\n%s", got)
	}
}

func TestSummarizerBuilderIncludesReactions(t *testing.T) {
	turn := &TurnContext{TurnID: "1", TurnLevel: 0}
	turn.Items = []TurnItem{
		messageItem(&TurnMessage{Content: "I attack", Speaker: SpeakerPlayer, Kind: KindLive, OriginTurnID: "1"}),
		messageItem(&TurnMessage{
			Content:         `<turn id="1.1" level="1"><action>Shield</action><resolution>AC +5</resolution></turn>`,
			Speaker:         SpeakerSystem,
			Kind:            KindSubturnResult,
			OriginTurnID:    "1.1",
			OriginTurnLevel: 1,
		}),
		messageItem(&TurnMessage{Content: "the blow glances off", Speaker: SpeakerDM, Kind: KindLive, OriginTurnID: "1"}),
	}

	got := StructuredSummarizerContextBuilder{}.Build(turn)

	if !strings.Contains(got, `<message speaker="player">I attack</message>`) {
		t.Errorf("missing player message:\n%s", got)
	}
	if !strings.Contains(got, `<reaction id="1.1" level="1">`) {
		t.Errorf("missing reaction element:\n%s", got)
	}
	// Condensate content is carried verbatim.
	if !strings.Contains(got, `<action>Shield</action>`) {
		t.Errorf("reaction content not verbatim:\n%s", got)
	}
	msgIdx := strings.Index(got, "I attack")
	reactIdx := strings.Index(got, "<reaction")
	dmIdx := strings.Index(got, "the blow glances off")
	if !(msgIdx < reactIdx && reactIdx < dmIdx) {
		t.Errorf("items out of chronological order:\n%s", got)
	}
}

func TestSummarizerBuilderStampsTurnIdentity(t *testing.T) {
	turn := &TurnContext{TurnID: "1.1", TurnLevel: 1}
	turn.Items = []TurnItem{
		messageItem(&TurnMessage{Content: "reaction", Speaker: SpeakerPlayer, Kind: KindLive, OriginTurnID: "1.1"}),
	}

	got := StructuredSummarizerContextBuilder{}.Build(turn)
	if !strings.HasPrefix(got, `<turn_log id="1.1" level="1">`) {
		t.Errorf("turn_log missing id/level attributes:\n%s", got)
	}
}

func TestFormatCacheEntry(t *testing.T) {
	e := CacheEntry{
		Name:         "Fireball",
		EntryType:    "spell",
		Level:        3,
		Description:  "explodes",
		DurationText: "instantaneous",
		School:       "evocation",
		Damage:       "8d6 fire",
	}
	got := FormatCacheEntry(e)
	want := "- Fireball (spell, level 3): explodes [Duration: instantaneous] [School: evocation] [Damage: 8d6 fire]"
	if got != want {
		t.Errorf("FormatCacheEntry = %q, want %q", got, want)
	}
}

func TestFilterByTypes(t *testing.T) {
	cache := map[string]CacheEntry{
		"haste":   {Name: "Haste", EntryType: "spell"},
		"prone":   {Name: "Prone", EntryType: "condition"},
		"rope":    {Name: "Rope", EntryType: "item"},
		"unknown": {Name: "Unknown"},
	}

	got := RulesCache{}.FilterByTypes(cache, []string{"effect", "condition", "spell"})
	if len(got) != 2 {
		t.Fatalf("filtered size = %d, want 2", len(got))
	}
	if _, ok := got["rope"]; ok {
		t.Error("item entry not filtered out")
	}
	if _, ok := got["unknown"]; ok {
		t.Error("untyped entry not filtered out")
	}
}

func TestAddEntryLowercasesKey(t *testing.T) {
	turn := &TurnContext{TurnID: "1"}
	RulesCache{}.AddEntry(CacheEntry{Name: "Mage Armor", EntryType: "spell"}, turn)
	if _, ok := turn.RulesCache["mage armor"]; !ok {
		t.Errorf("cache keys = %v, want lowercase 'mage armor'", turn.RulesCache)
	}
}
