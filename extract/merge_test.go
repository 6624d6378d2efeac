// ABOUTME: Tests for deterministic merge ordering and per-character deduplication.
// ABOUTME: Verifies HP commands precede condition, resource, and death-save commands for each character.

package extract

import (
	"testing"
)

func rankOf(c Command) int { return c.rank() }

func TestCommandOrderingAcrossRanks(t *testing.T) {
	combat := &CombatResult{CharacterUpdates: []CombatUpdate{
		{
			CharacterID:   "orc",
			HPDelta:       intPtr(-8),
			DamageType:    "slashing",
			AddConditions: []string{"prone"},
			DeathSave:     &DeathSaveUpdate{Result: "failure", Count: 1},
		},
	}}
	resource := &ResourceResult{CharacterUpdates: []ResourceUpdate{
		{CharacterID: "orc", InventoryChanges: []InventoryChange{{ItemName: "shield", Action: "remove", Quantity: 1}}},
	}}
	effect := &EffectResult{CharacterUpdates: []EffectUpdate{
		{CharacterID: "orc", AddEffects: []EffectRef{{EffectName: "stunned", Duration: "1 round"}}},
	}}

	result := mergeResults(combat, resource, effect, nil)

	lastRank := -1
	for i, cmd := range result.Commands {
		if rankOf(cmd) < lastRank {
			t.Fatalf("command %d (%T) out of rank order: %+v", i, cmd, result.Commands)
		}
		lastRank = rankOf(cmd)
	}

	// HP before conditions/effects before resources before death saves.
	var idxHP, idxCond, idxItem, idxDeath int = -1, -1, -1, -1
	for i, cmd := range result.Commands {
		switch cmd.(type) {
		case HPChange:
			idxHP = i
		case ConditionChange:
			idxCond = i
		case ItemChange:
			idxItem = i
		case DeathSaveChange:
			idxDeath = i
		}
	}
	if !(idxHP < idxCond && idxCond < idxItem && idxItem < idxDeath) {
		t.Errorf("ordering hp=%d cond=%d item=%d death=%d: %+v", idxHP, idxCond, idxItem, idxDeath, result.Commands)
	}
}

func TestCommandOrderingTiesByCharacter(t *testing.T) {
	combat := &CombatResult{CharacterUpdates: []CombatUpdate{
		{CharacterID: "zombie", HPDelta: intPtr(-4)},
		{CharacterID: "archer", HPDelta: intPtr(-2)},
	}}

	result := mergeResults(combat, nil, nil, nil)
	if len(result.Commands) != 2 {
		t.Fatalf("commands = %+v", result.Commands)
	}
	if result.Commands[0].Character() != "archer" || result.Commands[1].Character() != "zombie" {
		t.Errorf("tie order = %s, %s, want archer then zombie",
			result.Commands[0].Character(), result.Commands[1].Character())
	}
}

func TestDedupeCombatMergesSameCharacter(t *testing.T) {
	combat := &CombatResult{CharacterUpdates: []CombatUpdate{
		{CharacterID: "orc", HPDelta: intPtr(-3)},
		{CharacterID: "orc", AddConditions: []string{"prone"}},
	}}

	result := mergeResults(combat, nil, nil, nil)
	if len(result.Commands) != 2 {
		t.Fatalf("commands = %+v, want HPChange + ConditionChange", result.Commands)
	}
	hp, ok := result.Commands[0].(HPChange)
	if !ok || hp.Delta != -3 {
		t.Errorf("first command = %+v", result.Commands[0])
	}
	cond, ok := result.Commands[1].(ConditionChange)
	if !ok || cond.ConditionName != "prone" {
		t.Errorf("second command = %+v", result.Commands[1])
	}
}

func TestTempHPBecomesFlaggedHPChange(t *testing.T) {
	combat := &CombatResult{CharacterUpdates: []CombatUpdate{
		{CharacterID: "elara", TempHP: intPtr(5)},
	}}

	result := mergeResults(combat, nil, nil, nil)
	if len(result.Commands) != 1 {
		t.Fatalf("commands = %+v", result.Commands)
	}
	hp := result.Commands[0].(HPChange)
	if !hp.IsTempHP || hp.Delta != 5 {
		t.Errorf("HPChange = %+v", hp)
	}
}

func TestInvalidSpellSlotLevelDropped(t *testing.T) {
	resource := &ResourceResult{CharacterUpdates: []ResourceUpdate{
		{CharacterID: "elara", SpellSlotChanges: []SpellSlotUse{
			{Level: 12, Action: "use"},
			{Level: 2, Action: "use"},
		}},
	}}

	result := mergeResults(nil, resource, nil, nil)
	if len(result.Commands) != 1 {
		t.Fatalf("commands = %+v, want one valid slot change", result.Commands)
	}
	slot := result.Commands[0].(SpellSlotChange)
	if slot.Level != 2 || slot.Count != 1 {
		t.Errorf("SpellSlotChange = %+v", slot)
	}
	if len(result.Notes) == 0 {
		t.Error("dropped slot change should be noted")
	}
}

func TestNewCharactersLastAndSurfaced(t *testing.T) {
	resource := &ResourceResult{
		CharacterUpdates: []ResourceUpdate{
			{CharacterID: "goblin", InventoryChanges: []InventoryChange{{ItemName: "dagger", Action: "add", Quantity: 1}}},
		},
		NewCharacters: []NewCharacter{{Identifier: "goblin", Kind: "monster"}},
	}

	result := mergeResults(nil, resource, nil, nil)
	if len(result.NewCharacters) != 1 {
		t.Fatalf("new characters = %+v", result.NewCharacters)
	}
	last := result.Commands[len(result.Commands)-1]
	if _, ok := last.(NewCharacter); !ok {
		t.Errorf("last command = %T, want NewCharacter", last)
	}
}

func TestCombatInfoCarriedThrough(t *testing.T) {
	combat := &CombatResult{CombatInfo: map[string]any{"round": 3}}
	result := mergeResults(combat, nil, nil, nil)
	if result.CombatInfo["round"] != 3 {
		t.Errorf("combat info = %v", result.CombatInfo)
	}
}
