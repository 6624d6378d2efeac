// ABOUTME: Deterministic merge of specialist extractor results into an ordered command list.
// ABOUTME: Dedupe by character, then rank commands so damage lands before its consequences.

package extract

import (
	"fmt"
	"sort"
)

// mergeResults collapses the surviving extractor results into one
// ExtractionResult. Per-character updates are deduplicated field-wise within
// each extractor, then flattened to commands ordered by rank (HP, then
// conditions and effects, then resources, then death saves, then new
// characters), with ties broken by character id and then insertion order.
func mergeResults(combat *CombatResult, resource *ResourceResult, effect *EffectResult, notes []string) ExtractionResult {
	result := ExtractionResult{Notes: notes}

	var commands []Command

	if combat != nil {
		for _, u := range dedupeCombat(combat.CharacterUpdates) {
			commands = append(commands, combatCommands(u)...)
		}
		if len(combat.CombatInfo) > 0 {
			result.CombatInfo = combat.CombatInfo
		}
		if combat.Notes != "" {
			result.Notes = append(result.Notes, combat.Notes)
		}
	}

	if resource != nil {
		for _, u := range dedupeResource(resource.CharacterUpdates) {
			cmds, noteList := resourceCommands(u)
			commands = append(commands, cmds...)
			result.Notes = append(result.Notes, noteList...)
		}
		for _, nc := range resource.NewCharacters {
			commands = append(commands, nc)
			result.NewCharacters = append(result.NewCharacters, nc)
		}
		if resource.Notes != "" {
			result.Notes = append(result.Notes, resource.Notes)
		}
	}

	if effect != nil {
		for _, u := range dedupeEffect(effect.CharacterUpdates) {
			commands = append(commands, effectCommands(u)...)
		}
		if effect.Notes != "" {
			result.Notes = append(result.Notes, effect.Notes)
		}
	}

	// Stable sort keeps insertion order within equal (rank, character) keys.
	sort.SliceStable(commands, func(i, j int) bool {
		if commands[i].rank() != commands[j].rank() {
			return commands[i].rank() < commands[j].rank()
		}
		return commands[i].Character() < commands[j].Character()
	})

	result.Commands = commands
	return result
}

func combatCommands(u CombatUpdate) []Command {
	var cmds []Command
	if u.HPDelta != nil {
		cmds = append(cmds, HPChange{CharacterID: u.CharacterID, Delta: *u.HPDelta, DamageType: u.DamageType})
	}
	if u.TempHP != nil {
		cmds = append(cmds, HPChange{CharacterID: u.CharacterID, Delta: *u.TempHP, IsTempHP: true})
	}
	for _, c := range u.AddConditions {
		cmds = append(cmds, ConditionChange{CharacterID: u.CharacterID, Action: "add", ConditionName: c})
	}
	for _, c := range u.RemoveConditions {
		cmds = append(cmds, ConditionChange{CharacterID: u.CharacterID, Action: "remove", ConditionName: c})
	}
	if u.DeathSave != nil {
		count := u.DeathSave.Count
		if count == 0 {
			count = 1
		}
		cmds = append(cmds, DeathSaveChange{CharacterID: u.CharacterID, Result: u.DeathSave.Result, Count: count})
	}
	return cmds
}

func resourceCommands(u ResourceUpdate) ([]Command, []string) {
	var cmds []Command
	var notes []string

	for _, s := range u.SpellSlotChanges {
		if s.Level < 1 || s.Level > 9 {
			notes = append(notes, fmt.Sprintf("dropped spell slot change with invalid level %d for %s", s.Level, u.CharacterID))
			continue
		}
		count := s.Count
		if count == 0 {
			count = 1
		}
		cmds = append(cmds, SpellSlotChange{CharacterID: u.CharacterID, Level: s.Level, Action: s.Action, Count: count})
	}
	for _, inv := range u.InventoryChanges {
		qty := inv.Quantity
		if qty == 0 {
			qty = 1
		}
		cmds = append(cmds, ItemChange{CharacterID: u.CharacterID, Action: inv.Action, ItemName: inv.ItemName, Quantity: qty})
	}
	if u.HitDiceChanges != nil {
		count := u.HitDiceChanges.Count
		if count == 0 {
			count = 1
		}
		cmds = append(cmds, HitDiceChange{CharacterID: u.CharacterID, Action: u.HitDiceChanges.Action, Count: count})
	}
	if len(u.AbilityChanges) > 0 {
		notes = append(notes, fmt.Sprintf("ability changes for %s recorded but not commanded: %v", u.CharacterID, u.AbilityChanges))
	}
	return cmds, notes
}

func effectCommands(u EffectUpdate) []Command {
	var cmds []Command
	for _, e := range u.AddEffects {
		cmds = append(cmds, EffectChange{CharacterID: u.CharacterID, Action: "add", EffectName: e.EffectName, Duration: e.Duration})
	}
	for _, e := range u.RemoveEffects {
		cmds = append(cmds, EffectChange{CharacterID: u.CharacterID, Action: "remove", EffectName: e.EffectName})
	}
	return cmds
}

// dedupeCombat merges updates that name the same character: later non-nil
// scalars overwrite, condition lists concatenate.
func dedupeCombat(updates []CombatUpdate) []CombatUpdate {
	var order []string
	byID := make(map[string]*CombatUpdate)

	for _, u := range updates {
		existing, ok := byID[u.CharacterID]
		if !ok {
			cp := u
			byID[u.CharacterID] = &cp
			order = append(order, u.CharacterID)
			continue
		}
		if u.HPDelta != nil {
			existing.HPDelta = u.HPDelta
		}
		if u.DamageType != "" {
			existing.DamageType = u.DamageType
		}
		if u.TempHP != nil {
			existing.TempHP = u.TempHP
		}
		existing.AddConditions = append(existing.AddConditions, u.AddConditions...)
		existing.RemoveConditions = append(existing.RemoveConditions, u.RemoveConditions...)
		if u.DeathSave != nil {
			existing.DeathSave = u.DeathSave
		}
		for k, v := range u.CombatStatChanges {
			if existing.CombatStatChanges == nil {
				existing.CombatStatChanges = make(map[string]int)
			}
			existing.CombatStatChanges[k] = v
		}
	}

	out := make([]CombatUpdate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func dedupeResource(updates []ResourceUpdate) []ResourceUpdate {
	var order []string
	byID := make(map[string]*ResourceUpdate)

	for _, u := range updates {
		existing, ok := byID[u.CharacterID]
		if !ok {
			cp := u
			byID[u.CharacterID] = &cp
			order = append(order, u.CharacterID)
			continue
		}
		existing.SpellSlotChanges = append(existing.SpellSlotChanges, u.SpellSlotChanges...)
		existing.InventoryChanges = append(existing.InventoryChanges, u.InventoryChanges...)
		if u.HitDiceChanges != nil {
			existing.HitDiceChanges = u.HitDiceChanges
		}
		for k, v := range u.AbilityChanges {
			if existing.AbilityChanges == nil {
				existing.AbilityChanges = make(map[string]int)
			}
			existing.AbilityChanges[k] = v
		}
	}

	out := make([]ResourceUpdate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func dedupeEffect(updates []EffectUpdate) []EffectUpdate {
	var order []string
	byID := make(map[string]*EffectUpdate)

	for _, u := range updates {
		existing, ok := byID[u.CharacterID]
		if !ok {
			cp := u
			byID[u.CharacterID] = &cp
			order = append(order, u.CharacterID)
			continue
		}
		existing.AddEffects = append(existing.AddEffects, u.AddEffects...)
		existing.RemoveEffects = append(existing.RemoveEffects, u.RemoveEffects...)
	}

	out := make([]EffectUpdate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
