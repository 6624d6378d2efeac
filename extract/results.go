// ABOUTME: Typed result envelopes the specialist extractors return.
// ABOUTME: The orchestrator validates these shapes; agent-internal reasoning is opaque.

package extract

// DeathSaveUpdate records a death saving throw outcome for a character.
type DeathSaveUpdate struct {
	Result string `json:"result"` // success, failure, reset
	Count  int    `json:"count"`
}

// CombatUpdate is one character's worth of combat extraction output.
type CombatUpdate struct {
	CharacterID       string           `json:"character_id"`
	HPDelta           *int             `json:"hp_delta,omitempty"`
	DamageType        string           `json:"damage_type,omitempty"`
	TempHP            *int             `json:"temp_hp,omitempty"`
	AddConditions     []string         `json:"add_conditions,omitempty"`
	RemoveConditions  []string         `json:"remove_conditions,omitempty"`
	DeathSave         *DeathSaveUpdate `json:"death_save,omitempty"`
	CombatStatChanges map[string]int   `json:"combat_stat_changes,omitempty"`
}

// CombatResult is the combat extractor's envelope.
type CombatResult struct {
	CharacterUpdates []CombatUpdate `json:"character_updates"`
	CombatInfo       map[string]any `json:"combat_info,omitempty"`
	Notes            string         `json:"notes,omitempty"`
}

// SpellSlotUse records spending or restoring one or more slots of a level.
type SpellSlotUse struct {
	Level  int    `json:"level"`
	Action string `json:"action"` // use, restore
	Count  int    `json:"count"`
}

// InventoryChange records gaining, losing, or using an item.
type InventoryChange struct {
	ItemName string `json:"item_name"`
	Action   string `json:"action"` // add, remove, use
	Quantity int    `json:"quantity"`
}

// HitDiceUse records spending or restoring hit dice.
type HitDiceUse struct {
	Action string `json:"action"` // use, restore
	Count  int    `json:"count"`
}

// ResourceUpdate is one character's worth of resource extraction output.
type ResourceUpdate struct {
	CharacterID      string            `json:"character_id"`
	SpellSlotChanges []SpellSlotUse    `json:"spell_slot_changes,omitempty"`
	InventoryChanges []InventoryChange `json:"inventory_changes,omitempty"`
	HitDiceChanges   *HitDiceUse       `json:"hit_dice_changes,omitempty"`
	AbilityChanges   map[string]int    `json:"ability_changes,omitempty"`
}

// ResourceResult is the resource extractor's envelope.
type ResourceResult struct {
	CharacterUpdates []ResourceUpdate `json:"character_updates"`
	NewCharacters    []NewCharacter   `json:"new_characters,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}

// EffectRef names an effect with an optional duration.
type EffectRef struct {
	EffectName string `json:"effect_name"`
	Duration   string `json:"duration,omitempty"`
}

// EffectUpdate is one character's worth of effect extraction output.
type EffectUpdate struct {
	CharacterID   string      `json:"character_id"`
	AddEffects    []EffectRef `json:"add_effects,omitempty"`
	RemoveEffects []EffectRef `json:"remove_effects,omitempty"`
}

// EffectResult is the effect extractor's envelope.
type EffectResult struct {
	CharacterUpdates []EffectUpdate `json:"character_updates"`
	Notes            string         `json:"notes,omitempty"`
}
