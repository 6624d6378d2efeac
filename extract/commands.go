// ABOUTME: The ExtractionCommand sum type: structured state updates derived from narration.
// ABOUTME: Commands carry an ordering rank so appliers see damage before its consequences.

package extract

// Command is the sum type produced by the orchestrator's merge phase. Each
// variant names the character it applies to and its ordering rank: HP changes
// first, then conditions and effects, then resources, then death saves, then
// new characters.
type Command interface {
	// Character returns the id of the character the command applies to.
	Character() string

	// rank orders commands for the applier. Lower ranks apply first.
	rank() int
}

const (
	rankHP = iota
	rankConditionEffect
	rankResource
	rankDeathSave
	rankNewCharacter
)

// HPChange adjusts a character's hit points by a signed delta.
type HPChange struct {
	CharacterID string
	Delta       int
	DamageType  string
	IsTempHP    bool
}

func (c HPChange) Character() string { return c.CharacterID }
func (c HPChange) rank() int         { return rankHP }

// ConditionChange adds or removes a condition.
type ConditionChange struct {
	CharacterID   string
	Action        string // add, remove
	ConditionName string
}

func (c ConditionChange) Character() string { return c.CharacterID }
func (c ConditionChange) rank() int         { return rankConditionEffect }

// EffectChange adds or removes a named effect with an optional duration.
type EffectChange struct {
	CharacterID string
	Action      string // add, remove
	EffectName  string
	Duration    string
}

func (c EffectChange) Character() string { return c.CharacterID }
func (c EffectChange) rank() int         { return rankConditionEffect }

// SpellSlotChange spends or restores slots of one level.
type SpellSlotChange struct {
	CharacterID string
	Level       int    // 1-9
	Action      string // use, restore
	Count       int
}

func (c SpellSlotChange) Character() string { return c.CharacterID }
func (c SpellSlotChange) rank() int         { return rankResource }

// HitDiceChange spends or restores hit dice.
type HitDiceChange struct {
	CharacterID string
	Action      string // use, restore
	Count       int
}

func (c HitDiceChange) Character() string { return c.CharacterID }
func (c HitDiceChange) rank() int         { return rankResource }

// ItemChange adjusts inventory.
type ItemChange struct {
	CharacterID string
	Action      string // add, remove, use
	ItemName    string
	Quantity    int
}

func (c ItemChange) Character() string { return c.CharacterID }
func (c ItemChange) rank() int         { return rankResource }

// DeathSaveChange records a death saving throw result.
type DeathSaveChange struct {
	CharacterID string
	Result      string // success, failure, reset
	Count       int
}

func (c DeathSaveChange) Character() string { return c.CharacterID }
func (c DeathSaveChange) rank() int         { return rankDeathSave }

// NewCharacter introduces a character the narration brought on stage.
type NewCharacter struct {
	Identifier string         `json:"identifier"`
	Kind       string         `json:"kind"`
	BasicStats map[string]any `json:"basic_stats,omitempty"`
}

func (c NewCharacter) Character() string { return c.Identifier }
func (c NewCharacter) rank() int         { return rankNewCharacter }

// ExtractionResult is the orchestrator's merged output.
type ExtractionResult struct {
	Commands      []Command
	NewCharacters []NewCharacter
	CombatInfo    map[string]any
	Notes         []string
}
