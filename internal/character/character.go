// Package character models the actors of a session: the player and the
// non-player characters, along with the timed conditions that restrict what
// they can attempt.
package character

// Type distinguishes the player from non-player characters.
type Type string

const (
	TypePlayer Type = "PLAYER"
	TypeNPC    Type = "NPC"
)

// Condition is a status restricting a character's capability to move or act.
type Condition string

const (
	ConditionBleeding      Condition = "BLEEDING"
	ConditionBlinded       Condition = "BLINDED"
	ConditionCharmed       Condition = "CHARMED"
	ConditionFrightened    Condition = "FRIGHTENED"
	ConditionGrappled      Condition = "GRAPPLED"
	ConditionIncapacitated Condition = "INCAPACITATED"
	ConditionParalyzed     Condition = "PARALYZED"
	ConditionPetrified     Condition = "PETRIFIED"
	ConditionPoisoned      Condition = "POISONED"
	ConditionProne         Condition = "PRONE"
	ConditionRestrained    Condition = "RESTRAINED"
	ConditionSilenced      Condition = "SILENCED"
	ConditionStunned       Condition = "STUNNED"
	ConditionUnconscious   Condition = "UNCONSCIOUS"
)

// ConditionInstance is an active condition on a character.
type ConditionInstance struct {
	Effect    Condition `json:"effect"`
	Duration  int       `json:"duration"` // Turns remaining, -1 for permanent
	Intensity int       `json:"intensity"`
	Source    string    `json:"source,omitempty"`
}

// Character is the mutable state of one actor.
type Character struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Kind       Type                `json:"kind"`
	HP         int                 `json:"hp"`
	MaxHP      int                 `json:"max_hp"`
	Scene      string              `json:"current_scene"`
	Zone       string              `json:"current_zone"`
	Conditions []ConditionInstance `json:"conditions,omitempty"`
	Bonuses    map[string]int      `json:"bonuses,omitempty"` // Action-type tag -> roll modifier
}

// IsAlive reports whether the character can still participate in the game.
func (c *Character) IsAlive() bool {
	return c.HP > 0
}

// incapacitating lists the conditions that prevent any action at all.
var incapacitating = map[Condition]struct{}{
	ConditionIncapacitated: {},
	ConditionUnconscious:   {},
	ConditionParalyzed:     {},
	ConditionStunned:       {},
	ConditionPetrified:     {},
}

// immobilizing lists the conditions that prevent movement but not other acts.
var immobilizing = map[Condition]struct{}{
	ConditionGrappled:   {},
	ConditionRestrained: {},
}

// CanAct reports whether the character may attempt any action this turn.
func (c *Character) CanAct() bool {
	if !c.IsAlive() {
		return false
	}
	for _, inst := range c.Conditions {
		if _, blocked := incapacitating[inst.Effect]; blocked {
			return false
		}
	}
	return true
}

// CanMove reports whether the character may attempt a movement action.
func (c *Character) CanMove() bool {
	if !c.CanAct() {
		return false
	}
	for _, inst := range c.Conditions {
		if _, blocked := immobilizing[inst.Effect]; blocked {
			return false
		}
	}
	return true
}

// HasCondition reports whether an effect is currently active.
func (c *Character) HasCondition(effect Condition) bool {
	for _, inst := range c.Conditions {
		if inst.Effect == effect {
			return true
		}
	}
	return false
}

// AddCondition applies an effect. Re-applying an active effect refreshes its
// duration and raises its intensity for stackable effects.
func (c *Character) AddCondition(inst ConditionInstance) {
	for i := range c.Conditions {
		if c.Conditions[i].Effect == inst.Effect {
			c.Conditions[i].Duration = inst.Duration
			c.Conditions[i].Intensity += inst.Intensity
			return
		}
	}
	c.Conditions = append(c.Conditions, inst)
}

// RemoveCondition clears an effect if present.
func (c *Character) RemoveCondition(effect Condition) {
	kept := c.Conditions[:0]
	for _, inst := range c.Conditions {
		if inst.Effect != effect {
			kept = append(kept, inst)
		}
	}
	c.Conditions = kept
}

// TickConditions advances all timed conditions by one turn and drops the
// expired ones. Permanent conditions (duration -1) are left alone.
func (c *Character) TickConditions() []Condition {
	var expired []Condition
	kept := c.Conditions[:0]
	for _, inst := range c.Conditions {
		if inst.Duration > 0 {
			inst.Duration--
		}
		if inst.Duration == 0 {
			expired = append(expired, inst.Effect)
			continue
		}
		kept = append(kept, inst)
	}
	c.Conditions = kept
	return expired
}

// TakeDamage reduces HP and returns the damage actually applied.
func (c *Character) TakeDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	if amount > c.HP {
		amount = c.HP
	}
	c.HP -= amount
	return amount
}

// Heal restores HP up to the maximum and returns the amount restored.
func (c *Character) Heal(amount int) int {
	if amount <= 0 {
		return 0
	}
	if c.HP+amount > c.MaxHP {
		amount = c.MaxHP - c.HP
	}
	c.HP += amount
	return amount
}

// Bonus returns the character's roll modifier for an action-type tag.
func (c *Character) Bonus(actionType string) int {
	if c.Bonuses == nil {
		return 0
	}
	return c.Bonuses[actionType]
}
