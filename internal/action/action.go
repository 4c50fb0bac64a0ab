// Package action defines the records exchanged between the parser, the
// validators, the dice engine, and the narrator.
package action

import "github.com/cwhitfield/fablecore/internal/character"

// Type tags a parsed action with the handler responsible for it.
type Type string

const (
	TypeAttack   Type = "attack"
	TypeSpell    Type = "spell"
	TypeSocial   Type = "social"
	TypeMovement Type = "movement"
	TypeInteract Type = "interact"
)

// Known reports whether the tag maps to a registered handler.
func (t Type) Known() bool {
	switch t {
	case TypeAttack, TypeSpell, TypeSocial, TypeMovement, TypeInteract:
		return true
	default:
		return false
	}
}

// Parsed is the structured intent extracted from free text by the model
// collaborator. It is immutable except that validation may replace Target
// with a resolved canonical identifier.
type Parsed struct {
	Actor     string         // Acting character's name
	ActorType character.Type // Player or NPC
	Action    string         // Free-text description of the attempt
	Target    string         // Optional target or exit, raw until validated
	Weapon    string         // Optional weapon
	Subject   string         // Optional conversation subject
	Type      Type           // Dispatch tag
}

// WithTarget returns a copy with the target replaced by a canonical id.
func (p Parsed) WithTarget(target string) Parsed {
	p.Target = target
	return p
}

// Validation is the outcome of checking a parsed action against game state.
// A failed validation is an expected, player-facing condition, not an error.
type Validation struct {
	Valid     bool
	Reason    string  // Player-facing explanation when invalid
	Suggested string  // Optional hint ("wait until you can move again")
	Parsed    *Parsed // Replacement action with canonicalized target, if any
}

// Invalid builds a failed validation with a player-facing reason.
func Invalid(reason string) Validation {
	return Validation{Valid: false, Reason: reason}
}

// Valid builds a passing validation carrying the canonicalized action.
func Valid(parsed Parsed) Validation {
	return Validation{Valid: true, Parsed: &parsed}
}

// Result pairs a resolved action with its outcome. Created once per resolved
// action and never mutated afterwards.
type Result struct {
	Parsed     Parsed
	Hit        bool
	Roll       int    // Final dice total
	Outcome    string // Rule-set outcome category
	Narration  string
	Difficulty int
}
