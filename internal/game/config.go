package game

import "github.com/cwhitfield/fablecore/internal/action"

// Default validation thresholds. Misidentifying an attack target is costlier
// than misreading an exit, so combat matching demands a stronger score.
const (
	DefaultExitThreshold   = 0.35
	DefaultTargetThreshold = 0.60
)

// DefaultMaxInvalidAttempts bounds the parse-retry loop of a player turn.
const DefaultMaxInvalidAttempts = 3

// Config holds orchestrator tuning options.
type Config struct {
	// MaxInvalidAttempts bounds how often a player turn re-requests a parse
	// before yielding the attempts-exhausted outcome. 0 means the default.
	MaxInvalidAttempts int

	// ExitThreshold is the resolver acceptance score for movement targets.
	// 0 means the default.
	ExitThreshold float64

	// TargetThreshold is the resolver acceptance score for combat targets.
	// 0 means the default.
	TargetThreshold float64

	// Difficulty overrides the per-action-type difficulty table.
	Difficulty map[action.Type]int
}

// defaultDifficulty is the baseline difficulty table for the d20-style
// rule-sets. Rule-set-specific scaling belongs to the caller via
// Config.Difficulty.
var defaultDifficulty = map[action.Type]int{
	action.TypeMovement: 10,
	action.TypeAttack:   12,
	action.TypeSpell:    13,
	action.TypeSocial:   11,
	action.TypeInteract: 10,
}

func (c Config) maxInvalidAttempts() int {
	if c.MaxInvalidAttempts > 0 {
		return c.MaxInvalidAttempts
	}
	return DefaultMaxInvalidAttempts
}

func (c Config) exitThreshold() float64 {
	if c.ExitThreshold > 0 {
		return c.ExitThreshold
	}
	return DefaultExitThreshold
}

func (c Config) targetThreshold() float64 {
	if c.TargetThreshold > 0 {
		return c.TargetThreshold
	}
	return DefaultTargetThreshold
}

func (c Config) difficultyFor(t action.Type) int {
	if c.Difficulty != nil {
		if d, ok := c.Difficulty[t]; ok {
			return d
		}
	}
	return defaultDifficulty[t]
}
