// Package dice implements the pluggable dice-resolution engine. A Roller
// binds a random source to a RuleSet; the rule-set supplies the three
// policies (raw roll, total, outcome) that turn a difficulty and a modifier
// bag into a Result.
package dice

import (
	"math/rand"
	"sort"
	"time"

	"github.com/cwhitfield/fablecore/internal/action"
)

// Outcome is a rule-set-defined tag describing how a resolved action turned
// out. The set is open: new rule-sets may introduce their own tags.
type Outcome string

const (
	OutcomeCritical           Outcome = "critical"
	OutcomeWound              Outcome = "wound"
	OutcomeMiss               Outcome = "miss"
	OutcomeSuccess            Outcome = "success"
	OutcomeGreatSuccess       Outcome = "great_success"
	OutcomeOutstandingSuccess Outcome = "outstanding_success"
	OutcomeFailure            Outcome = "failure"
)

// Modifiers is the bag of roll inputs an actor or scene contributes.
type Modifiers struct {
	Modifier     int  // Flat bonus added to the total
	Advantage    bool // Roll twice, keep the higher
	Disadvantage bool // Roll twice, keep the lower
	DicePool     int  // Pool size for pool-based rule-sets
	TraitDie     int  // Trait die sides for wild-die rule-sets
	Skill        int  // Skill level for shift-based rule-sets
	Target       int  // Per-die target number for pool-based rule-sets
}

// Result is the standardized outcome of a single action roll. Created fresh
// per roll and never mutated.
type Result struct {
	Raw      []int
	Total    int
	Hit      bool
	Outcome  Outcome
	Critical bool
	Fumble   bool
	Mods     Modifiers
}

// RuleSet supplies the game-system-specific policies of an action roll.
type RuleSet interface {
	// Name identifies the rule-set in the factory.
	Name() string
	// RawRoll produces the raw die values for an action roll.
	RawRoll(r *Roller, mods Modifiers) []int
	// Total computes the final total from the raw roll and the modifier bag.
	Total(raw []int, mods Modifiers) int
	// Outcome maps (total, difficulty, action type) to a hit flag and an
	// outcome category.
	Outcome(total, difficulty int, actionType action.Type) (bool, Outcome)
}

// CriticalRule is an optional predicate a rule-set may implement to flag
// critical successes.
type CriticalRule interface {
	Critical(raw []int, hit bool, actionType action.Type) bool
}

// FumbleRule is an optional predicate a rule-set may implement to flag
// critical failures.
type FumbleRule interface {
	Fumble(raw []int, hit bool, actionType action.Type) bool
}

// Roller binds a rule-set to a random source and exposes the rolling
// primitives rule-sets compose.
type Roller struct {
	rules RuleSet

	// roll produces one die value in [1, sides]. Swappable in tests for
	// scripted sequences.
	roll func(sides int) int
}

// NewRoller creates a roller for the given rule-set. A seed of 0 picks a
// time-based seed; any other value makes every roll sequence reproducible.
func NewRoller(rules RuleSet, seed int64) *Roller {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return &Roller{
		rules: rules,
		roll: func(sides int) int {
			return rng.Intn(sides) + 1
		},
	}
}

// NewRollerWithSource creates a roller drawing die values from a custom
// source. Simulations and tests use it for scripted sequences.
func NewRollerWithSource(rules RuleSet, roll func(sides int) int) *Roller {
	return &Roller{rules: rules, roll: roll}
}

// Rules returns the bound rule-set.
func (r *Roller) Rules() RuleSet { return r.rules }

// RollDie rolls a single die.
func (r *Roller) RollDie(sides int) int {
	return r.roll(sides)
}

// RollDice rolls count dice and returns every value.
func (r *Roller) RollDice(count, sides int) []int {
	values := make([]int, count)
	for i := range values {
		values[i] = r.roll(sides)
	}
	return values
}

// RollSum rolls count dice and returns their sum plus a flat modifier.
func (r *Roller) RollSum(count, sides, modifier int) int {
	total := modifier
	for _, v := range r.RollDice(count, sides) {
		total += v
	}
	return total
}

// Advantage rolls twice and keeps the higher value.
func (r *Roller) Advantage(sides int) (int, []int) {
	rolls := r.RollDice(2, sides)
	return maxOf(rolls), rolls
}

// Disadvantage rolls twice and keeps the lower value.
func (r *Roller) Disadvantage(sides int) (int, []int) {
	rolls := r.RollDice(2, sides)
	return minOf(rolls), rolls
}

// Exploding rolls a die and keeps rolling while the maximum face recurs,
// accumulating the total.
func (r *Roller) Exploding(sides int) (int, []int) {
	total := 0
	var rolls []int
	for {
		v := r.roll(sides)
		rolls = append(rolls, v)
		total += v
		if v != sides {
			return total, rolls
		}
	}
}

// KeepHighest rolls count dice and sums only the highest keep of them.
func (r *Roller) KeepHighest(count, sides, keep int) (int, []int) {
	rolls := r.RollDice(count, sides)
	sorted := append([]int(nil), rolls...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	return sumOf(sorted[:keep]), rolls
}

// KeepLowest rolls count dice and sums only the lowest keep of them.
func (r *Roller) KeepLowest(count, sides, keep int) (int, []int) {
	rolls := r.RollDice(count, sides)
	sorted := append([]int(nil), rolls...)
	sort.Ints(sorted)
	return sumOf(sorted[:keep]), rolls
}

// Fudge rolls count three-valued dice (-1, 0, +1) from d6 halves.
func (r *Roller) Fudge(count int) (int, []int) {
	rolls := make([]int, count)
	total := 0
	for i := range rolls {
		switch v := r.roll(6); {
		case v <= 2:
			rolls[i] = -1
		case v <= 4:
			rolls[i] = 0
		default:
			rolls[i] = 1
		}
		total += rolls[i]
	}
	return total, rolls
}

// RollAction resolves one action attempt against a difficulty using the
// bound rule-set's policies.
func (r *Roller) RollAction(difficulty int, actionType action.Type, mods Modifiers) Result {
	raw := r.rules.RawRoll(r, mods)
	total := r.rules.Total(raw, mods)
	hit, outcome := r.rules.Outcome(total, difficulty, actionType)

	result := Result{
		Raw:     raw,
		Total:   total,
		Hit:     hit,
		Outcome: outcome,
		Mods:    mods,
	}
	if crit, ok := r.rules.(CriticalRule); ok {
		result.Critical = crit.Critical(raw, hit, actionType)
	}
	if fumble, ok := r.rules.(FumbleRule); ok {
		result.Fumble = fumble.Fumble(raw, hit, actionType)
	}
	return result
}

func sumOf(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func maxOf(values []int) int {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

func minOf(values []int) int {
	best := values[0]
	for _, v := range values[1:] {
		if v < best {
			best = v
		}
	}
	return best
}
