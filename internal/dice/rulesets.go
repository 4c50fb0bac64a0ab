package dice

import "github.com/cwhitfield/fablecore/internal/action"

// combatAction reports whether an action type uses combat outcome tags.
func combatAction(t action.Type) bool {
	return t == action.TypeAttack || t == action.TypeSpell
}

// =============================================================================
// D20
// =============================================================================

// D20 is the d20-against-difficulty rule-set: one d20 plus a flat modifier,
// advantage and disadvantage roll twice, natural 20 crits and natural 1
// fumbles on a miss.
type D20 struct{}

func (D20) Name() string { return "d20" }

func (D20) RawRoll(r *Roller, mods Modifiers) []int {
	switch {
	case mods.Advantage:
		kept, _ := r.Advantage(20)
		return []int{kept}
	case mods.Disadvantage:
		kept, _ := r.Disadvantage(20)
		return []int{kept}
	default:
		return []int{r.RollDie(20)}
	}
}

func (D20) Total(raw []int, mods Modifiers) int {
	return sumOf(raw) + mods.Modifier
}

func (D20) Outcome(total, difficulty int, actionType action.Type) (bool, Outcome) {
	combat := combatAction(actionType)
	if total < difficulty {
		if combat {
			return false, OutcomeMiss
		}
		return false, OutcomeFailure
	}
	switch {
	case total >= 20:
		if combat {
			return true, OutcomeCritical
		}
		return true, OutcomeOutstandingSuccess
	case total >= 18:
		if combat {
			return true, OutcomeWound
		}
		return true, OutcomeGreatSuccess
	default:
		if combat {
			return true, OutcomeWound
		}
		return true, OutcomeSuccess
	}
}

func (D20) Critical(raw []int, hit bool, actionType action.Type) bool {
	return maxOf(raw) == 20 && combatAction(actionType)
}

func (D20) Fumble(raw []int, hit bool, actionType action.Type) bool {
	return minOf(raw) == 1 && !hit
}

// =============================================================================
// ExplodingD10
// =============================================================================

// ExplodingD10 is a d10 rule-set where the die explodes on its maximum face
// and success tiers sit at difficulty offsets.
type ExplodingD10 struct{}

func (ExplodingD10) Name() string { return "exploding_d10" }

func (ExplodingD10) RawRoll(r *Roller, mods Modifiers) []int {
	_, rolls := r.Exploding(10)
	return rolls
}

func (ExplodingD10) Total(raw []int, mods Modifiers) int {
	return sumOf(raw) + mods.Modifier
}

func (ExplodingD10) Outcome(total, difficulty int, actionType action.Type) (bool, Outcome) {
	switch {
	case total >= difficulty+10:
		return true, "spectacular_success"
	case total >= difficulty+5:
		return true, OutcomeGreatSuccess
	case total >= difficulty:
		return true, OutcomeSuccess
	case total >= difficulty-5:
		return false, "near_miss"
	default:
		return false, OutcomeFailure
	}
}

// Critical flags any roll that exploded at least once.
func (ExplodingD10) Critical(raw []int, hit bool, actionType action.Type) bool {
	return len(raw) > 1
}

func (ExplodingD10) Fumble(raw []int, hit bool, actionType action.Type) bool {
	return len(raw) > 0 && raw[0] == 1 && !hit
}

// =============================================================================
// DicePool
// =============================================================================

// DicePool is a d10 dice-pool rule-set: the total counts successes against a
// per-die target number rather than summing faces. Tens count double, ones
// subtract, and an all-ones result botches.
type DicePool struct {
	// DefaultTarget is the per-die target number used when the modifier bag
	// carries none.
	DefaultTarget int
}

func (DicePool) Name() string { return "dice_pool" }

func (DicePool) RawRoll(r *Roller, mods Modifiers) []int {
	pool := mods.DicePool
	if pool < 1 {
		pool = 1
	}
	return r.RollDice(pool, 10)
}

func (p DicePool) Total(raw []int, mods Modifiers) int {
	target := mods.Target
	if target == 0 {
		target = p.DefaultTarget
	}
	if target == 0 {
		target = 6
	}

	successes, tens, ones := 0, 0, 0
	for _, v := range raw {
		if v >= target {
			successes++
		}
		if v == 10 {
			tens++
		}
		if v == 1 {
			ones++
		}
	}
	successes += tens // tens count as two successes

	if successes == 0 && ones > 0 {
		return -ones // botch
	}
	if successes-ones < 0 {
		return 0
	}
	return successes - ones
}

func (DicePool) Outcome(total, difficulty int, actionType action.Type) (bool, Outcome) {
	switch {
	case total < 0:
		return false, "botch"
	case total == 0:
		return false, OutcomeFailure
	case total >= 5:
		return true, "exceptional_success"
	case total >= 3:
		return true, OutcomeGreatSuccess
	default:
		return true, OutcomeSuccess
	}
}

// =============================================================================
// WildDie
// =============================================================================

// WildDie is a trait-die-plus-wild-die rule-set: both dice explode, the
// higher result stands, and raises sit at difficulty offsets.
type WildDie struct{}

func (WildDie) Name() string { return "wild_die" }

func (WildDie) RawRoll(r *Roller, mods Modifiers) []int {
	traitDie := mods.TraitDie
	if traitDie == 0 {
		traitDie = 6
	}
	trait, _ := r.Exploding(traitDie)
	wild, _ := r.Exploding(6)
	return []int{trait, wild}
}

func (WildDie) Total(raw []int, mods Modifiers) int {
	return maxOf(raw) + mods.Modifier
}

func (WildDie) Outcome(total, difficulty int, actionType action.Type) (bool, Outcome) {
	switch {
	case total >= difficulty+8:
		return true, "legendary_success"
	case total >= difficulty+4:
		return true, OutcomeGreatSuccess
	case total >= difficulty:
		return true, OutcomeSuccess
	default:
		return false, OutcomeFailure
	}
}

// =============================================================================
// Fudge
// =============================================================================

// Fudge is the four-three-valued-dice rule-set: 4dF plus skill, with outcome
// tiers keyed to the shift above or below the difficulty.
type Fudge struct{}

func (Fudge) Name() string { return "fudge" }

func (Fudge) RawRoll(r *Roller, mods Modifiers) []int {
	_, rolls := r.Fudge(4)
	return rolls
}

func (Fudge) Total(raw []int, mods Modifiers) int {
	return sumOf(raw) + mods.Skill
}

func (Fudge) Outcome(total, difficulty int, actionType action.Type) (bool, Outcome) {
	shift := total - difficulty
	switch {
	case shift >= 3:
		return true, "epic_success"
	case shift >= 1:
		return true, OutcomeSuccess
	case shift == 0:
		return true, "tie"
	case shift >= -2:
		return false, OutcomeFailure
	default:
		return false, "critical_failure"
	}
}
