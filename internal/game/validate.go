package game

import (
	"context"
	"fmt"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/match"
	"github.com/cwhitfield/fablecore/internal/scene"
)

// validatorFunc checks one parsed action for the given actor against the
// current scene. A failed validation is player-facing, never an error.
type validatorFunc func(ctx context.Context, actor *character.Character, parsed action.Parsed, sc scene.Scene) action.Validation

// newValidators builds the per-action-type validation table.
func newValidators(e *Engine) map[action.Type]validatorFunc {
	return map[action.Type]validatorFunc{
		action.TypeMovement: e.validateMovement,
		action.TypeAttack:   e.validateAttack,
		action.TypeSpell:    e.validateGeneral,
		action.TypeSocial:   e.validateGeneral,
		action.TypeInteract: e.validateGeneral,
	}
}

// validate dispatches a parsed action to its type's validator. Player and NPC
// actions travel the same path; the actor decides which entities are legal
// targets.
func (e *Engine) validate(ctx context.Context, actor *character.Character, parsed action.Parsed) action.Validation {
	sc, err := e.scenes.GetScene(e.state.SceneID)
	if err != nil {
		e.log.Errorw("validation could not read scene", "scene", e.state.SceneID, "err", err)
		return action.Invalid("The world shifts strangely; try again.")
	}
	fn, ok := e.validators[parsed.Type]
	if !ok {
		return action.Invalid(fmt.Sprintf("You cannot %s here.", parsed.Action))
	}
	return fn(ctx, actor, parsed, sc)
}

// validateMovement resolves the target against the scene's exits and checks
// passability. The resolved action carries the canonical exit id.
func (e *Engine) validateMovement(_ context.Context, actor *character.Character, parsed action.Parsed, sc scene.Scene) action.Validation {
	if !actor.CanMove() {
		return action.Validation{
			Valid:     false,
			Reason:    "You are held fast and cannot move.",
			Suggested: "Break free or wait for the effect to pass.",
		}
	}
	if len(sc.Exits) == 0 {
		return action.Invalid("There is no way out of here.")
	}

	query := parsed.Target
	if query == "" {
		query = parsed.Action
	}
	candidates := make([]match.Candidate, len(sc.Exits))
	for i, exit := range sc.Exits {
		candidates[i] = match.Candidate{ID: exit.ID, Label: exit.Label}
	}
	chosen, ok := e.exitResolver.Resolve(query, candidates)
	if !ok {
		return action.Invalid(fmt.Sprintf("You don't see a way to %q from here.", query))
	}

	exit, _ := sc.ExitByID(chosen.ID)
	if exit.Blocked != nil && exit.Blocked.Active {
		reason := exit.Blocked.Reason
		if reason == "" {
			reason = fmt.Sprintf("The way to %s is blocked.", exit.Label)
		}
		return action.Invalid(reason)
	}
	if exit.Locked != nil && exit.Locked.Active {
		v := action.Invalid(fmt.Sprintf("The %s is locked.", exit.Label))
		if req := exit.Locked.Requirement; req != nil && req.Key != "" {
			v.Suggested = "It looks like it needs a key."
		}
		return v
	}
	return action.Valid(parsed.WithTarget(exit.ID))
}

// validateAttack resolves the target at the combat threshold: the player
// attacks the scene's NPCs, an NPC attacks the player. Attacking nothing, or
// a corpse, fails without a roll.
func (e *Engine) validateAttack(_ context.Context, actor *character.Character, parsed action.Parsed, sc scene.Scene) action.Validation {
	if !actor.CanAct() {
		return action.Invalid("You are in no state to fight.")
	}
	if parsed.Target == "" {
		return action.Invalid("Attack what?")
	}

	if actor.Kind != character.TypePlayer {
		chosen, ok := e.targetResolver.Resolve(parsed.Target, []match.Candidate{
			{ID: e.player.ID, Label: e.player.Name},
		})
		if !ok {
			return action.Invalid(fmt.Sprintf("%s has no %s to attack.", actor.Name, parsed.Target))
		}
		if !e.player.IsAlive() {
			return action.Invalid(fmt.Sprintf("%s is already down.", e.player.Name))
		}
		return action.Valid(parsed.WithTarget(chosen.ID))
	}

	if len(sc.NPCs) == 0 {
		return action.Invalid(fmt.Sprintf("There is no %s here to attack.", parsed.Target))
	}
	candidates := make([]match.Candidate, len(sc.NPCs))
	for i, npc := range sc.NPCs {
		candidates[i] = match.Candidate{ID: npc.ID, Label: npc.Name}
	}
	chosen, ok := e.targetResolver.Resolve(parsed.Target, candidates)
	if !ok {
		return action.Invalid(fmt.Sprintf("There is no %s here to attack.", parsed.Target))
	}

	npc, _ := sc.NPCByID(chosen.ID)
	if !npc.Status.IsAlive {
		return action.Invalid(fmt.Sprintf("%s is already dead.", npc.Name))
	}
	return action.Valid(parsed.WithTarget(npc.ID))
}

// validateGeneral covers the action types with no structural preconditions
// beyond being able to act at all.
func (e *Engine) validateGeneral(_ context.Context, actor *character.Character, parsed action.Parsed, _ scene.Scene) action.Validation {
	if !actor.CanAct() {
		return action.Invalid("You cannot act right now.")
	}
	return action.Valid(parsed)
}
