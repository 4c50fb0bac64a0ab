package game

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/dice"
	"github.com/cwhitfield/fablecore/internal/scene"
	"github.com/cwhitfield/fablecore/internal/telemetry"
)

// npcAttempts bounds how often a strategy may propose a malformed action for
// one NPC before that NPC forfeits its turn.
const npcAttempts = 3

// AggressorStrategy is the default NPC behavior: hostile NPCs attack the
// player, everyone else passes.
type AggressorStrategy struct{}

// Decide implements NPCStrategy.
func (AggressorStrategy) Decide(npc scene.NPC, player *character.Character, _ scene.Scene) (action.Parsed, bool) {
	if !npc.Status.IsHostile || !player.IsAlive() {
		return action.Parsed{}, false
	}
	return action.Parsed{
		Actor:     npc.Name,
		ActorType: character.TypeNPC,
		Action:    "attacks " + player.Name,
		Target:    player.Name,
		Type:      action.TypeAttack,
	}, true
}

// npcTurn runs every living NPC's action in scene order. Each NPC either
// produces a well-formed action within the attempt bound or forfeits; a
// forfeited turn never stalls the cycle.
func (e *Engine) npcTurn(ctx context.Context) error {
	tracer := telemetry.Tracer("game")
	ctx, span := tracer.Start(ctx, "turn.npc")
	span.SetAttributes(
		attribute.String("session", e.state.ID),
		attribute.Int("turn", e.state.TurnCounter),
	)
	defer span.End()

	sc, err := e.scenes.GetScene(e.state.SceneID)
	if err != nil {
		return err
	}

	living := sc.LivingNPCs()
	order := make([]string, 0, len(living)+1)
	order = append(order, e.player.ID)
	for _, npc := range living {
		order = append(order, npc.ID)
	}
	e.state.Initiative = order

	acted := 0
	for _, npc := range living {
		e.state.CurrentActor = npc.ID
		parsed, ok := e.npcDecision(ctx, npc, sc)
		if !ok {
			continue
		}
		if err := e.npcAction(ctx, npc, parsed); err != nil {
			return err
		}
		acted++
		if e.checkEnd(ctx) {
			span.SetAttributes(attribute.Int("npcs_acted", acted))
			return nil
		}
	}
	span.SetAttributes(attribute.Int("npcs_acted", acted))
	return nil
}

// npcDecision asks the strategy for an action and validates it through the
// same path player actions take, retrying malformed or invalid proposals up
// to the attempt bound. Reports false when the NPC passes or forfeits. The
// returned action carries the canonicalized target.
func (e *Engine) npcDecision(ctx context.Context, npc scene.NPC, sc scene.Scene) (action.Parsed, bool) {
	actor := e.npcActor(npc)
	for attempt := 1; attempt <= npcAttempts; attempt++ {
		parsed, ok := e.strategy.Decide(npc, e.player, sc)
		if !ok {
			return action.Parsed{}, false
		}
		if !parsed.Type.Known() {
			e.log.Warnw("npc proposed malformed action",
				"npc", npc.ID, "attempt", attempt, "type", parsed.Type)
			continue
		}
		parsed.Actor = npc.Name
		parsed.ActorType = character.TypeNPC

		verdict := e.validate(ctx, actor, parsed)
		if !verdict.Valid {
			e.log.Warnw("npc action rejected",
				"npc", npc.ID, "attempt", attempt, "reason", verdict.Reason)
			continue
		}
		return *verdict.Parsed, true
	}
	e.log.Warnw("npc forfeits turn", "npc", npc.ID)
	return action.Parsed{}, false
}

// npcActor is the transient character view of a scene NPC used for
// validation and resolution.
func (e *Engine) npcActor(npc scene.NPC) *character.Character {
	return &character.Character{
		ID:    npc.ID,
		Name:  npc.Name,
		Kind:  character.TypeNPC,
		HP:    npc.Status.Health,
		MaxHP: npc.Status.Health,
	}
}

// npcAction resolves one validated NPC action. Validation has canonicalized
// an attack's target to the player, so hits land on the player directly; the
// scene is not involved.
func (e *Engine) npcAction(ctx context.Context, npc scene.NPC, parsed action.Parsed) error {
	result, err := e.resolveAction(ctx, parsed, e.npcActor(npc))
	if err != nil {
		return err
	}

	if result.Parsed.Type == action.TypeAttack && result.Hit {
		dmg := e.roller.RollSum(1, 4, 0)
		if result.Outcome == string(dice.OutcomeCritical) || result.Outcome == string(dice.OutcomeOutstandingSuccess) {
			dmg *= 2
		}
		applied := e.player.TakeDamage(dmg)
		e.log.Infow("player damaged", "by", npc.ID, "damage", applied, "hp", e.player.HP)
	}
	return e.deliverResult(ctx, result)
}
