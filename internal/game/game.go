package game

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/dice"
	"github.com/cwhitfield/fablecore/internal/match"
	"github.com/cwhitfield/fablecore/internal/scene"
	"github.com/cwhitfield/fablecore/internal/telemetry"
)

var (
	// ErrProcessing rejects a submission while a previous one is still being
	// resolved. The caller should simply drop the input.
	ErrProcessing = errors.New("a turn is already being processed")

	// ErrInputLocked rejects a submission outside the player's turn.
	ErrInputLocked = errors.New("player input is locked")

	// ErrAttemptsExhausted reports that repeated parses of the player's input
	// failed. The turn is not consumed.
	ErrAttemptsExhausted = errors.New("could not understand the action after repeated attempts")

	// ErrNotLoaded reports use of an engine before Load.
	ErrNotLoaded = errors.New("no session loaded")

	// ErrGameEnded rejects submissions after a terminal condition.
	ErrGameEnded = errors.New("the game has ended")
)

// Engine is the per-session turn orchestrator. It owns the session state
// machine exclusively: collaborators are only ever called by it, and all
// state mutation happens on the goroutine driving a submission.
type Engine struct {
	cfg      Config
	narrator Narrator
	gateway  Gateway
	scenes   *scene.Manager
	roller   *dice.Roller
	strategy NPCStrategy
	check    ConditionFunc
	log      *zap.SugaredLogger
	newID    func() string

	validators     map[action.Type]validatorFunc
	exitResolver   *match.Resolver
	targetResolver *match.Resolver

	state  *SessionState
	player *character.Character
	ended  bool

	// processing guards against overlapping submissions. Submissions race
	// only at this flag; everything behind it is single-threaded.
	processing atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithStrategy replaces the default aggressor NPC strategy.
func WithStrategy(s NPCStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithConditionFunc replaces the default end-of-game check.
func WithConditionFunc(fn ConditionFunc) Option {
	return func(e *Engine) { e.check = fn }
}

// WithIDGenerator replaces the message-id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New creates an engine over its collaborators. The engine is inert until
// Load attaches a session.
func New(cfg Config, narrator Narrator, gateway Gateway, scenes *scene.Manager, roller *dice.Roller, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		narrator: narrator,
		gateway:  gateway,
		scenes:   scenes,
		roller:   roller,
		strategy: AggressorStrategy{},
		check:    defaultCondition,
		log:      zap.NewNop().Sugar(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.validators = newValidators(e)
	e.exitResolver = match.New(cfg.exitThreshold(), match.WithLogger(e.log))
	e.targetResolver = match.New(cfg.targetThreshold(), match.WithLogger(e.log))
	return e
}

// State returns the attached session state, or nil.
func (e *Engine) State() *SessionState { return e.state }

// Player returns the attached player, or nil.
func (e *Engine) Player() *character.Character { return e.player }

// Load attaches a session and its player, loading the session's zone. A
// session with no phase starts at scene narration.
func (e *Engine) Load(ctx context.Context, state *SessionState, player *character.Character) error {
	if state == nil || player == nil {
		return fmt.Errorf("load session: state and player are required")
	}
	if err := e.scenes.LoadZone(state.Zone); err != nil {
		return err
	}
	if _, err := e.scenes.GetScene(state.SceneID); err != nil {
		return err
	}
	if state.Phase == "" {
		state.Phase = PhaseSceneNarration
	}
	player.Scene = state.SceneID
	player.Zone = state.Zone
	e.state = state
	e.player = player
	e.ended = false
	e.log.Infow("session loaded",
		"session", state.ID, "zone", state.Zone, "scene", state.SceneID, "phase", state.Phase)
	return nil
}

// Start drives the cycle from the loaded phase until it suspends on the
// player's turn or the game ends. Called once after Load.
func (e *Engine) Start(ctx context.Context) error {
	if e.state == nil {
		return ErrNotLoaded
	}
	if !e.processing.CompareAndSwap(false, true) {
		return ErrProcessing
	}
	defer e.processing.Store(false)
	return e.runCycle(ctx)
}

// SubmitPlayerAction resolves one player submission and then drives the
// cycle through the NPC turn until it suspends on the next player turn.
//
// Overlapping submissions are rejected with ErrProcessing; submissions while
// input is locked with ErrInputLocked. A submission that cannot be parsed
// after the configured number of attempts returns ErrAttemptsExhausted and
// leaves the turn open.
func (e *Engine) SubmitPlayerAction(ctx context.Context, text string) error {
	if e.state == nil {
		return ErrNotLoaded
	}
	if !e.processing.CompareAndSwap(false, true) {
		return ErrProcessing
	}
	defer e.processing.Store(false)

	if e.ended {
		return ErrGameEnded
	}
	if e.state.Phase != PhasePlayerTurn || e.state.InputLocked {
		return ErrInputLocked
	}

	tracer := telemetry.Tracer("game")
	ctx, span := tracer.Start(ctx, "turn.player")
	span.SetAttributes(
		attribute.String("session", e.state.ID),
		attribute.Int("turn", e.state.TurnCounter),
	)
	defer span.End()

	e.lockInput(ctx, true)

	consumed, err := e.playerAction(ctx, text)
	if err != nil {
		// The turn stays open: unlock and let the player retry.
		e.lockInput(ctx, false)
		if !errors.Is(err, ErrAttemptsExhausted) {
			e.gateway.ReportFailure(ctx, e.state.ID, err)
		}
		return err
	}
	if !consumed {
		e.lockInput(ctx, false)
		return nil
	}

	if e.checkEnd(ctx) {
		return nil
	}
	return e.runCycle(ctx)
}

// runCycle advances the phase machine until it suspends on the player's turn
// or the game ends. Session state is persisted at every phase boundary.
func (e *Engine) runCycle(ctx context.Context) error {
	for !e.ended {
		if err := e.gateway.SaveSession(ctx, e.state); err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		switch e.state.Phase {
		case PhaseSceneNarration:
			e.state.CurrentActor = ""
			if err := e.narrateScene(ctx); err != nil {
				return err
			}
			e.state.Phase = PhasePlayerTurn

		case PhasePlayerTurn:
			e.state.CurrentActor = e.player.ID
			e.lockInput(ctx, false)
			return e.gateway.SaveSession(ctx, e.state)

		case PhaseNpcTurn:
			if err := e.npcTurn(ctx); err != nil {
				return err
			}
			if e.ended {
				return nil
			}
			e.endRound()

		default:
			return fmt.Errorf("unknown phase %q", e.state.Phase)
		}
	}
	return nil
}

// endRound closes a full turn cycle: conditions tick down, the counter
// advances, and the player acts again.
func (e *Engine) endRound() {
	for _, expired := range e.player.TickConditions() {
		e.log.Infow("condition expired", "character", e.player.Name, "condition", expired)
	}
	e.state.TurnCounter++
	e.state.Phase = PhasePlayerTurn
}

// narrateScene streams the current scene's description. Streaming failures
// fall back to a single-shot generation, and that in turn to a static
// template, so the scene is always presented.
func (e *Engine) narrateScene(ctx context.Context) error {
	tracer := telemetry.Tracer("game")
	ctx, span := tracer.Start(ctx, "scene.narration")
	span.SetAttributes(attribute.String("scene", e.state.SceneID))
	defer span.End()

	sc, err := e.scenes.GetScene(e.state.SceneID)
	if err != nil {
		return err
	}

	msgID := e.newID()
	e.state.LastMessage = msgID

	if e.streamScene(ctx, msgID, sc) {
		span.SetAttributes(attribute.String("mode", "stream"))
		return nil
	}

	content, err := e.narrator.GenerateScene(ctx, sc, e.player)
	if err != nil {
		e.log.Warnw("scene generation failed, using template", "scene", sc.ID, "err", err)
		content = fmt.Sprintf("You find yourself in %s.", sc.Label)
		span.SetAttributes(attribute.String("mode", "template"))
	} else {
		span.SetAttributes(attribute.String("mode", "single_shot"))
	}
	return e.gateway.SendNarration(ctx, e.state.ID, Message{
		ID:      msgID,
		Speaker: SpeakerNarrator,
		Content: content,
	})
}

// streamScene attempts the streaming path and reports whether a complete
// narration was delivered.
func (e *Engine) streamScene(ctx context.Context, msgID string, sc scene.Scene) bool {
	stream, err := e.narrator.GenerateSceneNarration(ctx, sc, e.player)
	if err != nil {
		e.log.Warnw("scene stream unavailable", "scene", sc.ID, "err", err)
		return false
	}

	var full string
	for chunk := range stream {
		if chunk.Err != nil {
			e.log.Warnw("scene stream aborted", "scene", sc.ID, "err", chunk.Err)
			return false
		}
		if chunk.Done {
			break
		}
		full += chunk.Text
		if err := e.gateway.SendStreaming(ctx, e.state.ID, Message{
			ID:      msgID,
			Speaker: SpeakerNarrator,
			Content: chunk.Text,
			Typing:  true,
		}); err != nil {
			e.log.Warnw("streaming delivery failed", "err", err)
			return false
		}
	}
	if full == "" {
		return false
	}
	// Final frame repeats the assembled narration under the same id so the
	// gateway can replace the typing placeholder.
	return e.gateway.SendNarration(ctx, e.state.ID, Message{
		ID:      msgID,
		Speaker: SpeakerNarrator,
		Content: full,
	}) == nil
}

// playerAction parses, validates, and resolves one submission. It reports
// whether the turn was consumed: an invalid action consumes the turn, a
// parse failure retries up to the configured bound, and exhaustion leaves
// the turn open.
func (e *Engine) playerAction(ctx context.Context, text string) (consumed bool, err error) {
	for attempt := 1; attempt <= e.cfg.maxInvalidAttempts(); attempt++ {
		parsed, perr := e.narrator.ParseAction(ctx, text, character.TypePlayer)
		if perr != nil {
			e.log.Warnw("action parse failed", "attempt", attempt, "err", perr)
			continue
		}
		if !parsed.Type.Known() {
			e.log.Warnw("parser produced unknown action type",
				"attempt", attempt, "type", parsed.Type)
			continue
		}
		parsed.Actor = e.player.Name
		parsed.ActorType = character.TypePlayer

		verdict := e.validate(ctx, e.player, parsed)
		if !verdict.Valid {
			// Expected player-facing outcome: the attempt happened in the
			// fiction, so the turn is spent.
			if derr := e.deliverInvalid(ctx, verdict, parsed); derr != nil {
				return false, derr
			}
			e.state.Phase = PhaseNpcTurn
			return true, nil
		}

		result, rerr := e.resolveAction(ctx, *verdict.Parsed, e.player)
		if rerr != nil {
			return false, rerr
		}
		if derr := e.deliverResult(ctx, result); derr != nil {
			return false, derr
		}
		if aerr := e.applyResult(ctx, result); aerr != nil {
			return false, aerr
		}
		return true, nil
	}
	return false, ErrAttemptsExhausted
}

// resolveAction rolls the dice for a validated action and narrates the
// outcome. Dice are rolled exactly once per resolved action.
func (e *Engine) resolveAction(ctx context.Context, parsed action.Parsed, actor *character.Character) (action.Result, error) {
	difficulty := e.cfg.difficultyFor(parsed.Type)
	mods := dice.Modifiers{Modifier: actor.Bonus(string(parsed.Type))}
	roll := e.roller.RollAction(difficulty, parsed.Type, mods)

	tracer := telemetry.Tracer("dice")
	_, span := tracer.Start(ctx, "action.roll")
	span.SetAttributes(
		attribute.String("actor", parsed.Actor),
		attribute.String("action_type", string(parsed.Type)),
		attribute.Int("difficulty", difficulty),
		attribute.Int("total", roll.Total),
		attribute.Bool("hit", roll.Hit),
		attribute.String("outcome", string(roll.Outcome)),
	)
	span.End()

	narration, err := e.narrator.GenerateActionNarration(ctx, parsed, roll.Hit, string(roll.Outcome))
	if err != nil {
		e.log.Warnw("action narration failed, using fallback", "err", err)
		narration = fallbackNarration(parsed, roll.Hit)
	}
	return action.Result{
		Parsed:     parsed,
		Hit:        roll.Hit,
		Roll:       roll.Total,
		Outcome:    string(roll.Outcome),
		Narration:  narration,
		Difficulty: difficulty,
	}, nil
}

// deliverResult sends the resolved action's narration to the session.
func (e *Engine) deliverResult(ctx context.Context, result action.Result) error {
	msgID := e.newID()
	e.state.LastMessage = msgID
	return e.gateway.SendNarration(ctx, e.state.ID, Message{
		ID:      msgID,
		Speaker: SpeakerNarrator,
		Action:  result.Parsed.Action,
		Content: result.Narration,
	})
}

// deliverInvalid narrates a failed validation in-fiction, falling back to
// the validator's plain reason.
func (e *Engine) deliverInvalid(ctx context.Context, verdict action.Validation, parsed action.Parsed) error {
	content, err := e.narrator.GenerateInvalidActionNarration(ctx, verdict, parsed)
	if err != nil || content == "" {
		content = verdict.Reason
		if verdict.Suggested != "" {
			content += " " + verdict.Suggested
		}
	}
	return e.gateway.SendNarration(ctx, e.state.ID, Message{
		ID:      e.newID(),
		Speaker: SpeakerNarrator,
		Content: content,
	})
}

// applyResult mutates game state according to a resolved action and decides
// the next phase. A successful movement changes scenes and restarts the
// cycle at scene narration, skipping the NPC turn; everything else hands the
// turn to the NPCs.
func (e *Engine) applyResult(ctx context.Context, result action.Result) error {
	switch {
	case result.Parsed.Type == action.TypeMovement && result.Hit:
		return e.moveTo(ctx, result.Parsed.Target)

	case result.Parsed.Type == action.TypeAttack && result.Hit:
		if err := e.applyDamage(ctx, result); err != nil {
			return err
		}
	}
	e.state.Phase = PhaseNpcTurn
	return nil
}

// moveTo transitions the player through a resolved exit.
func (e *Engine) moveTo(ctx context.Context, exitID string) error {
	sc, err := e.scenes.GetScene(e.state.SceneID)
	if err != nil {
		return err
	}
	exit, ok := sc.ExitByID(exitID)
	if !ok {
		return fmt.Errorf("resolved exit %q vanished from scene %s", exitID, sc.ID)
	}
	e.state.SceneID = exit.TargetScene
	e.player.Scene = exit.TargetScene
	e.state.TurnCounter++
	e.state.Phase = PhaseSceneNarration
	e.log.Infow("scene transition", "from", sc.ID, "to", exit.TargetScene)
	return nil
}

// applyDamage records a player hit on an NPC as a scene diff. The diff
// travels through the scene manager so persistence and any other observers
// see it.
func (e *Engine) applyDamage(ctx context.Context, result action.Result) error {
	sc, err := e.scenes.GetScene(e.state.SceneID)
	if err != nil {
		return err
	}
	npc, ok := sc.NPCByID(result.Parsed.Target)
	if !ok {
		return fmt.Errorf("resolved target %q vanished from scene %s", result.Parsed.Target, sc.ID)
	}

	dmg := e.roller.RollSum(1, 6, 0)
	if result.Outcome == string(dice.OutcomeCritical) || result.Outcome == string(dice.OutcomeOutstandingSuccess) {
		dmg *= 2
	}
	health := npc.Status.Health - dmg
	if health < 0 {
		health = 0
	}
	e.log.Infow("damage applied", "target", npc.ID, "damage", dmg, "health", health)

	return e.scenes.ApplyDiff(sc.ID, scene.Diff{
		"npcs": []any{
			map[string]any{
				"id": npc.ID,
				"status": map[string]any{
					"health":     health,
					"is_alive":   health > 0,
					"is_hostile": npc.Status.IsHostile && health > 0,
				},
			},
		},
	})
}

// checkEnd evaluates the end-of-game condition and, when terminal, closes
// the session. Reports whether the game ended.
func (e *Engine) checkEnd(ctx context.Context) bool {
	sc, err := e.scenes.GetScene(e.state.SceneID)
	if err != nil {
		e.log.Errorw("condition check could not read scene", "err", err)
		return false
	}
	condition := e.check(e.state, e.player, sc)
	if !condition.Terminal() {
		return false
	}

	e.ended = true
	e.log.Infow("game ended", "session", e.state.ID, "condition", condition)
	if err := e.gateway.SaveSession(ctx, e.state); err != nil {
		e.log.Errorw("final session save failed", "err", err)
	}
	if err := e.gateway.EndGame(ctx, e.state.ID, condition); err != nil {
		e.log.Errorw("end-game delivery failed", "err", err)
	}
	return true
}

// lockInput flips the input lock in state and mirrors it to the gateway.
func (e *Engine) lockInput(ctx context.Context, locked bool) {
	e.state.InputLocked = locked
	if err := e.gateway.LockPlayerInput(ctx, e.state.ID, locked); err != nil {
		e.log.Warnw("input lock delivery failed", "locked", locked, "err", err)
	}
}

// fallbackNarration is the static template used when the narrator cannot
// produce action prose.
func fallbackNarration(parsed action.Parsed, hit bool) string {
	verb := "fails"
	if hit {
		verb = "succeeds"
	}
	if parsed.Target != "" {
		return fmt.Sprintf("%s %s against %s.", parsed.Actor, verb, parsed.Target)
	}
	return fmt.Sprintf("%s %s.", parsed.Actor, verb)
}
