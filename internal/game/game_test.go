package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/dice"
	"github.com/cwhitfield/fablecore/internal/scene"
)

// =============================================================================
// Fixtures
// =============================================================================

type stubZone struct {
	scenes map[string]scene.Scene
}

func (s stubZone) Zone(string) (map[string]scene.Scene, []scene.NPC, error) {
	return s.scenes, nil, nil
}

func fixtureZone() stubZone {
	return stubZone{scenes: map[string]scene.Scene{
		"village_gate": {
			ID:          "village_gate",
			Label:       "Village Gate",
			Description: "A weathered gate.",
			Exits: []scene.Exit{
				{ID: "market_square", Label: "Market Square", TargetScene: "market_square"},
			},
			NPCs: []scene.NPC{
				{ID: "gate_warden", Name: "Gate Warden Hale", Status: scene.Status{IsAlive: true, Health: 14}},
				{ID: "rabid_wolf", Name: "Rabid Wolf", Status: scene.Status{IsAlive: true, IsHostile: true, Health: 8}},
			},
		},
		"market_square": {
			ID:          "market_square",
			Label:       "Market Square",
			Description: "Empty stalls ring a well.",
			Exits: []scene.Exit{
				{ID: "village_gate", Label: "Village Gate", TargetScene: "village_gate"},
				{ID: "mill_loft", Label: "Mill Loft", TargetScene: "mill_loft",
					Blocked: &scene.BlockedState{Active: true, Reason: "The loft ladder has collapsed."}},
				{ID: "cellar_door", Label: "Cellar Door", TargetScene: "cellar",
					Locked: &scene.LockedState{Active: true, Requirement: &scene.LockRequirement{Key: "cellar_key"}}},
			},
			NPCs: []scene.NPC{
				{ID: "merchant_odell", Name: "Merchant Odell", Status: scene.Status{IsAlive: true, Health: 10}},
			},
		},
		"mill_loft": {ID: "mill_loft", Label: "Mill Loft"},
		"cellar":    {ID: "cellar", Label: "Market Cellar"},
	}}
}

// rollSource replays a scripted die sequence and counts consumption.
type rollSource struct {
	t      *testing.T
	values []int
	calls  int
}

func (r *rollSource) roll(sides int) int {
	r.t.Helper()
	if r.calls >= len(r.values) {
		r.t.Fatalf("roll source exhausted after %d values", len(r.values))
	}
	v := r.values[r.calls]
	r.calls++
	if v > sides {
		r.t.Fatalf("scripted value %d exceeds die size %d", v, sides)
	}
	return v
}

// mockNarrator scripts the parse result and keeps narration deterministic.
type mockNarrator struct {
	mu         sync.Mutex
	parse      func(text string) (action.Parsed, error)
	parseCalls int
	stream     []string // nil means the streaming path fails
	sceneErr   error
}

func (m *mockNarrator) ParseAction(_ context.Context, text string, _ character.Type) (action.Parsed, error) {
	m.mu.Lock()
	m.parseCalls++
	m.mu.Unlock()
	if m.parse == nil {
		return action.Parsed{}, errors.New("no parse scripted")
	}
	return m.parse(text)
}

func (m *mockNarrator) GenerateSceneNarration(_ context.Context, sc scene.Scene, _ *character.Character) (<-chan Chunk, error) {
	if m.stream == nil {
		return nil, errors.New("stream unavailable")
	}
	out := make(chan Chunk, len(m.stream)+1)
	for _, text := range m.stream {
		out <- Chunk{Text: text}
	}
	out <- Chunk{Done: true}
	close(out)
	return out, nil
}

func (m *mockNarrator) GenerateScene(_ context.Context, sc scene.Scene, _ *character.Character) (string, error) {
	if m.sceneErr != nil {
		return "", m.sceneErr
	}
	return "You stand at the " + sc.Label + ".", nil
}

func (m *mockNarrator) GenerateActionNarration(_ context.Context, parsed action.Parsed, hit bool, outcome string) (string, error) {
	return fmt.Sprintf("%s:%s:%t:%s", parsed.Actor, parsed.Action, hit, outcome), nil
}

func (m *mockNarrator) GenerateInvalidActionNarration(context.Context, action.Validation, action.Parsed) (string, error) {
	return "", errors.New("no model")
}

func (m *mockNarrator) ParserReady(context.Context) bool   { return true }
func (m *mockNarrator) NarratorReady(context.Context) bool { return true }

func parseAs(parsed action.Parsed) func(string) (action.Parsed, error) {
	return func(string) (action.Parsed, error) { return parsed, nil }
}

// mockGateway records every delivery.
type mockGateway struct {
	mu        sync.Mutex
	messages  []Message
	streaming []Message
	saves     int
	diffs     []string
	ended     []Condition
	failures  []error
}

func (g *mockGateway) LockPlayerInput(context.Context, string, bool) error { return nil }

func (g *mockGateway) SendNarration(_ context.Context, _ string, msg Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, msg)
	return nil
}

func (g *mockGateway) SendStreaming(_ context.Context, _ string, msg Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streaming = append(g.streaming, msg)
	return nil
}

func (g *mockGateway) SaveSceneDiff(_ context.Context, sceneID string, _ scene.Diff) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.diffs = append(g.diffs, sceneID)
	return nil
}

func (g *mockGateway) EndGame(_ context.Context, _ string, condition Condition) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ended = append(g.ended, condition)
	return nil
}

func (g *mockGateway) SaveSession(context.Context, *SessionState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	return nil
}

func (g *mockGateway) LoadSession(context.Context, string) (*SessionState, error) {
	return nil, errors.New("not implemented")
}

func (g *mockGateway) ReportFailure(_ context.Context, _ string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, err)
}

func (g *mockGateway) lastMessage(t *testing.T) Message {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.messages) == 0 {
		t.Fatal("no messages delivered")
	}
	return g.messages[len(g.messages)-1]
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("msg-%d", n)
	}
}

// newTestEngine builds a loaded, started engine suspended on the player turn.
func newTestEngine(t *testing.T, n *mockNarrator, rolls *rollSource, sceneID string) (*Engine, *mockGateway) {
	t.Helper()
	gw := &mockGateway{}
	mgr := scene.NewManager(fixtureZone(), nil)
	mgr.Subscribe(func(sceneID string, diff scene.Diff) {
		_ = gw.SaveSceneDiff(context.Background(), sceneID, diff)
	})
	roller := dice.NewRollerWithSource(dice.D20{}, rolls.roll)
	e := New(Config{}, n, gw, mgr, roller, WithIDGenerator(seqIDs()))

	state := &SessionState{ID: "s1", Zone: "greenhollow", SceneID: sceneID}
	player := &character.Character{ID: "player", Name: "Bren", Kind: character.TypePlayer, HP: 20, MaxHP: 20}
	if err := e.Load(context.Background(), state, player); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e, gw
}

// =============================================================================
// Cycle and narration
// =============================================================================

func TestStartNarratesAndUnlocks(t *testing.T) {
	n := &mockNarrator{}
	e, gw := newTestEngine(t, n, &rollSource{t: t}, "village_gate")

	if e.state.Phase != PhasePlayerTurn {
		t.Errorf("phase = %s, want PLAYER_TURN", e.state.Phase)
	}
	if e.state.InputLocked {
		t.Error("input should be unlocked on the player turn")
	}
	msg := gw.lastMessage(t)
	if !strings.Contains(msg.Content, "Village Gate") {
		t.Errorf("narration = %q, want scene description", msg.Content)
	}
	if gw.saves == 0 {
		t.Error("session should be saved at phase boundaries")
	}
}

func TestSceneNarrationStreams(t *testing.T) {
	n := &mockNarrator{stream: []string{"A weathered", " gate."}}
	_, gw := newTestEngine(t, n, &rollSource{t: t}, "village_gate")

	if len(gw.streaming) != 2 {
		t.Fatalf("streaming frames = %d, want 2", len(gw.streaming))
	}
	for _, frame := range gw.streaming {
		if !frame.Typing {
			t.Error("intermediate frames should be marked typing")
		}
	}
	final := gw.lastMessage(t)
	if final.Content != "A weathered gate." {
		t.Errorf("final frame = %q, want assembled narration", final.Content)
	}
	if final.ID != gw.streaming[0].ID {
		t.Error("final frame should reuse the stream's message id")
	}
}

func TestSceneNarrationTemplateFallback(t *testing.T) {
	n := &mockNarrator{sceneErr: errors.New("model down")}
	_, gw := newTestEngine(t, n, &rollSource{t: t}, "village_gate")

	msg := gw.lastMessage(t)
	if msg.Content != "You find yourself in Village Gate." {
		t.Errorf("fallback narration = %q", msg.Content)
	}
}

// =============================================================================
// Player turns
// =============================================================================

func TestMovementChangesScene(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "movement", Target: "market square", Type: action.TypeMovement,
	})}
	rolls := &rollSource{t: t, values: []int{15}}
	e, gw := newTestEngine(t, n, rolls, "village_gate")

	if err := e.SubmitPlayerAction(context.Background(), "go to the market square"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}

	if e.state.SceneID != "market_square" {
		t.Errorf("scene = %s, want market_square", e.state.SceneID)
	}
	if e.player.Scene != "market_square" {
		t.Error("player location should follow the transition")
	}
	if e.state.TurnCounter != 1 {
		t.Errorf("turn counter = %d, want 1", e.state.TurnCounter)
	}
	if e.state.Phase != PhasePlayerTurn {
		t.Errorf("phase = %s, want suspended on PLAYER_TURN", e.state.Phase)
	}
	// Movement skips the NPC turn and re-narrates the new scene.
	msg := gw.lastMessage(t)
	if !strings.Contains(msg.Content, "Market Square") {
		t.Errorf("latest narration = %q, want new scene description", msg.Content)
	}
	if rolls.calls != 1 {
		t.Errorf("dice rolls = %d, want exactly one for the movement check", rolls.calls)
	}
}

func TestAttackDamagesTargetThenNpcsRespond(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "attack", Target: "rabid wolf", Weapon: "sword", Type: action.TypeAttack,
	})}
	// Player d20=15 hits DC 12, d6=4 damage; wolf d20=18 hits, d4=3 damage.
	rolls := &rollSource{t: t, values: []int{15, 4, 18, 3}}
	e, gw := newTestEngine(t, n, rolls, "village_gate")

	if err := e.SubmitPlayerAction(context.Background(), "attack the rabid wolf with my sword"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}

	sc, err := e.scenes.GetScene("village_gate")
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	wolf, _ := sc.NPCByID("rabid_wolf")
	if wolf.Status.Health != 4 {
		t.Errorf("wolf health = %d, want 4", wolf.Status.Health)
	}
	if e.player.HP != 17 {
		t.Errorf("player HP = %d, want 17 after the wolf's riposte", e.player.HP)
	}
	if e.state.TurnCounter != 1 || e.state.Phase != PhasePlayerTurn {
		t.Errorf("state = turn %d phase %s, want turn 1 on PLAYER_TURN",
			e.state.TurnCounter, e.state.Phase)
	}
	if rolls.calls != 4 {
		t.Errorf("dice rolls = %d, want 4", rolls.calls)
	}
	if len(gw.diffs) != 1 || gw.diffs[0] != "village_gate" {
		t.Errorf("persisted diffs = %v, want one for village_gate", gw.diffs)
	}
}

func TestAttackMissingTargetConsumesTurnWithoutRoll(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "attack", Target: "dragon", Type: action.TypeAttack,
	})}
	rolls := &rollSource{t: t} // Any roll would fail the test.
	e, gw := newTestEngine(t, n, rolls, "market_square")

	if err := e.SubmitPlayerAction(context.Background(), "attack the dragon"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}

	msg := gw.lastMessage(t)
	if !strings.Contains(msg.Content, "no dragon here") {
		t.Errorf("narration = %q, want missing-target reason", msg.Content)
	}
	if rolls.calls != 0 {
		t.Errorf("dice rolls = %d, want none for an invalid action", rolls.calls)
	}
	if e.state.TurnCounter != 1 {
		t.Errorf("turn counter = %d, want 1 (invalid action consumes the turn)", e.state.TurnCounter)
	}
}

func TestAttackDeadTargetRejected(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "attack", Target: "rabid wolf", Type: action.TypeAttack,
	})}
	// Player kills the wolf (20 crit, d6=4 doubled to 8), then the second
	// swing targets a corpse: no further rolls.
	rolls := &rollSource{t: t, values: []int{20, 4}}
	e, gw := newTestEngine(t, n, rolls, "village_gate")

	if err := e.SubmitPlayerAction(context.Background(), "attack the rabid wolf"); err != nil {
		t.Fatalf("first attack: %v", err)
	}
	sc, _ := e.scenes.GetScene("village_gate")
	if wolf, _ := sc.NPCByID("rabid_wolf"); wolf.Status.IsAlive {
		t.Fatalf("wolf should be dead, status %+v", wolf.Status)
	}

	if err := e.SubmitPlayerAction(context.Background(), "attack the rabid wolf"); err != nil {
		t.Fatalf("second attack: %v", err)
	}
	msg := gw.lastMessage(t)
	if !strings.Contains(msg.Content, "already dead") {
		t.Errorf("narration = %q, want already-dead reason", msg.Content)
	}
	if rolls.calls != 2 {
		t.Errorf("dice rolls = %d, want none beyond the first attack", rolls.calls)
	}
}

func TestBlockedAndLockedExits(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"blocked exit reports reason", "mill loft", "loft ladder has collapsed"},
		{"locked exit hints at key", "cellar door", "locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &mockNarrator{parse: parseAs(action.Parsed{
				Action: "movement", Target: tt.target, Type: action.TypeMovement,
			})}
			rolls := &rollSource{t: t}
			e, gw := newTestEngine(t, n, rolls, "market_square")

			if err := e.SubmitPlayerAction(context.Background(), "go to the "+tt.target); err != nil {
				t.Fatalf("SubmitPlayerAction: %v", err)
			}
			msg := gw.lastMessage(t)
			if !strings.Contains(msg.Content, tt.want) {
				t.Errorf("narration = %q, want %q", msg.Content, tt.want)
			}
			if e.state.SceneID != "market_square" {
				t.Error("impassable exit must not move the player")
			}
			if rolls.calls != 0 {
				t.Errorf("dice rolls = %d, want none", rolls.calls)
			}
		})
	}
}

func TestImmobilizedPlayerCannotMove(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "movement", Target: "village gate", Type: action.TypeMovement,
	})}
	e, gw := newTestEngine(t, n, &rollSource{t: t}, "market_square")
	e.player.AddCondition(character.ConditionInstance{Effect: character.ConditionGrappled, Duration: 2})

	if err := e.SubmitPlayerAction(context.Background(), "run to the gate"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}
	msg := gw.lastMessage(t)
	if !strings.Contains(msg.Content, "held fast") {
		t.Errorf("narration = %q, want immobilized reason", msg.Content)
	}
}

// =============================================================================
// Guards and retries
// =============================================================================

func TestAttemptsExhausted(t *testing.T) {
	n := &mockNarrator{parse: func(string) (action.Parsed, error) {
		return action.Parsed{}, errors.New("gibberish")
	}}
	e, _ := newTestEngine(t, n, &rollSource{t: t}, "market_square")

	err := e.SubmitPlayerAction(context.Background(), "florble the wumpus")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
	if n.parseCalls != DefaultMaxInvalidAttempts {
		t.Errorf("parse attempts = %d, want %d", n.parseCalls, DefaultMaxInvalidAttempts)
	}
	if e.state.TurnCounter != 0 {
		t.Error("exhausted parses must not consume the turn")
	}
	if e.state.Phase != PhasePlayerTurn || e.state.InputLocked {
		t.Error("the turn should stay open for another try")
	}
}

func TestUnknownActionTypeRetries(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{Action: "dance", Type: "dance"})}
	e, _ := newTestEngine(t, n, &rollSource{t: t}, "market_square")

	err := e.SubmitPlayerAction(context.Background(), "dance wildly")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
}

func TestConcurrentSubmissionRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	n := &mockNarrator{parse: func(string) (action.Parsed, error) {
		once.Do(func() { close(started) })
		<-release
		return action.Parsed{Action: "conversation", Target: "merchant odell", Type: action.TypeSocial}, nil
	}}
	rolls := &rollSource{t: t, values: []int{14}}
	e, _ := newTestEngine(t, n, rolls, "market_square")

	done := make(chan error, 1)
	go func() {
		done <- e.SubmitPlayerAction(context.Background(), "talk to the merchant")
	}()

	<-started
	if err := e.SubmitPlayerAction(context.Background(), "attack the merchant"); !errors.Is(err, ErrProcessing) {
		t.Errorf("overlapping submission err = %v, want ErrProcessing", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if e.state.TurnCounter != 1 {
		t.Errorf("turn counter = %d, want 1", e.state.TurnCounter)
	}
}

func TestSubmitOutsidePlayerTurn(t *testing.T) {
	n := &mockNarrator{}
	e, _ := newTestEngine(t, n, &rollSource{t: t}, "market_square")

	e.state.Phase = PhaseNpcTurn
	if err := e.SubmitPlayerAction(context.Background(), "attack"); !errors.Is(err, ErrInputLocked) {
		t.Errorf("err = %v, want ErrInputLocked", err)
	}
}

func TestSubmitBeforeLoad(t *testing.T) {
	e := New(Config{}, &mockNarrator{}, &mockGateway{}, scene.NewManager(fixtureZone(), nil),
		dice.NewRollerWithSource(dice.D20{}, func(int) int { return 10 }))
	if err := e.SubmitPlayerAction(context.Background(), "look"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}

// =============================================================================
// End of game
// =============================================================================

func TestPlayerDefeatEndsGame(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "conversation", Target: "gate warden", Type: action.TypeSocial,
	})}
	// Social roll 14, then the wolf hits (18) for d4=3 against 1 HP.
	rolls := &rollSource{t: t, values: []int{14, 18, 3}}
	e, gw := newTestEngine(t, n, rolls, "village_gate")
	e.player.HP = 1

	if err := e.SubmitPlayerAction(context.Background(), "greet the warden"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}

	if e.player.IsAlive() {
		t.Fatal("player should be dead")
	}
	if len(gw.ended) != 1 || gw.ended[0] != ConditionPlayerDefeat {
		t.Errorf("ended = %v, want [PLAYER_DEFEAT]", gw.ended)
	}
	if err := e.SubmitPlayerAction(context.Background(), "get up"); !errors.Is(err, ErrGameEnded) {
		t.Errorf("post-game submission err = %v, want ErrGameEnded", err)
	}
}

func TestCustomWinCondition(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "attack", Target: "rabid wolf", Type: action.TypeAttack,
	})}
	rolls := &rollSource{t: t, values: []int{20, 4}}

	gw := &mockGateway{}
	mgr := scene.NewManager(fixtureZone(), nil)
	roller := dice.NewRollerWithSource(dice.D20{}, rolls.roll)
	// Win when no hostile NPC remains in the current scene.
	e := New(Config{}, n, gw, mgr, roller,
		WithIDGenerator(seqIDs()),
		WithConditionFunc(func(_ *SessionState, player *character.Character, sc scene.Scene) Condition {
			if !player.IsAlive() {
				return ConditionPlayerDefeat
			}
			for _, npc := range sc.LivingNPCs() {
				if npc.Status.IsHostile {
					return ConditionGameOn
				}
			}
			return ConditionPlayerWin
		}),
	)
	state := &SessionState{ID: "s1", Zone: "greenhollow", SceneID: "village_gate"}
	player := &character.Character{ID: "player", Name: "Bren", Kind: character.TypePlayer, HP: 20, MaxHP: 20}
	if err := e.Load(context.Background(), state, player); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.SubmitPlayerAction(context.Background(), "attack the rabid wolf"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}
	if len(gw.ended) != 1 || gw.ended[0] != ConditionPlayerWin {
		t.Errorf("ended = %v, want [PLAYER_WIN]", gw.ended)
	}
}

// =============================================================================
// NPC turns
// =============================================================================

func TestAggressorStrategyTargetsPlayer(t *testing.T) {
	player := &character.Character{Name: "Bren", HP: 10}
	hostile := scene.NPC{ID: "wolf", Name: "Wolf", Status: scene.Status{IsAlive: true, IsHostile: true}}
	passive := scene.NPC{ID: "warden", Name: "Warden", Status: scene.Status{IsAlive: true}}

	strat := AggressorStrategy{}
	if parsed, ok := strat.Decide(hostile, player, scene.Scene{}); !ok {
		t.Error("hostile NPC should act")
	} else if parsed.Type != action.TypeAttack || parsed.Target != "Bren" {
		t.Errorf("decision = %+v, want attack on Bren", parsed)
	}
	if _, ok := strat.Decide(passive, player, scene.Scene{}); ok {
		t.Error("passive NPC should pass")
	}

	player.HP = 0
	if _, ok := strat.Decide(hostile, player, scene.Scene{}); ok {
		t.Error("no NPC should attack a dead player")
	}
}

func TestMalformedNpcDecisionForfeits(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "conversation", Target: "gate warden", Type: action.TypeSocial,
	})}
	rolls := &rollSource{t: t, values: []int{14}}
	e, _ := newTestEngine(t, n, rolls, "village_gate")

	// A strategy that always proposes an attack with no target forfeits
	// after the attempt bound instead of stalling the cycle.
	calls := 0
	e.strategy = strategyFunc(func(scene.NPC, *character.Character, scene.Scene) (action.Parsed, bool) {
		calls++
		return action.Parsed{Type: action.TypeAttack}, true
	})

	if err := e.SubmitPlayerAction(context.Background(), "greet the warden"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}
	// Two living NPCs, each retried npcAttempts times.
	if calls != 2*npcAttempts {
		t.Errorf("strategy calls = %d, want %d", calls, 2*npcAttempts)
	}
	if e.player.HP != 20 {
		t.Error("forfeited turns must not damage the player")
	}
	if e.state.Phase != PhasePlayerTurn || e.state.TurnCounter != 1 {
		t.Errorf("state = turn %d phase %s, want turn 1 on PLAYER_TURN",
			e.state.TurnCounter, e.state.Phase)
	}
}

func TestNpcAttackOnOtherNpcRejected(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "conversation", Target: "gate warden", Type: action.TypeSocial,
	})}
	rolls := &rollSource{t: t, values: []int{14}}
	e, _ := newTestEngine(t, n, rolls, "village_gate")

	// The wolf declares an attack on the warden. NPC attacks resolve against
	// the player only, so the declaration never validates and no one is hurt.
	calls := 0
	e.strategy = strategyFunc(func(npc scene.NPC, _ *character.Character, _ scene.Scene) (action.Parsed, bool) {
		if !npc.Status.IsHostile {
			return action.Parsed{}, false
		}
		calls++
		return action.Parsed{Action: "attacks the warden", Target: "gate_warden", Type: action.TypeAttack}, true
	})

	if err := e.SubmitPlayerAction(context.Background(), "greet the warden"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}

	if e.player.HP != 20 {
		t.Errorf("player HP = %d, want 20 for an attack aimed elsewhere", e.player.HP)
	}
	sc, _ := e.scenes.GetScene("village_gate")
	if warden, _ := sc.NPCByID("gate_warden"); warden.Status.Health != 14 {
		t.Errorf("warden health = %d, want untouched 14", warden.Status.Health)
	}
	if calls != npcAttempts {
		t.Errorf("strategy calls = %d, want %d rejected attempts before forfeit", calls, npcAttempts)
	}
	if rolls.calls != 1 {
		t.Errorf("dice rolls = %d, want only the player's social check", rolls.calls)
	}
}

func TestTurnBookkeepingTracksActors(t *testing.T) {
	n := &mockNarrator{parse: parseAs(action.Parsed{
		Action: "conversation", Target: "gate warden", Type: action.TypeSocial,
	})}
	// Social roll 14, then the wolf hits (18) for d4=3.
	rolls := &rollSource{t: t, values: []int{14, 18, 3}}
	e, _ := newTestEngine(t, n, rolls, "village_gate")

	if err := e.SubmitPlayerAction(context.Background(), "greet the warden"); err != nil {
		t.Fatalf("SubmitPlayerAction: %v", err)
	}

	if got := strings.Join(e.state.Initiative, ","); got != "player,gate_warden,rabid_wolf" {
		t.Errorf("initiative = %q, want player first then scene order", got)
	}
	if e.state.CurrentActor != "player" {
		t.Errorf("current actor = %q, want player while suspended on its turn", e.state.CurrentActor)
	}
}

type strategyFunc func(scene.NPC, *character.Character, scene.Scene) (action.Parsed, bool)

func (f strategyFunc) Decide(npc scene.NPC, player *character.Character, sc scene.Scene) (action.Parsed, bool) {
	return f(npc, player, sc)
}
