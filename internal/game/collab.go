package game

import (
	"context"

	"github.com/cwhitfield/fablecore/internal/action"
	"github.com/cwhitfield/fablecore/internal/character"
	"github.com/cwhitfield/fablecore/internal/scene"
)

// Chunk is one piece of a streamed narration. A stream ends with either
// Done set or Err set.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Narrator is the language-model collaborator. Parsing and narration calls
// are suspension points: they honor ctx and may take arbitrarily long.
type Narrator interface {
	// ParseAction extracts a structured action from free text.
	ParseAction(ctx context.Context, text string, actorType character.Type) (action.Parsed, error)

	// GenerateSceneNarration streams a scene description. The returned
	// channel is closed after a Done or Err chunk.
	GenerateSceneNarration(ctx context.Context, sc scene.Scene, player *character.Character) (<-chan Chunk, error)

	// GenerateScene is the single-shot fallback for scene narration.
	GenerateScene(ctx context.Context, sc scene.Scene, player *character.Character) (string, error)

	// GenerateActionNarration narrates a resolved action.
	GenerateActionNarration(ctx context.Context, parsed action.Parsed, hit bool, outcome string) (string, error)

	// GenerateInvalidActionNarration narrates a failed validation.
	GenerateInvalidActionNarration(ctx context.Context, result action.Validation, parsed action.Parsed) (string, error)

	// ParserReady and NarratorReady are readiness probes.
	ParserReady(ctx context.Context) bool
	NarratorReady(ctx context.Context) bool
}

// Speaker tags for gateway messages.
const (
	SpeakerNarrator = "NARRATOR"
	SpeakerError    = "ERROR"
	SpeakerSystem   = "SYSTEM"
)

// Message is one narration delivery to the session.
type Message struct {
	ID       string // Stable across the chunks of one streamed narration
	Speaker  string
	Action   string
	Content  string
	Typing   bool // True for intermediate streaming chunks
	PlayerID string
}

// Gateway is the session/persistence collaborator. It owns all storage; the
// engine calls it as a side effect at phase boundaries and after resolved
// actions.
type Gateway interface {
	LockPlayerInput(ctx context.Context, sessionID string, locked bool) error
	SendNarration(ctx context.Context, sessionID string, msg Message) error
	SendStreaming(ctx context.Context, sessionID string, msg Message) error
	SaveSceneDiff(ctx context.Context, sceneID string, diff scene.Diff) error
	EndGame(ctx context.Context, sessionID string, condition Condition) error
	SaveSession(ctx context.Context, state *SessionState) error
	LoadSession(ctx context.Context, sessionID string) (*SessionState, error)

	// ReportFailure surfaces an unexpected internal failure, distinctly from
	// the player-facing validation path.
	ReportFailure(ctx context.Context, sessionID string, err error)
}

// NPCStrategy synthesizes actions for NPC turns. Implementations must be
// deterministic per call; the engine handles validation and retries.
type NPCStrategy interface {
	// Decide proposes an action for the NPC, or false to pass the turn.
	Decide(npc scene.NPC, player *character.Character, sc scene.Scene) (action.Parsed, bool)
}

// ConditionFunc evaluates whether the game continues after an action. The
// default treats a dead player as defeat and anything else as game-on.
type ConditionFunc func(state *SessionState, player *character.Character, sc scene.Scene) Condition

func defaultCondition(_ *SessionState, player *character.Character, sc scene.Scene) Condition {
	if !player.IsAlive() {
		return ConditionPlayerDefeat
	}
	return ConditionGameOn
}
