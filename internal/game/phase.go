// Package game provides the turn orchestrator: the per-session state machine
// that sequences scene narration, the player's turn, and NPC turns, resolving
// actions through the dice engine and the model collaborator.
package game

// Phase is one of the three stages a session's turn cycle visits. The
// current phase is persisted on the session and re-entered on reload.
type Phase string

const (
	// PhaseSceneNarration locks input and streams a scene description.
	PhaseSceneNarration Phase = "SCENE_NARRATION"
	// PhasePlayerTurn unlocks input and suspends until the player acts.
	PhasePlayerTurn Phase = "PLAYER_TURN"
	// PhaseNpcTurn runs every living NPC's action in fixed order.
	PhaseNpcTurn Phase = "NPC_TURN"
)

// String returns the persisted phase tag.
func (p Phase) String() string { return string(p) }

// Condition is the terminal check result evaluated after resolved actions.
type Condition string

const (
	ConditionGameOn       Condition = "GAME_ON"
	ConditionPlayerWin    Condition = "PLAYER_WIN"
	ConditionPlayerDefeat Condition = "PLAYER_DEFEAT"
	ConditionGameOver     Condition = "GAME_OVER"
)

// Terminal reports whether the condition ends the session.
func (c Condition) Terminal() bool { return c != ConditionGameOn }
