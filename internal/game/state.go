package game

// SessionState is the persistent turn bookkeeping of one session. It is
// owned exclusively by one Engine, mutated only by it, and persisted through
// the gateway at phase boundaries and after resolved actions.
type SessionState struct {
	ID           string   `json:"id"`
	TurnCounter  int      `json:"turn_counter"`
	Phase        Phase    `json:"current_turn_phase"`
	CurrentActor string   `json:"current_actor,omitempty"`
	InputLocked  bool     `json:"is_player_input_locked"`
	Zone         string   `json:"current_zone"`
	SceneID      string   `json:"current_scene"`
	Initiative   []string `json:"initiative,omitempty"`      // Combat order bookkeeping
	LastMessage  string   `json:"last_message_id,omitempty"` // Narrative bookkeeping
}
