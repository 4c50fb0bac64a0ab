// Package gateway implements the session-facing side of the engine: message
// delivery to the player and SQLite-backed persistence of sessions,
// narrations, and scene diffs.
package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cwhitfield/fablecore/internal/game"
	"github.com/cwhitfield/fablecore/internal/scene"
)

// ErrSessionNotFound reports a LoadSession for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	condition  TEXT NOT NULL DEFAULT 'GAME_ON',
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS narrations (
	id         TEXT NOT NULL,
	session_id TEXT NOT NULL,
	speaker    TEXT NOT NULL,
	action     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (id, session_id)
);
CREATE TABLE IF NOT EXISTS scene_diffs (
	scene_id   TEXT NOT NULL,
	diff       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// Store is the SQLite gateway. Streaming frames are forwarded to an optional
// sink but not persisted; final narrations are upserted under their message
// id so a stream and its closing frame occupy one row.
type Store struct {
	db   *sql.DB
	log  *zap.SugaredLogger
	sink Sink
}

// Sink receives messages for live display. The console front-end implements
// it; servers would put a websocket here.
type Sink interface {
	Deliver(msg game.Message)
}

var _ game.Gateway = (*Store)(nil)

// Open opens (creating if needed) the gateway database at dsn. Use
// ":memory:" for tests.
func Open(dsn string, log *zap.SugaredLogger, sink Sink) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open gateway db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply gateway schema: %w", err)
	}
	return &Store{db: db, log: log, sink: sink}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// LockPlayerInput notifies the sink of the lock change. The flag itself is
// persisted inside the serialized session state, not as its own column.
func (s *Store) LockPlayerInput(ctx context.Context, sessionID string, locked bool) error {
	if s.sink != nil {
		s.sink.Deliver(game.Message{
			Speaker: game.SpeakerSystem,
			Content: fmt.Sprintf("input locked: %t", locked),
			Typing:  true,
		})
	}
	return nil
}

// SendNarration persists a final narration and forwards it to the sink.
func (s *Store) SendNarration(ctx context.Context, sessionID string, msg game.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO narrations (id, session_id, speaker, action, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, session_id) DO UPDATE SET content = excluded.content`,
		msg.ID, sessionID, msg.Speaker, msg.Action, msg.Content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save narration: %w", err)
	}
	if s.sink != nil {
		s.sink.Deliver(msg)
	}
	return nil
}

// SendStreaming forwards an intermediate frame without persisting it.
func (s *Store) SendStreaming(_ context.Context, _ string, msg game.Message) error {
	if s.sink != nil {
		s.sink.Deliver(msg)
	}
	return nil
}

// SaveSceneDiff appends a diff to the scene's change log.
func (s *Store) SaveSceneDiff(ctx context.Context, sceneID string, diff scene.Diff) error {
	encoded, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("encode scene diff: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scene_diffs (scene_id, diff, created_at) VALUES (?, ?, ?)`,
		sceneID, string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save scene diff: %w", err)
	}
	return nil
}

// EndGame marks the session terminal and announces the result.
func (s *Store) EndGame(ctx context.Context, sessionID string, condition game.Condition) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET condition = ?, updated_at = ? WHERE id = ?`,
		string(condition), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("end game: %w", err)
	}
	if s.sink != nil {
		s.sink.Deliver(game.Message{
			Speaker: game.SpeakerSystem,
			Content: endMessage(condition),
		})
	}
	return nil
}

// SaveSession upserts the serialized session state.
func (s *Store) SaveSession(ctx context.Context, state *game.SessionState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		state.ID, string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession restores a serialized session state.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*game.SessionState, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var state game.SessionState
	if err := json.Unmarshal([]byte(encoded), &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// ReportFailure logs an internal failure and tells the player something went
// wrong, without detail.
func (s *Store) ReportFailure(_ context.Context, sessionID string, err error) {
	s.log.Errorw("turn processing failed", "session", sessionID, "err", err)
	if s.sink != nil {
		s.sink.Deliver(game.Message{
			Speaker: game.SpeakerError,
			Content: "Something went wrong resolving that. Try again.",
		})
	}
}

// Narrations returns a session's persisted narration log in insertion order.
func (s *Store) Narrations(ctx context.Context, sessionID string) ([]game.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, speaker, action, content FROM narrations
		WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list narrations: %w", err)
	}
	defer rows.Close()

	var msgs []game.Message
	for rows.Next() {
		var msg game.Message
		if err := rows.Scan(&msg.ID, &msg.Speaker, &msg.Action, &msg.Content); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// SceneDiffs returns the persisted change log for a scene, oldest first.
func (s *Store) SceneDiffs(ctx context.Context, sceneID string) ([]scene.Diff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT diff FROM scene_diffs WHERE scene_id = ? ORDER BY created_at`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list scene diffs: %w", err)
	}
	defer rows.Close()

	var diffs []scene.Diff
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		var diff scene.Diff
		if err := json.Unmarshal([]byte(encoded), &diff); err != nil {
			return nil, fmt.Errorf("decode scene diff: %w", err)
		}
		diffs = append(diffs, diff)
	}
	return diffs, rows.Err()
}

func endMessage(condition game.Condition) string {
	switch condition {
	case game.ConditionPlayerWin:
		return "Victory. Your tale ends in triumph."
	case game.ConditionPlayerDefeat:
		return "You have fallen. The tale ends here."
	default:
		return "The game is over."
	}
}
