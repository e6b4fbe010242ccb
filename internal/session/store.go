package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store persists sessions and their turns in SQLite.
//
// Appends re-derive the next ordinal inside a transaction, so two concurrent
// turns against the same session serialize instead of colliding; the unique
// (session_id, ordinal) constraint backs this up.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a session Store.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new empty session with a server-generated ID.
func (s *Store) Create(ctx context.Context) (Session, error) {
	return s.insert(ctx, uuid.NewString())
}

// Ensure returns the session with the given ID, creating it if id is empty
// or unknown. Caller-supplied IDs are honored as-is.
func (s *Store) Ensure(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return s.Create(ctx)
	}
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.insert(ctx, id)
	}
	return sess, err
}

// Get returns a session by ID.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session: %w", err)
	}
	return sess, nil
}

// List returns all sessions, most recently active first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and, via cascade, all its turns.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.logger.Info("session deleted", slog.String("session_id", id))
	return nil
}

// Append writes turns to a session in order, in one transaction. Ordinals
// are assigned from the current maximum at append time, not at read time.
func (s *Store) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	// The connection opens transactions in immediate mode (database.Open),
	// so concurrent appenders queue on busy_timeout rather than both reading
	// the same MAX(ordinal).
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal) + 1, 0) FROM messages WHERE session_id = ?`, sessionID).Scan(&next); err != nil {
		return fmt.Errorf("deriving ordinal: %w", err)
	}

	now := time.Now().UTC()
	for i, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, ordinal, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			sessionID, t.Role, t.Content, next+i, now); err != nil {
			return fmt.Errorf("appending turn: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

// Recent returns the most recent limit turns of a session in chronological
// order. limit <= 0 returns no turns.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, ordinal, created_at FROM messages
		 WHERE session_id = ? ORDER BY ordinal DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading recent turns: %w", err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	// Newest-first from the query, oldest-first for the caller.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// RecentAcrossSessions returns the newest limit turns over all sessions,
// newest first. A non-positive limit defaults to 100.
func (s *Store) RecentAcrossSessions(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role, content, ordinal, created_at FROM messages
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading chat history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.SessionID, &e.Role, &e.Content, &e.Ordinal, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// History returns every turn of a session in chronological order.
func (s *Store) History(ctx context.Context, sessionID string) ([]Turn, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, ordinal, created_at FROM messages
		 WHERE session_id = ? ORDER BY ordinal`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return scanTurns(rows)
}

func (s *Store) insert(ctx context.Context, id string) (Session, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)`, id, now, now)
	if err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("session created", slog.String("session_id", id))
	return Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	defer rows.Close()
	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Ordinal, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}
