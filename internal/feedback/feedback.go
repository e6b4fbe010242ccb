// Package feedback records user ratings of assistant replies.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Ratings accepted on an entry. An empty rating is allowed when only a
// comment is given.
const (
	RatingUp   = "thumbs_up"
	RatingDown = "thumbs_down"
)

// Entry is one piece of feedback about a reply.
type Entry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Rating    string    `json:"rating,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists feedback entries in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a feedback Store.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Add validates and records an entry, returning it with ID and timestamp
// filled in.
func (s *Store) Add(ctx context.Context, e Entry) (Entry, error) {
	e.Message = strings.TrimSpace(e.Message)
	if e.Message == "" {
		return Entry{}, fmt.Errorf("feedback message is required")
	}
	switch e.Rating {
	case "", RatingUp, RatingDown:
	default:
		return Entry{}, fmt.Errorf("invalid rating %q", e.Rating)
	}

	e.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (message, rating, comment, created_at) VALUES (?, ?, ?, ?)`,
		e.Message, e.Rating, e.Comment, e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("inserting feedback: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("reading feedback id: %w", err)
	}

	s.logger.Info("feedback recorded",
		slog.Int64("feedback_id", e.ID),
		slog.String("rating", e.Rating))
	return e, nil
}

// List returns the most recent entries, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, message, rating, comment, created_at FROM feedback ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var rating, comment sql.NullString
		if err := rows.Scan(&e.ID, &e.Message, &rating, &comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		e.Rating = rating.String
		e.Comment = comment.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}
	return entries, nil
}
