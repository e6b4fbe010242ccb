// Package botconfig persists the tunable assistant profile: system prompt
// and generation parameters that operators adjust at runtime.
package botconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultName is the profile every lookup falls back to.
const DefaultName = "default"

// Profile is one named assistant configuration. Saving a profile appends a
// new row; Current always reads the latest, so history is retained and the
// newest save wins.
type Profile struct {
	Name         string  `json:"name"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Model        string  `json:"model,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Store persists profiles in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a profile Store.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Save appends a new version of the profile. An empty name saves the
// default profile.
func (s *Store) Save(ctx context.Context, p Profile) (Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return Profile{}, fmt.Errorf("temperature %v out of range [0, 2]", p.Temperature)
	}
	p.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(p)
	if err != nil {
		return Profile{}, fmt.Errorf("encoding profile: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_configs (name, config, updated_at) VALUES (?, ?, ?)`,
		p.Name, string(payload), p.UpdatedAt); err != nil {
		return Profile{}, fmt.Errorf("saving profile: %w", err)
	}

	s.logger.Info("assistant profile saved", slog.String("name", p.Name))
	return p, nil
}

// Current returns the latest saved version of the named profile. When
// nothing was ever saved it returns a zero Profile with just the name set,
// so callers can layer it over their static defaults.
func (s *Store) Current(ctx context.Context, name string) (Profile, error) {
	if name == "" {
		name = DefaultName
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM bot_configs WHERE name = ? ORDER BY id DESC LIMIT 1`, name).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{Name: name}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}
