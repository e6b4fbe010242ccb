// Package session stores conversations as append-only logs of turns.
package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Roles a turn can carry. The store accepts consecutive turns with the same
// role; strict alternation is a convention, not an invariant.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session identifies one ongoing conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one message in a session. Turns are immutable once appended and
// strictly ordered by ordinal.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry is a turn annotated with its session, used by the
// cross-session history listing.
type HistoryEntry struct {
	SessionID string `json:"session_id"`
	Turn
}
