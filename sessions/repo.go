package sessions

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// NotFoundErr is returned when no session matches the lookup.
	NotFoundErr = errors.New("session not found")

	// MissingFieldErr is returned by Store.Create when a required field is absent.
	MissingFieldErr = errors.New("missing required session field")
)

// Repo is the low-level storage contract implemented by the in-memory,
// SQLite, and Redis backends. Each method maps to a single atomic storage
// operation; the lifecycle semantics (lazy expiry, idempotent revocation,
// FIFO eviction) live in Store.
type Repo interface {
	// Insert persists a new session record.
	Insert(ctx context.Context, session *Session) error

	// GetByToken returns the raw session record, expired or revoked
	// included. Returns NotFoundErr when absent.
	GetByToken(ctx context.Context, rawToken string) (*Session, error)

	// GetByUser returns every session record for the user, in no
	// particular order.
	GetByUser(ctx context.Context, userID string) ([]*Session, error)

	// Update overwrites the stored record keyed by session.Token.
	// Returns NotFoundErr when absent.
	Update(ctx context.Context, session *Session) error

	// DeleteByToken removes the record. Deleting an absent session is not
	// an error; the bool reports whether anything was removed.
	DeleteByToken(ctx context.Context, rawToken string) (bool, error)

	// DeleteAllByUser removes every session for the user and returns the
	// number removed.
	DeleteAllByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired removes sessions with expiresAt before now, plus
	// inactive sessions revoked before revokedBefore. Returns the number
	// removed.
	DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int, error)
}
