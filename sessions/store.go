package sessions

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/avalontm/gemini-auth/token"
)

// DefaultMaxSessions caps the number of concurrently active sessions per user.
const DefaultMaxSessions = 5

// DefaultRetention is how long revoked sessions are kept before the sweep
// removes them.
const DefaultRetention = 30 * 24 * time.Hour

// CreateParams are the inputs for Store.Create.
type CreateParams struct {
	UserID    string
	Token     string
	IP        string
	UserAgent string
	Device    string
	Location  string
}

// Store implements the session lifecycle over a Repo backend: lazy expiry
// on lookup, first-wins revocation, FIFO concurrent-session eviction, and
// the periodic sweep. Session lifetime always equals token lifetime.
type Store struct {
	repo      Repo
	tokens    *token.Issuer
	retention time.Duration
	nowFunc   func() time.Time
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// WithRetention sets how long revoked sessions survive before the sweep
// deletes them.
func WithRetention(retention time.Duration) StoreOption {
	return func(s *Store) {
		s.retention = retention
	}
}

// NewStore creates a session Store over the given backend. The token issuer
// is used to derive session expiry from token expiry.
func NewStore(repo Repo, tokens *token.Issuer, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewStore] token issuer is required")
	}

	s := &Store{
		repo:      repo,
		tokens:    tokens,
		retention: DefaultRetention,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Create persists a new active session. The expiry is derived from the
// token's decoded expiry claim, never chosen independently, so a session can
// neither outlive nor underlive its token.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Session, error) {
	if params.UserID == "" {
		return nil, errors.Wrap(MissingFieldErr, "[Store.Create] userID")
	}
	if params.Token == "" {
		return nil, errors.Wrap(MissingFieldErr, "[Store.Create] token")
	}

	claims, err := s.tokens.Decode(params.Token)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Create] decode token expiry")
	}

	now := s.nowFunc()
	if !claims.ExpiresAt.After(now) {
		return nil, errors.Wrap(token.TokenExpiredErr, "[Store.Create] token already expired")
	}

	session := &Session{
		ID:           uuid.New().String(),
		UserID:       params.UserID,
		Token:        params.Token,
		IP:           params.IP,
		UserAgent:    params.UserAgent,
		Device:       params.Device,
		Location:     params.Location,
		IsActive:     true,
		LastActivity: now,
		ExpiresAt:    claims.ExpiresAt,
		CreatedAt:    now,
	}

	if err := s.repo.Insert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Store.Create] repo.Insert")
	}
	return session, nil
}

// GetByToken returns the session for the token, or nil when absent.
// Finding an expired session revokes it with reason "expired" as a side
// effect and returns nil: expiry is discovered lazily on lookup rather than
// swept on every tick. Revoked-but-unexpired sessions are returned as-is;
// callers decide validity via IsValid.
func (s *Store) GetByToken(ctx context.Context, rawToken string) (*Session, error) {
	session, err := s.repo.GetByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, NotFoundErr) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Store.GetByToken] repo.GetByToken")
	}

	if session.IsExpired(s.nowFunc()) {
		if _, err := s.Revoke(ctx, rawToken, ReasonExpired); err != nil && !errors.Is(err, NotFoundErr) {
			return nil, errors.Wrap(err, "[Store.GetByToken] revoke expired")
		}
		return nil, nil
	}

	return session, nil
}

// GetActiveByUser returns the user's valid sessions, most recent activity
// first.
func (s *Store) GetActiveByUser(ctx context.Context, userID string) ([]*Session, error) {
	all, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetActiveByUser] repo.GetByUser")
	}

	now := s.nowFunc()
	active := make([]*Session, 0, len(all))
	for _, session := range all {
		if session.IsValid(now) {
			active = append(active, session)
		}
	}

	sort.Slice(active, func(a, b int) bool {
		return active[a].LastActivity.After(active[b].LastActivity)
	})
	return active, nil
}

// CountActiveByUser returns the number of valid sessions for the user.
func (s *Store) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	active, err := s.GetActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

// Touch updates the session's last-activity timestamp.
func (s *Store) Touch(ctx context.Context, rawToken string) (*Session, error) {
	session, err := s.repo.GetByToken(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Touch] repo.GetByToken")
	}

	session.LastActivity = s.nowFunc()
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Store.Touch] repo.Update")
	}
	return session, nil
}

// Revoke marks the session inactive. Revoking an already-revoked session is
// not an error and does not overwrite the earlier revocation: the first
// revocation wins.
func (s *Store) Revoke(ctx context.Context, rawToken string, reason RevokeReason) (*Session, error) {
	session, err := s.repo.GetByToken(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Revoke] repo.GetByToken")
	}

	if session.RevokedAt != nil {
		return session, nil
	}

	now := s.nowFunc()
	session.IsActive = false
	session.RevokedAt = &now
	session.RevokedReason = reason

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Store.Revoke] repo.Update")
	}
	return session, nil
}

// DeleteByToken removes the session record outright.
func (s *Store) DeleteByToken(ctx context.Context, rawToken string) (bool, error) {
	deleted, err := s.repo.DeleteByToken(ctx, rawToken)
	if err != nil {
		return false, errors.Wrap(err, "[Store.DeleteByToken] repo.DeleteByToken")
	}
	return deleted, nil
}

// DeleteAllByUser removes every session for the user and returns the count.
func (s *Store) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "[Store.DeleteAllByUser] repo.DeleteAllByUser")
	}
	return count, nil
}

// SweepExpired deletes sessions past their expiry, plus revoked sessions
// older than the retention window. The expiry comparison is inclusive: a
// session whose expiry equals now is no longer valid and is deleted.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := s.nowFunc()
	count, err := s.repo.DeleteExpired(ctx, now, now.Add(-s.retention))
	if err != nil {
		return 0, errors.Wrap(err, "[Store.SweepExpired] repo.DeleteExpired")
	}
	return count, nil
}

// LimitConcurrent enforces the per-user session cap, evicting the
// oldest-created sessions first (FIFO, not LRU) until the cap holds.
// Returns the number of sessions evicted.
func (s *Store) LimitConcurrent(ctx context.Context, userID string, maxSessions int) (int, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	active, err := s.GetActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(active) <= maxSessions {
		return 0, nil
	}

	sort.Slice(active, func(a, b int) bool {
		return active[a].CreatedAt.Before(active[b].CreatedAt)
	})

	evicted := 0
	for _, session := range active[:len(active)-maxSessions] {
		if _, err := s.repo.DeleteByToken(ctx, session.Token); err != nil {
			return evicted, errors.Wrap(err, "[Store.LimitConcurrent] repo.DeleteByToken")
		}
		evicted++
	}
	return evicted, nil
}
