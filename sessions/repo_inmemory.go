package sessions

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepo is an in-memory implementation of Repo. It backs the default
// session backend and the test suites.
type InMemoryRepo struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	byUserID map[string]map[string]struct{} // userID -> token set
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byToken:  make(map[string]*Session),
		byUserID: make(map[string]map[string]struct{}),
	}
}

// Insert persists a new session record.
func (r *InMemoryRepo) Insert(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	r.byToken[session.Token] = &stored

	if _, ok := r.byUserID[session.UserID]; !ok {
		r.byUserID[session.UserID] = make(map[string]struct{})
	}
	r.byUserID[session.UserID][session.Token] = struct{}{}
	return nil
}

// GetByToken returns the raw session record, expired or revoked included.
func (r *InMemoryRepo) GetByToken(_ context.Context, rawToken string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byToken[rawToken]
	if !ok {
		return nil, NotFoundErr
	}
	clone := *session
	return &clone, nil
}

// GetByUser returns every session record for the user.
func (r *InMemoryRepo) GetByUser(_ context.Context, userID string) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := r.byUserID[userID]
	result := make([]*Session, 0, len(tokens))
	for rawToken := range tokens {
		if session, ok := r.byToken[rawToken]; ok {
			clone := *session
			result = append(result, &clone)
		}
	}
	return result, nil
}

// Update overwrites the stored record keyed by session.Token.
func (r *InMemoryRepo) Update(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[session.Token]; !ok {
		return NotFoundErr
	}
	stored := *session
	r.byToken[session.Token] = &stored
	return nil
}

// DeleteByToken removes the record. Deleting an absent session is a no-op.
func (r *InMemoryRepo) DeleteByToken(_ context.Context, rawToken string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleteLocked(rawToken), nil
}

// DeleteAllByUser removes every session for the user.
func (r *InMemoryRepo) DeleteAllByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for rawToken := range r.byUserID[userID] {
		if r.deleteLocked(rawToken) {
			count++
		}
	}
	return count, nil
}

// DeleteExpired removes expired sessions and revoked sessions older than
// the retention cutoff.
func (r *InMemoryRepo) DeleteExpired(_ context.Context, now, revokedBefore time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for rawToken, session := range r.byToken {
		expired := !now.Before(session.ExpiresAt)
		staleRevoked := !session.IsActive && session.RevokedAt != nil && session.RevokedAt.Before(revokedBefore)
		if expired || staleRevoked {
			if r.deleteLocked(rawToken) {
				count++
			}
		}
	}
	return count, nil
}

func (r *InMemoryRepo) deleteLocked(rawToken string) bool {
	session, ok := r.byToken[rawToken]
	if !ok {
		return false
	}
	delete(r.byToken, rawToken)

	if tokens, ok := r.byUserID[session.UserID]; ok {
		delete(tokens, rawToken)
		if len(tokens) == 0 {
			delete(r.byUserID, session.UserID)
		}
	}
	return true
}
