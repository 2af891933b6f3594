package users

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryRepo is an in-memory implementation of Repo. It backs the default
// storage configuration and the test suites.
type InMemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string // normalized email -> user ID
	byName  map[string]string // username -> user ID
}

// NewInMemoryRepo creates a new in-memory user repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
	}
}

// Create inserts a new user, enforcing the uniqueness constraints.
func (r *InMemoryRepo) Create(_ context.Context, user *User) error {
	if user == nil || user.ID == "" {
		return errors.New("user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := NormalizeEmail(user.Email)
	if _, taken := r.byEmail[email]; taken {
		return EmailExistsErr
	}
	if _, taken := r.byName[user.Username]; taken {
		return UsernameExistsErr
	}

	stored := cloneUser(user)
	r.byID[user.ID] = stored
	r.byEmail[email] = user.ID
	r.byName[user.Username] = user.ID
	return nil
}

// GetByID retrieves a user by ID
func (r *InMemoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, NotFoundErr
	}
	return cloneUser(user), nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *InMemoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, NotFoundErr
	}
	return cloneUser(r.byID[id]), nil
}

// GetByUsername retrieves a user by username
func (r *InMemoryRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[username]
	if !ok {
		return nil, NotFoundErr
	}
	return cloneUser(r.byID[id]), nil
}

// UpdateByID replaces the stored record keyed by user.ID.
func (r *InMemoryRepo) UpdateByID(_ context.Context, user *User) error {
	if user == nil || user.ID == "" {
		return errors.New("user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return NotFoundErr
	}

	newEmail := NormalizeEmail(user.Email)
	oldEmail := NormalizeEmail(existing.Email)
	if newEmail != oldEmail {
		if _, taken := r.byEmail[newEmail]; taken {
			return EmailExistsErr
		}
	}
	if user.Username != existing.Username {
		if _, taken := r.byName[user.Username]; taken {
			return UsernameExistsErr
		}
	}

	delete(r.byEmail, oldEmail)
	delete(r.byName, existing.Username)

	stored := cloneUser(user)
	r.byID[user.ID] = stored
	r.byEmail[newEmail] = user.ID
	r.byName[user.Username] = user.ID
	return nil
}

// cloneUser copies the record so callers cannot mutate stored state.
func cloneUser(user *User) *User {
	clone := *user
	if user.Preferences != nil {
		clone.Preferences = make(map[string]any, len(user.Preferences))
		for k, v := range user.Preferences {
			clone.Preferences[k] = v
		}
	}
	return &clone
}
