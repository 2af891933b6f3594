package users

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// NotFoundErr is returned when no user matches the lookup.
	NotFoundErr = errors.New("user not found")

	// EmailExistsErr is returned when the email is already registered.
	EmailExistsErr = errors.New("email already registered")

	// UsernameExistsErr is returned when the username is already taken.
	UsernameExistsErr = errors.New("username already taken")
)

// Repo defines the data-access contract for user records. Storage backends
// enforce the uniqueness constraints as a backstop to the orchestrator's own
// pre-checks.
type Repo interface {
	// Create inserts a new user. Returns EmailExistsErr or UsernameExistsErr
	// on a uniqueness violation.
	Create(ctx context.Context, user *User) error

	// GetByID returns the user with the given ID, or NotFoundErr.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail returns the user with the given email (case-insensitive),
	// or NotFoundErr.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername returns the user with the given username, or NotFoundErr.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateByID applies the given user record over the stored one, keyed by
	// user.ID. Returns NotFoundErr when the user does not exist and the
	// uniqueness errors when an updated email/username collides.
	UpdateByID(ctx context.Context, user *User) error
}
