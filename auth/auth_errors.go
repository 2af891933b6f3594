package auth

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// InvalidCredentialsErr is returned for every login failure, whether the
	// email is unknown or the password is wrong. Callers must not be able to
	// probe which accounts exist.
	InvalidCredentialsErr = errors.New("invalid credentials")

	// SessionInvalidErr is returned when a token verifies but no valid
	// session backs it, or when the session is expired or revoked.
	SessionInvalidErr = errors.New("session is no longer valid")

	// TokenRequiredErr is returned when no token was supplied at all.
	TokenRequiredErr = errors.New("authentication token required")

	// EmailExistsErr is returned on registration with an email already in use.
	EmailExistsErr = errors.New("email already registered")

	// UsernameExistsErr is returned on registration with a username already in use.
	UsernameExistsErr = errors.New("username already taken")

	// UserNotFoundErr is returned when the authenticated user no longer exists.
	UserNotFoundErr = errors.New("user not found")

	// NotRefreshTokenErr is returned when a token presented for refresh is
	// not a refresh token.
	NotRefreshTokenErr = errors.New("token is not a refresh token")

	// PasswordMismatchErr is returned on password change when the current
	// password does not match.
	PasswordMismatchErr = errors.New("current password is incorrect")

	// PasswordUnchangedErr is returned on password change when the new
	// password equals the current one.
	PasswordUnchangedErr = errors.New("new password must differ from the current password")
)

// ValidationError carries every failed input rule at once so the caller can
// report them all in a single response.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// NewValidationError creates a ValidationError from the given rule violations.
func NewValidationError(violations []string) *ValidationError {
	return &ValidationError{Violations: violations}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
