package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/avalontm/gemini-auth/users"
)

// UserRepo implements users.Repo on SQLite.
type UserRepo struct {
	db *sql.DB
}

const userColumns = "id, username, email, password_hash, role, preferences, created_at, updated_at"

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, user *users.User) error {
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Create] marshal preferences")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		users.NormalizeEmail(user.Email),
		user.PasswordHash,
		string(user.Role),
		string(preferences),
		user.CreatedAt.UnixNano(),
		user.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return mapUserConstraintErr(err)
	}
	return nil
}

// GetByID returns the user with the given ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail returns the user with the given email, case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, users.NormalizeEmail(email))
}

// GetByUsername returns the user with the given username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// UpdateByID overwrites the mutable user fields.
func (r *UserRepo) UpdateByID(ctx context.Context, user *users.User) error {
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.UpdateByID] marshal preferences")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, password_hash = ?, role = ?, preferences = ?, updated_at = ? WHERE id = ?`,
		user.Username,
		users.NormalizeEmail(user.Email),
		user.PasswordHash,
		string(user.Role),
		string(preferences),
		user.UpdatedAt.UnixNano(),
		user.ID,
	)
	if err != nil {
		return mapUserConstraintErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[UserRepo.UpdateByID] rows affected")
	}
	if rows == 0 {
		return users.NotFoundErr
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*users.User, error) {
	user := &users.User{}
	var (
		role        string
		preferences string
		createdAt   int64
		updatedAt   int64
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&preferences,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.NotFoundErr
		}
		return nil, errors.Wrap(err, "[UserRepo] query user")
	}

	user.Role = users.RoleType(role)
	user.CreatedAt = time.Unix(0, createdAt)
	user.UpdatedAt = time.Unix(0, updatedAt)
	if err := json.Unmarshal([]byte(preferences), &user.Preferences); err != nil {
		return nil, errors.Wrap(err, "[UserRepo] unmarshal preferences")
	}
	return user, nil
}

func mapUserConstraintErr(err error) error {
	message := err.Error()
	switch {
	case strings.Contains(message, "users.email"):
		return users.EmailExistsErr
	case strings.Contains(message, "users.username"):
		return users.UsernameExistsErr
	}
	return errors.Wrap(err, "[UserRepo] exec")
}
