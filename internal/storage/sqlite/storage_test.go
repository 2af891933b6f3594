package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/avalontm/gemini-auth/internal/storage/sqlite"
	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/users"
)

func newTestStorage(t *testing.T) *sqlite.Storage {
	t.Helper()

	storage, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func newTestUser(username, email string) *users.User {
	now := time.Now()
	return &users.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Role:         users.RoleUser,
		Preferences:  users.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepoRoundTrip(t *testing.T) {
	repo := newTestStorage(t).Users()
	ctx := context.Background()

	user := newTestUser("alice", "Alice@Example.com")
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "alice@example.com", got.Email) // stored normalized
	require.Equal(t, "system", got.Preferences["theme"])
	require.Equal(t, user.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	// Lookup is case-insensitive.
	got, err = repo.GetByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	got, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestUserRepoUniqueness(t *testing.T) {
	repo := newTestStorage(t).Users()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestUser("alice", "alice@example.com")))

	err := repo.Create(ctx, newTestUser("bob", "alice@example.com"))
	require.True(t, errors.Is(err, users.EmailExistsErr))

	err = repo.Create(ctx, newTestUser("alice", "bob@example.com"))
	require.True(t, errors.Is(err, users.UsernameExistsErr))
}

func TestUserRepoUpdate(t *testing.T) {
	repo := newTestStorage(t).Users()
	ctx := context.Background()

	user := newTestUser("alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, user))

	user.Username = "alice2"
	user.Preferences["theme"] = "dark"
	require.NoError(t, repo.UpdateByID(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice2", got.Username)
	require.Equal(t, "dark", got.Preferences["theme"])

	missing := newTestUser("ghost", "ghost@example.com")
	err = repo.UpdateByID(ctx, missing)
	require.True(t, errors.Is(err, users.NotFoundErr))
}

func TestUserRepoNotFound(t *testing.T) {
	repo := newTestStorage(t).Users()

	_, err := repo.GetByID(context.Background(), "no-such-id")
	require.True(t, errors.Is(err, users.NotFoundErr))
}

func newTestSession(userID string, expiresAt time.Time) *sessions.Session {
	now := time.Now()
	return &sessions.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		Token:        uuid.New().String(),
		IP:           "203.0.113.7",
		UserAgent:    "test-agent",
		IsActive:     true,
		LastActivity: now,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
}

func TestSessionRepoRoundTrip(t *testing.T) {
	repo := newTestStorage(t).Sessions()
	ctx := context.Background()

	session := newTestSession("user-1", time.Now().Add(time.Hour))
	require.NoError(t, repo.Insert(ctx, session))

	got, err := repo.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)
	require.True(t, got.IsActive)
	require.Nil(t, got.RevokedAt)
	require.Equal(t, session.ExpiresAt.UnixNano(), got.ExpiresAt.UnixNano())

	_, err = repo.GetByToken(ctx, "no-such-token")
	require.True(t, errors.Is(err, sessions.NotFoundErr))
}

func TestSessionRepoUpdateRevocation(t *testing.T) {
	repo := newTestStorage(t).Sessions()
	ctx := context.Background()

	session := newTestSession("user-1", time.Now().Add(time.Hour))
	require.NoError(t, repo.Insert(ctx, session))

	revokedAt := time.Now()
	session.IsActive = false
	session.RevokedAt = &revokedAt
	session.RevokedReason = sessions.ReasonLogout
	require.NoError(t, repo.Update(ctx, session))

	got, err := repo.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.NotNil(t, got.RevokedAt)
	require.Equal(t, sessions.ReasonLogout, got.RevokedReason)
}

func TestSessionRepoDeleteByUser(t *testing.T) {
	repo := newTestStorage(t).Sessions()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestSession("user-1", time.Now().Add(time.Hour))))
	require.NoError(t, repo.Insert(ctx, newTestSession("user-1", time.Now().Add(time.Hour))))
	require.NoError(t, repo.Insert(ctx, newTestSession("user-2", time.Now().Add(time.Hour))))

	all, err := repo.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 2)

	count, err := repo.DeleteAllByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	remaining, err := repo.GetByUser(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestSessionRepoDeleteExpired(t *testing.T) {
	repo := newTestStorage(t).Sessions()
	ctx := context.Background()
	now := time.Now()

	expired := newTestSession("user-1", now.Add(-time.Minute))
	require.NoError(t, repo.Insert(ctx, expired))

	staleRevokedAt := now.Add(-48 * time.Hour)
	staleRevoked := newTestSession("user-1", now.Add(time.Hour))
	staleRevoked.IsActive = false
	staleRevoked.RevokedAt = &staleRevokedAt
	staleRevoked.RevokedReason = sessions.ReasonManual
	require.NoError(t, repo.Insert(ctx, staleRevoked))

	alive := newTestSession("user-1", now.Add(time.Hour))
	require.NoError(t, repo.Insert(ctx, alive))

	count, err := repo.DeleteExpired(ctx, now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	got, err := repo.GetByToken(ctx, alive.Token)
	require.NoError(t, err)
	require.Equal(t, alive.ID, got.ID)
}
