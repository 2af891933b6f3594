package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/token"
)

const (
	testUserID = "user-1"
	testEmail  = "john.doe@example.com"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type storeFixture struct {
	clock  *fakeClock
	issuer *token.Issuer
	repo   *sessions.InMemoryRepo
	store  *sessions.Store
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	clock := &fakeClock{now: time.Now()}
	issuer := token.NewIssuer(token.NewHMACSigner("store-test-secret"),
		token.WithNowFunc(clock.Now),
		token.WithTokenExpiry(time.Hour, 24*time.Hour))

	repo := sessions.NewInMemoryRepo()
	store, err := sessions.NewStore(repo, issuer, sessions.WithNowFunc(clock.Now))
	require.NoError(t, err)

	return &storeFixture{
		clock:  clock,
		issuer: issuer,
		repo:   repo,
		store:  store,
	}
}

func (f *storeFixture) createSession(t *testing.T, userID string) *sessions.Session {
	t.Helper()

	rawToken, err := f.issuer.Issue(userID, testEmail, "user")
	require.NoError(t, err)

	session, err := f.store.Create(context.Background(), sessions.CreateParams{
		UserID:    userID,
		Token:     rawToken,
		IP:        "203.0.113.7",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	return session
}

func TestCreateDerivesExpiryFromToken(t *testing.T) {
	f := newStoreFixture(t)

	session := f.createSession(t, testUserID)

	claims, err := f.issuer.Decode(session.Token)
	require.NoError(t, err)
	require.Equal(t, claims.ExpiresAt.Unix(), session.ExpiresAt.Unix())
	require.True(t, session.IsActive)
	require.Nil(t, session.RevokedAt)
}

func TestCreateRequiresFields(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Create(ctx, sessions.CreateParams{Token: "some-token"})
	require.True(t, errors.Is(err, sessions.MissingFieldErr))

	_, err = f.store.Create(ctx, sessions.CreateParams{UserID: testUserID})
	require.True(t, errors.Is(err, sessions.MissingFieldErr))
}

func TestCreateRejectsExpiredToken(t *testing.T) {
	f := newStoreFixture(t)

	rawToken, err := f.issuer.Issue(testUserID, testEmail, "user")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	_, err = f.store.Create(context.Background(), sessions.CreateParams{
		UserID: testUserID,
		Token:  rawToken,
	})
	require.True(t, errors.Is(err, token.TokenExpiredErr))
}

func TestGetByTokenLazilyRevokesExpired(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	session := f.createSession(t, testUserID)

	// Past the 1 hour token expiry.
	f.clock.Advance(2 * time.Hour)

	got, err := f.store.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.Nil(t, got)

	// The side effect must be persisted on the stored record.
	raw, err := f.repo.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.False(t, raw.IsActive)
	require.NotNil(t, raw.RevokedAt)
	require.Equal(t, sessions.ReasonExpired, raw.RevokedReason)
}

func TestGetByTokenMiss(t *testing.T) {
	f := newStoreFixture(t)

	got, err := f.store.GetByToken(context.Background(), "no-such-token")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetActiveByUserSortsByActivity(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	first := f.createSession(t, testUserID)
	f.clock.Advance(time.Minute)
	second := f.createSession(t, testUserID)
	f.clock.Advance(time.Minute)

	// Touch the first session so it becomes the most recently active.
	_, err := f.store.Touch(ctx, first.Token)
	require.NoError(t, err)

	active, err := f.store.GetActiveByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, first.ID, active[0].ID)
	require.Equal(t, second.ID, active[1].ID)
}

func TestTouchUnknownToken(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.store.Touch(context.Background(), "no-such-token")
	require.True(t, errors.Is(err, sessions.NotFoundErr))
}

func TestRevokeFirstWins(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	session := f.createSession(t, testUserID)

	revoked, err := f.store.Revoke(ctx, session.Token, sessions.ReasonLogout)
	require.NoError(t, err)
	require.False(t, revoked.IsActive)
	require.Equal(t, sessions.ReasonLogout, revoked.RevokedReason)
	firstRevokedAt := *revoked.RevokedAt

	f.clock.Advance(time.Minute)

	// A second revocation is a no-op: the original reason and timestamp stand.
	again, err := f.store.Revoke(ctx, session.Token, sessions.ReasonSecurity)
	require.NoError(t, err)
	require.Equal(t, sessions.ReasonLogout, again.RevokedReason)
	require.Equal(t, firstRevokedAt, *again.RevokedAt)
}

func TestLimitConcurrentEvictsOldestFirst(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	created := make([]*sessions.Session, 0, 6)
	for i := 0; i < 6; i++ {
		created = append(created, f.createSession(t, testUserID))
		f.clock.Advance(time.Second)
	}

	evicted, err := f.store.LimitConcurrent(ctx, testUserID, 5)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	count, err := f.store.CountActiveByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 5, count)

	// The earliest-created session is the one that went.
	gone, err := f.store.GetByToken(ctx, created[0].Token)
	require.NoError(t, err)
	require.Nil(t, gone)

	// Under the cap nothing is evicted.
	evicted, err = f.store.LimitConcurrent(ctx, testUserID, 5)
	require.NoError(t, err)
	require.Equal(t, 0, evicted)
}

func TestDeleteAllByUser(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	f.createSession(t, testUserID)
	f.createSession(t, testUserID)
	other := f.createSession(t, "user-2")

	count, err := f.store.DeleteAllByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	remaining, err := f.store.GetByToken(ctx, other.Token)
	require.NoError(t, err)
	require.NotNil(t, remaining)
}

func TestSweepExpired(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	f.createSession(t, testUserID)

	revoked := f.createSession(t, testUserID)
	_, err := f.store.Revoke(ctx, revoked.Token, sessions.ReasonManual)
	require.NoError(t, err)

	// Both sessions are past their 1 hour token expiry, revoked or not.
	f.clock.Advance(2 * time.Hour)

	count, err := f.store.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestSweepRetainsRecentlyRevoked(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	// Sessions from long-lived refresh tokens stay within expiry while the
	// retention logic is exercised.
	rawToken, err := f.issuer.IssueRefresh(testUserID)
	require.NoError(t, err)
	session, err := f.store.Create(ctx, sessions.CreateParams{UserID: testUserID, Token: rawToken})
	require.NoError(t, err)

	_, err = f.store.Revoke(ctx, session.Token, sessions.ReasonManual)
	require.NoError(t, err)

	// Inside the 30 day retention window and still short of the 24 hour
	// token expiry: kept.
	f.clock.Advance(12 * time.Hour)
	count, err := f.store.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSweepDeletesAtExpiryInstant(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	f.createSession(t, testUserID)

	// Validity requires now strictly before expiry, so landing exactly on
	// the expiry instant deletes.
	f.clock.Advance(time.Hour)

	count, err := f.store.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
