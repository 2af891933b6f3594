package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/avalontm/gemini-auth/sessions"
)

// SessionRepo implements sessions.Repo on SQLite.
type SessionRepo struct {
	db *sql.DB
}

const sessionColumns = "token, id, user_id, ip, user_agent, device, location, is_active, last_activity, expires_at, revoked_at, revoked_reason, created_at"

// Insert persists a new session record.
func (r *SessionRepo) Insert(ctx context.Context, session *sessions.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.Token,
		session.ID,
		session.UserID,
		session.IP,
		session.UserAgent,
		session.Device,
		session.Location,
		session.IsActive,
		session.LastActivity.UnixNano(),
		session.ExpiresAt.UnixNano(),
		nullableNano(session.RevokedAt),
		string(session.RevokedReason),
		session.CreatedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Insert] exec")
	}
	return nil
}

// GetByToken returns the raw session record, expired or revoked included.
func (r *SessionRepo) GetByToken(ctx context.Context, rawToken string) (*sessions.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, rawToken)
	session, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sessions.NotFoundErr
		}
		return nil, errors.Wrap(err, "[SessionRepo.GetByToken] scan")
	}
	return session, nil
}

// GetByUser returns every session record for the user.
func (r *SessionRepo) GetByUser(ctx context.Context, userID string) ([]*sessions.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.GetByUser] query")
	}
	defer rows.Close()

	var result []*sessions.Session
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "[SessionRepo.GetByUser] scan")
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.GetByUser] rows")
	}
	return result, nil
}

// Update overwrites the stored record keyed by session.Token.
func (r *SessionRepo) Update(ctx context.Context, session *sessions.Session) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = ?, last_activity = ?, expires_at = ?, revoked_at = ?, revoked_reason = ? WHERE token = ?`,
		session.IsActive,
		session.LastActivity.UnixNano(),
		session.ExpiresAt.UnixNano(),
		nullableNano(session.RevokedAt),
		string(session.RevokedReason),
		session.Token,
	)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Update] exec")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Update] rows affected")
	}
	if rows == 0 {
		return sessions.NotFoundErr
	}
	return nil
}

// DeleteByToken removes the record. Deleting an absent session is a no-op.
func (r *SessionRepo) DeleteByToken(ctx context.Context, rawToken string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, rawToken)
	if err != nil {
		return false, errors.Wrap(err, "[SessionRepo.DeleteByToken] exec")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "[SessionRepo.DeleteByToken] rows affected")
	}
	return rows > 0, nil
}

// DeleteAllByUser removes every session for the user.
func (r *SessionRepo) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteAllByUser] exec")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteAllByUser] rows affected")
	}
	return int(rows), nil
}

// DeleteExpired removes expired sessions and revoked sessions older than the
// retention cutoff.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ? OR (is_active = 0 AND revoked_at IS NOT NULL AND revoked_at < ?)`,
		now.UnixNano(),
		revokedBefore.UnixNano(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteExpired] exec")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteExpired] rows affected")
	}
	return int(rows), nil
}

func scanSession(scan func(dest ...any) error) (*sessions.Session, error) {
	session := &sessions.Session{}
	var (
		reason       string
		lastActivity int64
		expiresAt    int64
		revokedAt    sql.NullInt64
		createdAt    int64
	)

	if err := scan(
		&session.Token,
		&session.ID,
		&session.UserID,
		&session.IP,
		&session.UserAgent,
		&session.Device,
		&session.Location,
		&session.IsActive,
		&lastActivity,
		&expiresAt,
		&revokedAt,
		&reason,
		&createdAt,
	); err != nil {
		return nil, err
	}

	session.RevokedReason = sessions.RevokeReason(reason)
	session.LastActivity = time.Unix(0, lastActivity)
	session.ExpiresAt = time.Unix(0, expiresAt)
	session.CreatedAt = time.Unix(0, createdAt)
	if revokedAt.Valid {
		revoked := time.Unix(0, revokedAt.Int64)
		session.RevokedAt = &revoked
	}
	return session, nil
}

func nullableNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
