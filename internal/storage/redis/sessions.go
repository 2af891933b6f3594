package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/avalontm/gemini-auth/sessions"
)

const (
	sessionKeyPrefix = "auth:session:"
	userSetKeyPrefix = "auth:user-sessions:"
)

// SessionRepo implements sessions.Repo on Redis. Records are stored as JSON
// keyed by token, with a per-user set as the secondary index.
type SessionRepo struct {
	client redis.UniversalClient
}

// NewSessionRepo creates a session repository over the given Redis client.
func NewSessionRepo(client redis.UniversalClient) *SessionRepo {
	return &SessionRepo{client: client}
}

func sessionKey(rawToken string) string {
	return sessionKeyPrefix + rawToken
}

func userSetKey(userID string) string {
	return userSetKeyPrefix + userID
}

// Insert persists a new session record.
func (r *SessionRepo) Insert(ctx context.Context, session *sessions.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Insert] marshal")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.Token), payload, 0)
		pipe.SAdd(ctx, userSetKey(session.UserID), session.Token)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Insert] pipeline")
	}
	return nil
}

// GetByToken returns the raw session record, expired or revoked included.
func (r *SessionRepo) GetByToken(ctx context.Context, rawToken string) (*sessions.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(rawToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sessions.NotFoundErr
		}
		return nil, errors.Wrap(err, "[SessionRepo.GetByToken] get")
	}

	session := &sessions.Session{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.GetByToken] unmarshal")
	}
	return session, nil
}

// GetByUser returns every session record for the user. Tokens left dangling
// in the set by a partial delete are skipped.
func (r *SessionRepo) GetByUser(ctx context.Context, userID string) ([]*sessions.Session, error) {
	tokens, err := r.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.GetByUser] smembers")
	}

	result := make([]*sessions.Session, 0, len(tokens))
	for _, rawToken := range tokens {
		session, err := r.GetByToken(ctx, rawToken)
		if err != nil {
			if errors.Is(err, sessions.NotFoundErr) {
				continue
			}
			return nil, err
		}
		result = append(result, session)
	}
	return result, nil
}

// Update overwrites the stored record keyed by session.Token.
func (r *SessionRepo) Update(ctx context.Context, session *sessions.Session) error {
	key := sessionKey(session.Token)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Update] exists")
	}
	if exists == 0 {
		return sessions.NotFoundErr
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Update] marshal")
	}
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return errors.Wrap(err, "[SessionRepo.Update] set")
	}
	return nil
}

// DeleteByToken removes the record. Deleting an absent session is a no-op.
func (r *SessionRepo) DeleteByToken(ctx context.Context, rawToken string) (bool, error) {
	session, err := r.GetByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, sessions.NotFoundErr) {
			return false, nil
		}
		return false, err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(rawToken))
		pipe.SRem(ctx, userSetKey(session.UserID), rawToken)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "[SessionRepo.DeleteByToken] pipeline")
	}
	return true, nil
}

// DeleteAllByUser removes every session for the user.
func (r *SessionRepo) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	tokens, err := r.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteAllByUser] smembers")
	}

	count := 0
	for _, rawToken := range tokens {
		deleted, err := r.DeleteByToken(ctx, rawToken)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}

	if err := r.client.Del(ctx, userSetKey(userID)).Err(); err != nil {
		return count, errors.Wrap(err, "[SessionRepo.DeleteAllByUser] del set")
	}
	return count, nil
}

// DeleteExpired scans all session records and removes expired sessions plus
// revoked sessions older than the retention cutoff.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int, error) {
	count := 0
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return count, errors.Wrap(err, "[SessionRepo.DeleteExpired] scan")
		}

		for _, key := range keys {
			rawToken := key[len(sessionKeyPrefix):]
			session, err := r.GetByToken(ctx, rawToken)
			if err != nil {
				if errors.Is(err, sessions.NotFoundErr) {
					continue
				}
				return count, err
			}

			expired := !now.Before(session.ExpiresAt)
			staleRevoked := !session.IsActive && session.RevokedAt != nil && session.RevokedAt.Before(revokedBefore)
			if expired || staleRevoked {
				deleted, err := r.DeleteByToken(ctx, rawToken)
				if err != nil {
					return count, err
				}
				if deleted {
					count++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}
