// Package redisstore is the Redis implementation of the session store,
// selected with SESSION_STORE=redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/repository"
)

const keyPrefix = "session:refresh:"

// SessionStore keeps one key per refresh token.  Keys carry a TTL equal to
// the remaining session lifetime, so Redis performs the expiry sweep.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore { return &SessionStore{rdb: rdb} }

func key(id string) string { return keyPrefix + id }

// Create stores sess with a TTL of its lifetime, ExpiresAt minus
// CreatedAt, so the caller's clock decides expiry.  A session that is
// already dead on arrival is an error.
func (s *SessionStore) Create(ctx context.Context, sess *model.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s: non-positive lifetime %s", sess.ID, ttl)
	}
	body, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(sess.ID), body, ttl).Err()
}

// Redeem uses GETDEL, which removes and returns the key in one atomic
// command.  A payload that is already past its expiry counts as missing.
func (s *SessionStore) Redeem(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	body, err := s.rdb.GetDel(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, err
	}
	if !sess.Live(now) {
		return nil, repository.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, key(id)).Err()
}

// DeleteExpired is a no-op: key TTLs already drop expired sessions.
func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
