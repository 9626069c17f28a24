package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tradegate/internal/verification"
	id "tradegate/pkg/domain"
	"tradegate/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "verification:session:"

	// maxUpdateAttempts bounds optimistic retries when another writer commits
	// between WATCH and EXEC.
	maxUpdateAttempts = 3
)

// RedisStore keeps sessions as JSON snapshots. Update uses WATCH/MULTI so a
// concurrent writer causes a retry against the fresh snapshot instead of a
// lost update.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a RedisStore. A zero ttl keeps sessions indefinitely.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID id.UserID) string {
	return sessionKeyPrefix + userID.String()
}

func (s *RedisStore) Create(ctx context.Context, session *verification.Session) error {
	data, err := json.Marshal(session.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.UserID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) FindByUser(ctx context.Context, userID id.UserID) (*verification.Session, error) {
	return s.load(ctx, s.client, sessionKey(userID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, key string) (*verification.Session, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var snap verification.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return verification.Restore(snap)
}

func (s *RedisStore) Update(ctx context.Context, userID id.UserID, fn func(*verification.Session) error) (*verification.Session, error) {
	key := sessionKey(userID)
	var updated *verification.Session

	txf := func(tx *redis.Tx) error {
		session, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		data, err := json.Marshal(session.Snapshot())
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		updated = session
		return nil
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, sentinel.ErrConflict
}
