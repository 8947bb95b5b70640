package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

const sessionKeyPrefix = "auth:session:"

// RedisSessionStore keeps browser sessions server-side with an idle-timeout
// TTL. The cookie only ever carries the opaque ID; when Redis forgets a key
// the session has simply timed out.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Create(ctx context.Context, data ports.SessionData, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	sessionID := uuid.NewString()
	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, raw, ttl).Err(); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*ports.SessionData, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}
	var out ports.SessionData
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKeyPrefix+sessionID, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionExpired
	}
	return nil
}

func (s *RedisSessionStore) SetPasswordUpdateRequired(ctx context.Context, sessionID string, required bool) error {
	return s.mutate(ctx, sessionID, func(data *ports.SessionData) {
		data.PasswordUpdateRequired = required
	})
}

func (s *RedisSessionStore) SaveRequestedPath(ctx context.Context, sessionID, path string) error {
	return s.mutate(ctx, sessionID, func(data *ports.SessionData) {
		data.SavedPath = path
	})
}

func (s *RedisSessionStore) Destroy(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// mutate rewrites the envelope while preserving the remaining TTL, so a
// marker update never extends or shortens the session lifetime.
func (s *RedisSessionStore) mutate(ctx context.Context, sessionID string, apply func(*ports.SessionData)) error {
	key := sessionKeyPrefix + sessionID
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionExpired
		}
		return err
	}
	var data ports.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	apply(&data)

	updated, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, updated, redis.KeepTTL).Err()
}
