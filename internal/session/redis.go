package session

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"task-planner/internal/ai"
)

// RedisStore хранит сессии в Redis под ключом chat:session:<id>.
// TTL продлевается при каждом Put; ttl == 0 означает "без срока".
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore создаёт хранилище поверх готового клиента. Отрицательный ttl считается нулём.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session.NewRedisStore: redis client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{redis: client, ttl: ttl}
}

// Get читает сессию. Повреждённая запись удаляется и считается промахом.
func (r *RedisStore) Get(ctx context.Context, id string) (Session, bool, error) {
	data, err := r.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}

	var s Session
	if err := sonic.Unmarshal(data, &s); err != nil || s.ID != id {
		_ = r.redis.Del(ctx, sessionKey(id)).Err()
		return Session{}, false, nil
	}
	if s.Transcript == nil {
		s.Transcript = []ai.ChatMessage{}
	}
	return s, true, nil
}

// Put записывает сессию и продлевает её TTL.
func (r *RedisStore) Put(ctx context.Context, s Session) error {
	data, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, sessionKey(s.ID), data, r.ttl).Err()
}

// Delete удаляет ключ сессии.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.redis.Del(ctx, sessionKey(id)).Err()
}

func sessionKey(id string) string {
	return "chat:session:" + id
}
