package repository

import (
	"context"
	"encoding/json"
	"kmms_simulator/internal/model"
	"kmms_simulator/internal/util"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "kmms:session:"

// RedisSessionStore 以 JSON 保存会话，后写覆盖先写，每次保存刷新过期时间
type RedisSessionStore struct {
	Redis *redis.Client

	mu  sync.RWMutex
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{Redis: rdb, ttl: ttl}
}

func (s *RedisSessionStore) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

func (s *RedisSessionStore) TTL() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*model.SessionState, error) {
	data, err := s.Redis.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var state model.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state *model.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, sessionKeyPrefix+state.ID, data, s.TTL()).Err()
}
