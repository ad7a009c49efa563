package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"identity-verify/models"
)

// sessionTTL bounds how long an abandoned session's state survives in
// Redis before it is evicted.
const sessionTTL = 24 * time.Hour

// RedisStore persists PhaseState as namespaced JSON values in Redis.
type RedisStore struct {
	client    *goredis.Client
	namespace string
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *goredis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(sessionID string) string {
	if s.namespace == "" {
		return sessionID
	}
	return fmt.Sprintf("%s:%s", s.namespace, sessionID)
}

func (s *RedisStore) Save(sessionID string, state models.PhaseState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal phase state: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(sessionID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(sessionID string) (models.PhaseState, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.PhaseState{}, false, nil
	}
	if err != nil {
		return models.PhaseState{}, false, fmt.Errorf("load session from redis: %w", err)
	}
	var state models.PhaseState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.PhaseState{}, false, fmt.Errorf("unmarshal phase state: %w", err)
	}
	return state, true, nil
}

func (s *RedisStore) Remove(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("remove session from redis: %w", err)
	}
	return nil
}
