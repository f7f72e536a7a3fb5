package killswitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "bulwark:kill_switch"

// RedisStore keeps the breaker record as a JSON value under a single key,
// for deployments where the gate and the notification poller run in
// separate processes. Writers still race last-writer-wins across processes.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: defaultRedisKey}
}

// OpenRedisStore dials addr and verifies connectivity.
func OpenRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(client), nil
}

// Load reads the record; a missing key is the zero (active) state.
func (s *RedisStore) Load(ctx context.Context) (State, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("decode kill-switch record: %w", err)
	}
	return state, nil
}

// Save rewrites the record whole.
func (s *RedisStore) Save(ctx context.Context, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
