package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"blackout/api/internal/game"
)

const (
	docPrefix     = "game:"
	versionSuffix = ":v"
)

// RedisStore keeps the document JSON under game:{code} and its version
// counter under game:{code}:v. CAS runs as a WATCH/MULTI transaction on
// the version key, so concurrent writers against the same version lose
// with ErrConflict instead of clobbering each other.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis. ttl bounds how long an abandoned
// session lingers; zero means no expiry. The TTL is refreshed on every
// accepted write.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreWithClient builds a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) docKey(code string) string     { return docPrefix + code }
func (s *RedisStore) versionKey(code string) string { return docPrefix + code + versionSuffix }

func (s *RedisStore) Get(ctx context.Context, code string) (game.State, int64, error) {
	pipe := s.client.Pipeline()
	docCmd := pipe.Get(ctx, s.docKey(code))
	verCmd := pipe.Get(ctx, s.versionKey(code))
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return game.State{}, 0, ErrNotFound
		}
		return game.State{}, 0, fmt.Errorf("%w: get %s: %v", ErrUnavailable, code, err)
	}

	var state game.State
	if err := json.Unmarshal([]byte(docCmd.Val()), &state); err != nil {
		return game.State{}, 0, fmt.Errorf("decode session %s: %w", code, err)
	}
	version, err := verCmd.Int64()
	if err != nil {
		return game.State{}, 0, fmt.Errorf("decode version %s: %w", code, err)
	}
	return state, version, nil
}

func (s *RedisStore) Create(ctx context.Context, state game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.Code, err)
	}

	ok, err := s.client.SetNX(ctx, s.versionKey(state.Code), 1, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrUnavailable, state.Code, err)
	}
	if !ok {
		return ErrConflict
	}
	if err := s.client.Set(ctx, s.docKey(state.Code), doc, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrUnavailable, state.Code, err)
	}
	return nil
}

func (s *RedisStore) CompareAndSet(ctx context.Context, code string, expected int64, state game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", code, err)
	}

	verKey := s.versionKey(code)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: cas %s: %v", ErrUnavailable, code, err)
		}
		if current != expected {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.docKey(code), doc, s.ttl)
			pipe.Incr(ctx, verKey)
			if s.ttl > 0 {
				pipe.Expire(ctx, verKey, s.ttl)
			}
			return nil
		})
		return err
	}, verKey)

	// The version key changed between WATCH and EXEC: a concurrent
	// writer won the race.
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: cas %s: %v", ErrUnavailable, code, err)
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, s.docKey(code), s.versionKey(code)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, code, err)
	}
	return nil
}

func (s *RedisStore) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	iter := s.client.Scan(ctx, 0, docPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) > len(versionSuffix) && key[len(key)-len(versionSuffix):] == versionSuffix {
			continue
		}
		codes = append(codes, key[len(docPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: list codes: %v", ErrUnavailable, err)
	}
	return codes, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
