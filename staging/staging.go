package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	model "github.com/Itish41/ndareview/models"
)

// ErrExpired is returned when a staging id is unknown or its TTL has passed.
var ErrExpired = errors.New("staged file not found or expired")

const keyPrefix = "ndareview:staging:"

// Store holds uploaded bytes between the upload and clause-extraction requests
// so the client only carries an opaque id.
type Store interface {
	Stage(ctx context.Context, file model.FileData) (model.StagedFile, error)
	Fetch(ctx context.Context, id string) (model.StagedFile, error)
	Drop(ctx context.Context, id string) error
}

// commands is the subset of the Redis client the store uses.
type commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps staged files in Redis with a fixed TTL.
type RedisStore struct {
	rdb commands
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore connects to addr and verifies the server answers.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

// NewStore wraps an existing client.
func NewStore(rdb commands, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Stage(ctx context.Context, file model.FileData) (model.StagedFile, error) {
	staged := model.StagedFile{
		ID:       uuid.NewString(),
		Name:     file.Name,
		Type:     file.Type,
		Data:     file.Data,
		StagedAt: s.now().UTC(),
	}
	raw, err := json.Marshal(staged)
	if err != nil {
		return model.StagedFile{}, fmt.Errorf("failed to encode staged file: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+staged.ID, raw, s.ttl).Err(); err != nil {
		return model.StagedFile{}, fmt.Errorf("failed to stage file: %w", err)
	}
	return staged, nil
}

func (s *RedisStore) Fetch(ctx context.Context, id string) (model.StagedFile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.StagedFile{}, ErrExpired
	}
	raw, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.StagedFile{}, ErrExpired
	}
	if err != nil {
		return model.StagedFile{}, fmt.Errorf("failed to fetch staged file %s: %w", id, err)
	}
	var staged model.StagedFile
	if err := json.Unmarshal(raw, &staged); err != nil {
		return model.StagedFile{}, fmt.Errorf("failed to decode staged file %s: %w", id, err)
	}
	return staged, nil
}

func (s *RedisStore) Drop(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to drop staged file %s: %w", id, err)
	}
	return nil
}
