package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/speedrun-hq/speedrun-go/pkg/models"
)

// RedisStore persists intent state in redis so a restarted node resumes with
// its records intact. One store instance serves one chain; keys are
// namespaced by chain id.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// RedisConfig holds the connection parameters for a redis-backed store
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisStore connects to redis and returns a store for the chain
func NewRedisStore(ctx context.Context, cfg RedisConfig, chainID uint64) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}
	return &RedisStore{
		client: client,
		prefix: fmt.Sprintf("speedrun:%d", chainID),
	}, nil
}

// Close releases the redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(kind string, id common.Hash) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, id.Hex())
}

func (r *RedisStore) countKey(kind string) string {
	return fmt.Sprintf("%s:count:%s", r.prefix, kind)
}

// createOnce writes the record only if the key is absent
func (r *RedisStore) createOnce(ctx context.Context, kind string, id common.Hash, record interface{}, conflict error) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %v", kind, err)
	}
	ok, err := r.client.SetNX(ctx, r.key(kind, id), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis write failed: %v", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", conflict, id.Hex())
	}
	r.client.Incr(ctx, r.countKey(kind))
	return nil
}

func (r *RedisStore) get(ctx context.Context, kind string, id common.Hash, out interface{}) error {
	raw, err := r.client.Get(ctx, r.key(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id.Hex())
	}
	if err != nil {
		return fmt.Errorf("redis read failed: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s record: %v", kind, err)
	}
	return nil
}

// CreateIntent implements Store
func (r *RedisStore) CreateIntent(ctx context.Context, intent *models.Intent) error {
	return r.createOnce(ctx, "intent", intent.ID, intent, ErrIntentExists)
}

// GetIntent implements Store
func (r *RedisStore) GetIntent(ctx context.Context, id common.Hash) (*models.Intent, error) {
	var intent models.Intent
	if err := r.get(ctx, "intent", id, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// DeleteIntent implements Store
func (r *RedisStore) DeleteIntent(ctx context.Context, id common.Hash) error {
	removed, err := r.client.Del(ctx, r.key("intent", id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %v", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: intent %s", ErrNotFound, id.Hex())
	}
	r.client.Decr(ctx, r.countKey("intent"))
	return nil
}

// SetStatus implements Store
func (r *RedisStore) SetStatus(ctx context.Context, id common.Hash, status models.IntentStatus) error {
	intent, err := r.GetIntent(ctx, id)
	if err != nil {
		return err
	}
	if !intent.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, intent.Status, status)
	}
	intent.Status = status
	raw, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent record: %v", err)
	}
	if err := r.client.Set(ctx, r.key("intent", id), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis write failed: %v", err)
	}
	return nil
}

// PutFulfillment implements Store
func (r *RedisStore) PutFulfillment(ctx context.Context, f *models.Fulfillment) error {
	return r.createOnce(ctx, "fulfillment", f.IntentID, f, ErrAlreadyFulfilled)
}

// GetFulfillment implements Store
func (r *RedisStore) GetFulfillment(ctx context.Context, id common.Hash) (*models.Fulfillment, error) {
	var f models.Fulfillment
	if err := r.get(ctx, "fulfillment", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkSettled implements Store
func (r *RedisStore) MarkSettled(ctx context.Context, s *models.Settlement) error {
	return r.createOnce(ctx, "settlement", s.IntentID, s, ErrAlreadySettled)
}

// GetSettlement implements Store
func (r *RedisStore) GetSettlement(ctx context.Context, id common.Hash) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.get(ctx, "settlement", id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// StatusOf implements Store
func (r *RedisStore) StatusOf(ctx context.Context, id common.Hash) (models.IntentStatus, error) {
	if _, err := r.GetSettlement(ctx, id); err == nil {
		return models.StatusSettled, nil
	} else if !errors.Is(err, ErrNotFound) {
		return models.StatusPending, err
	}
	if _, err := r.GetFulfillment(ctx, id); err == nil {
		return models.StatusFulfilled, nil
	} else if !errors.Is(err, ErrNotFound) {
		return models.StatusPending, err
	}
	intent, err := r.GetIntent(ctx, id)
	if err == nil {
		return intent.Status, nil
	}
	if errors.Is(err, ErrNotFound) {
		return models.StatusPending, nil
	}
	return models.StatusPending, err
}

// Counts implements Store
func (r *RedisStore) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for kind, label := range map[string]string{
		"intent":      "intents",
		"fulfillment": "fulfillments",
		"settlement":  "settlements",
	} {
		n, err := r.client.Get(ctx, r.countKey(kind)).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis read failed: %v", err)
		}
		counts[label] = n
	}
	return counts, nil
}
