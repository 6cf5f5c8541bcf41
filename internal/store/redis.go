package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

const (
	redisKeyPrefix = "lead_batch:"
	redisIndexKey  = "lead_batches"

	// DefaultRedisTTL bounds how long an unconsumed batch record survives.
	DefaultRedisTTL = 24 * time.Hour
)

// RedisStore implements BatchStore as one JSON value per batch, keyed
// lead_batch:<id> with a TTL. A sorted set indexes ids by creation time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewRedis wraps a go-redis client. A non-positive ttl uses DefaultRedisTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func redisKey(id string) string { return redisKeyPrefix + id }

// Migrate is a no-op; redis needs no schema.
func (s *RedisStore) Migrate(context.Context) error { return nil }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) CreateBatch(ctx context.Context) (*model.Batch, error) {
	now := s.now()
	b := &model.Batch{
		ID:        s.newID(),
		Status:    model.BatchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "redis: marshal batch")
	}
	if err := s.client.Set(ctx, redisKey(b.ID), string(data), s.ttl).Err(); err != nil {
		return nil, eris.Wrap(err, "redis: set batch")
	}
	if err := s.client.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(now.Unix()), Member: b.ID}).Err(); err != nil {
		return nil, eris.Wrap(err, "redis: index batch")
	}
	return b, nil
}

// redisUpdateAttempts bounds retries of an update whose key changed under
// WATCH.
const redisUpdateAttempts = 3

// UpdateBatch patches the record inside WATCH/MULTI, keeping its TTL. The
// write is aborted if the key changes or expires after it was read, so an
// expired batch is never recreated without a TTL.
func (s *RedisStore) UpdateBatch(ctx context.Context, id string, update model.BatchUpdate) error {
	key := redisKey(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return eris.Wrapf(ErrNotFound, "redis: update batch %s", id)
		}
		if err != nil {
			return eris.Wrapf(err, "redis: get batch %s", id)
		}

		var b model.Batch
		if err := json.Unmarshal(data, &b); err != nil {
			return eris.Wrapf(err, "redis: unmarshal batch %s", id)
		}
		update.Apply(&b, s.now())

		out, err := json.Marshal(b)
		if err != nil {
			return eris.Wrap(err, "redis: marshal batch")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(out), redis.KeepTTL)
			return nil
		})
		return err
	}

	for range redisUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return eris.Wrapf(err, "redis: update batch %s", id)
		}
		return err
	}
	return eris.Wrapf(redis.TxFailedErr, "redis: update batch %s: too many concurrent writes", id)
}

func (s *RedisStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get batch %s", id)
	}

	var b model.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrapf(err, "redis: unmarshal batch %s", id)
	}
	return &b, nil
}

func (s *RedisStore) DeleteBatch(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return eris.Wrapf(err, "redis: delete batch %s", id)
	}
	if err := s.client.ZRem(ctx, redisIndexKey, id).Err(); err != nil {
		return eris.Wrapf(err, "redis: unindex batch %s", id)
	}
	return nil
}

// ListBatches returns batches newest first. Index entries whose record has
// expired are pruned on the way.
func (s *RedisStore) ListBatches(ctx context.Context, filter model.BatchFilter) ([]model.Batch, error) {
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list batch ids")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list batches")
	}

	var (
		batches []model.Batch
		stale   []any
		skipped int
		limit   = listLimit(filter)
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var b model.Batch
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, eris.Wrapf(err, "redis: unmarshal batch %s", ids[i])
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if len(batches) < limit {
			batches = append(batches, b)
		}
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, redisIndexKey, stale...).Err(); err != nil {
			return nil, eris.Wrap(err, "redis: prune index")
		}
	}
	return batches, nil
}
