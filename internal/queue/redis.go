package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shieldforce/guard-dispatch/internal/config"
)

// Queue names
const (
	PushQueue    = "dispatch:push"
	PaymentQueue = "dispatch:shift_completed"
)

// ErrEmpty is returned by Dequeue when the wait timed out with no item
var ErrEmpty = errors.New("queue empty")

// RedisQueue is the Redis-backed job queue and urgent-offer registry
type RedisQueue struct {
	Client      *redis.Client
	PollTimeout time.Duration
}

// New connects to Redis and verifies the connection
func New(cfg config.RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{Client: client, PollTimeout: 5 * time.Second}, nil
}

// Close closes the connection
func (q *RedisQueue) Close() error {
	return q.Client.Close()
}

// Ping checks Redis is reachable
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.Client.Ping(ctx).Err()
}

// Enqueue pushes a JSON-encoded job onto the named list
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.Client.LPush(ctx, queueName, data).Err()
}

// Dequeue blocks for up to PollTimeout waiting for the next job.
// A bounded wait lets the worker notice context cancellation.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string) (string, error) {
	result, err := q.Client.BRPop(ctx, q.PollTimeout, queueName).Result()
	if err == redis.Nil {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	// result is [queue, value]
	if len(result) < 2 {
		return "", fmt.Errorf("redis pop unexpected result")
	}
	return result[1], nil
}

// Urgent offer registry

func offerKey(shiftID uuid.UUID) string {
	return "dispatch:offer:" + shiftID.String()
}

// RecordOffer stores the guards an urgent shift was broadcast to
func (q *RedisQueue) RecordOffer(ctx context.Context, shiftID uuid.UUID, personnelIDs []uuid.UUID, ttl time.Duration) error {
	if len(personnelIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(personnelIDs))
	for i, id := range personnelIDs {
		members[i] = id.String()
	}

	key := offerKey(shiftID)
	pipe := q.Client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record urgent offer: %w", err)
	}
	return nil
}

// WasOffered reports whether an offer record exists for the shift and,
// if so, whether personnelID is on it
func (q *RedisQueue) WasOffered(ctx context.Context, shiftID, personnelID uuid.UUID) (known bool, offered bool, err error) {
	key := offerKey(shiftID)
	n, err := q.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, false, err
	}
	if n == 0 {
		return false, false, nil
	}
	offered, err = q.Client.SIsMember(ctx, key, personnelID.String()).Result()
	if err != nil {
		return true, false, err
	}
	return true, offered, nil
}

// ClearOffer drops the offer record once the shift is filled
func (q *RedisQueue) ClearOffer(ctx context.Context, shiftID uuid.UUID) error {
	return q.Client.Del(ctx, offerKey(shiftID)).Err()
}

func welfareKey(shiftID uuid.UUID) string {
	return "dispatch:welfare:" + shiftID.String()
}

// MarkWelfareSent records that the late guard on shiftID was checked on.
// It reports false if an earlier call already did.
func (q *RedisQueue) MarkWelfareSent(ctx context.Context, shiftID uuid.UUID, ttl time.Duration) (bool, error) {
	first, err := q.Client.SetNX(ctx, welfareKey(shiftID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark welfare check: %w", err)
	}
	return first, nil
}
