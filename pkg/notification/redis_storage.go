package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds settings for the Redis-backed scheduler.
type RedisConfig struct {
	KeyPrefix string `env:"NOTIFICATION_KEY_PREFIX" envDefault:"billingkit:notifications"`
}

// RedisScheduler implements Scheduler on a Redis sorted set per queue, with
// the entity id as member and the effective unix time (milliseconds) as
// score. ZADD LT gives the replace-keeping-earliest semantics natively: a
// later time never overwrites an earlier pending entry.
type RedisScheduler struct {
	client *redis.Client
	prefix string
}

// NewRedisScheduler creates a Scheduler backed by Redis.
func NewRedisScheduler(client *redis.Client, cfg RedisConfig) (*RedisScheduler, error) {
	if client == nil {
		return nil, ErrRedisClientNil
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "billingkit:notifications"
	}
	return &RedisScheduler{client: client, prefix: prefix}, nil
}

func (rs *RedisScheduler) key(queue Queue) string {
	return rs.prefix + ":" + string(queue)
}

func (rs *RedisScheduler) ScheduleAt(ctx context.Context, queue Queue, entityID uuid.UUID, effective time.Time) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if entityID == uuid.Nil {
		return ErrNilEntityID
	}
	if effective.IsZero() {
		return ErrZeroEffective
	}

	// GT/LT variants only update existing members in the given direction;
	// absent members are always added.
	err := rs.client.ZAddLT(ctx, rs.key(queue), redis.Z{
		Score:  float64(effective.UTC().UnixMilli()),
		Member: entityID.String(),
	}).Err()
	if err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}

func (rs *RedisScheduler) CancelAllFor(ctx context.Context, queue Queue, entityID uuid.UUID) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if err := rs.client.ZRem(ctx, rs.key(queue), entityID.String()).Err(); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}

func (rs *RedisScheduler) FindPendingFor(ctx context.Context, queue Queue, entityID uuid.UUID) (*Pending, error) {
	if queue == "" {
		return nil, ErrEmptyQueue
	}

	score, err := rs.client.ZScore(ctx, rs.key(queue), entityID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Join(ErrStorageFailed, err)
	}

	return &Pending{
		Queue:     queue,
		EntityID:  entityID,
		Effective: time.UnixMilli(int64(score)).UTC(),
	}, nil
}
