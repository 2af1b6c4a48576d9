package eventbus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds settings for the Redis publisher.
type RedisConfig struct {
	ChannelPrefix string `env:"EVENTBUS_CHANNEL_PREFIX" envDefault:"billingkit"`
}

// RedisBus publishes events to Redis pub/sub channels named
// "<prefix>.<event name>". Payloads are JSON-encoded events.
type RedisBus struct {
	client *redis.Client
	prefix string
}

// NewRedisBus creates a Publisher backed by Redis pub/sub.
func NewRedisBus(client *redis.Client, cfg RedisConfig) (*RedisBus, error) {
	if client == nil {
		return nil, ErrRedisClientNil
	}
	if cfg.ChannelPrefix == "" {
		return nil, ErrChannelPrefixBad
	}
	return &RedisBus{client: client, prefix: cfg.ChannelPrefix}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Join(ErrMarshalEvent, err)
	}

	channel := b.prefix + "." + event.EventName()
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}
