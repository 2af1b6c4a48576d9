package eventbus

import "errors"

var (
	ErrNilEvent         = errors.New("event cannot be nil")
	ErrMarshalEvent     = errors.New("failed to marshal event payload")
	ErrPublishFailed    = errors.New("failed to publish event")
	ErrRedisClientNil   = errors.New("redis client cannot be nil")
	ErrChannelPrefixBad = errors.New("channel prefix cannot be empty")
)
