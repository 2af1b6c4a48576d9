package notification

import "errors"

var (
	ErrEmptyQueue     = errors.New("queue name cannot be empty")
	ErrNilEntityID    = errors.New("entity id cannot be nil")
	ErrZeroEffective  = errors.New("effective time cannot be zero")
	ErrRedisClientNil = errors.New("redis client cannot be nil")
	ErrStorageFailed  = errors.New("notification storage operation failed")
)
