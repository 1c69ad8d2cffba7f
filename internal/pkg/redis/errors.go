package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// 预定义错误
var (
	ErrNil            = redis.Nil
	ErrNotInitialized = errors.New("redis: client not initialized")
	// ErrLockNotAcquired the key is held by another owner
	ErrLockNotAcquired = errors.New("redis: lock not acquired")
	// ErrLockNotHeld the token no longer owns the key
	ErrLockNotHeld = errors.New("redis: lock not held")
)

// IsNil 判断是否是 Key 不存在错误
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsClosed 判断是否是客户端已关闭错误
func IsClosed(err error) bool {
	return errors.Is(err, redis.ErrClosed)
}
