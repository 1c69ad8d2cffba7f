package lifecycle

import (
	"context"
	"time"

	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Locker serializes registry mutations. Lock blocks until the caller owns
// the registry or ctx ends; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// SharedLocker is implemented by lockers other processes take as well.
// A Manager holding one re-reads the registry and index after locking.
type SharedLocker interface {
	Locker
	Shared() bool
}

// LocalLocker single-writer lock for one process
type LocalLocker struct {
	sem chan struct{}
}

// NewLocalLocker creates an in-process lock
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrLockTimeout)
	}
}

// DistributedLock is satisfied by the redis client wrapper
type DistributedLock interface {
	TryLock(ctx context.Context, key string, expiration time.Duration, maxRetries int, retryDelay time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// RedisLockerConfig distributed lock settings
type RedisLockerConfig struct {
	Key        string
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// RedisLocker takes the local lock, then a Redis lock shared by every
// process working on the same managed storage
type RedisLocker struct {
	local  *LocalLocker
	dist   DistributedLock
	cfg    RedisLockerConfig
	logger *logger.Logger
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(dist DistributedLock, cfg RedisLockerConfig, log *logger.Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &RedisLocker{
		local:  NewLocalLocker(),
		dist:   dist,
		cfg:    cfg,
		logger: logger.OrGlobal(log).Named("redis_locker"),
	}
}

// Shared reports true: the Redis key is common to every process
func (l *RedisLocker) Shared() bool {
	return true
}

func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx)
	if err != nil {
		return nil, err
	}

	token, err := l.dist.TryLock(ctx, l.cfg.Key, l.cfg.TTL, l.cfg.MaxRetries, l.cfg.RetryDelay)
	if err != nil {
		unlockLocal()
		return nil, apperrors.Wrap(err, apperrors.ErrLockTimeout, l.cfg.Key)
	}

	return func() {
		// the request context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.dist.Unlock(ctx, l.cfg.Key, token); err != nil {
			l.logger.Warn("failed to release registry lock", zap.String("key", l.cfg.Key), zap.Error(err))
		}
		unlockLocal()
	}, nil
}
