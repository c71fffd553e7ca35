// Package lock guards the store commit across processes.
package lock

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"phdhunt-engine/internal/config"
)

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker blocks until the lock is held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

const retryEvery = 200 * time.Millisecond

// New builds the locker selected by cfg. redisPassword is only used by the
// redis backend.
func New(cfg config.LockConfig, dataDir, redisPassword string) (Locker, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileLock(filepath.Join(dataDir, "phdhunt.commit.lock")), nil
	case "redis":
		ttl := time.Duration(cfg.TTLSeconds) * time.Second
		return NewRedisLock(cfg.RedisAddr, redisPassword, cfg.Key, ttl), nil
	case "none":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
}

// Nop never blocks. For single-process setups and tests.
type Nop struct{}

func (Nop) Acquire(context.Context) (Release, error) {
	return func(context.Context) error { return nil }, nil
}
