package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock is an advisory lock on a file next to the database.
type FileLock struct {
	path string
}

func NewFileLock(path string) *FileLock { return &FileLock{path: path} }

func (l *FileLock) Acquire(ctx context.Context) (Release, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(l.path)
	ok, err := fl.TryLockContext(ctx, retryEvery)
	if err != nil || !ok {
		_ = fl.Close()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}
	return func(context.Context) error { return fl.Unlock() }, nil
}
