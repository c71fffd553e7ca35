package lock

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"phdhunt-engine/internal/config"
)

func TestFileLockExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commit.lock")
	a, b := NewFileLock(path), NewFileLock(path)

	release, err := a.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = b.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(context.Background()))

	release, err = b.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

type fakeStore struct {
	mu   sync.Mutex
	vals map[string]string
	err  error
}

func (f *fakeStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.vals[key]; ok {
		return false, nil
	}
	f.vals[key] = value
	return true, nil
}

func (f *fakeStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vals[key] != value {
		return false, nil
	}
	delete(f.vals, key)
	return true, nil
}

func TestRedisLockWaitsForRelease(t *testing.T) {
	store := &fakeStore{vals: map[string]string{}}
	a := newRedisLock(store, "phdhunt:commit", time.Minute)
	b := newRedisLock(store, "phdhunt:commit", time.Minute)
	b.retry = 10 * time.Millisecond

	release, err := a.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		r, err := b.Acquire(context.Background())
		if err == nil {
			err = r(context.Background())
		}
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, release(context.Background()))
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := &fakeStore{vals: map[string]string{}}
	l := newRedisLock(store, "k", time.Minute)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	// lease expired and someone else took it
	store.vals["k"] = "other"
	require.ErrorIs(t, release(context.Background()), ErrNotHeld)
	require.Equal(t, "other", store.vals["k"])
}

func TestRedisLockCancelled(t *testing.T) {
	store := &fakeStore{vals: map[string]string{"k": "held"}}
	l := newRedisLock(store, "k", time.Minute)
	l.retry = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	store.err = errors.New("redis down")
	_, err = l.Acquire(context.Background())
	require.ErrorContains(t, err, "redis down")
}

func TestNew(t *testing.T) {
	l, err := New(config.LockConfig{Backend: "file"}, t.TempDir(), "")
	require.NoError(t, err)
	require.IsType(t, &FileLock{}, l)

	l, err = New(config.LockConfig{Backend: "none"}, "", "")
	require.NoError(t, err)
	require.IsType(t, Nop{}, l)

	_, err = New(config.LockConfig{Backend: "zookeeper"}, "", "")
	require.Error(t, err)
}
