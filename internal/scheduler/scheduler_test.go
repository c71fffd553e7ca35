package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDailySpec(t *testing.T) {
	spec, err := DailySpec("08:00")
	require.NoError(t, err)
	require.Equal(t, "0 8 * * *", spec)

	spec, err = DailySpec(" 23:45 ")
	require.NoError(t, err)
	require.Equal(t, "45 23 * * *", spec)

	for _, bad := range []string{"8", "24:00", "07:60", "aa:bb", ""} {
		_, err := DailySpec(bad)
		require.Error(t, err, bad)
	}
}

func TestDailyNextFiring(t *testing.T) {
	s, err := Daily(context.Background(), "06:30", "UTC", "test", func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	next := s.Next()
	require.False(t, next.IsZero())
	next = next.UTC()
	require.Equal(t, 6, next.Hour())
	require.Equal(t, 30, next.Minute())
	require.True(t, next.After(time.Now()))
	require.True(t, next.Before(time.Now().Add(24*time.Hour+time.Minute)))
}

func TestDailyRejectsBadTimezone(t *testing.T) {
	_, err := Daily(context.Background(), "08:00", "Mars/Olympus", "test", nil, nil)
	require.Error(t, err)
}
