package clockx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := clockx.NewManual(start)
	require.Equal(t, start, c.Now())

	got := c.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), got)
	require.Equal(t, got, c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	c := clockx.NewManual(start)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	require.Equal(t, start.Add(50*time.Second), c.Now())
}

func TestSystem_IsUTC(t *testing.T) {
	now := clockx.System().Now()
	require.Equal(t, time.UTC, now.Location())
	require.WithinDuration(t, time.Now(), now, time.Second)
}

func TestFunc(t *testing.T) {
	fixed := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	var c clockx.Clock = clockx.Func(func() time.Time { return fixed })
	require.Equal(t, fixed, c.Now())
}
