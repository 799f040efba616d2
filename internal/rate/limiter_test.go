package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowUpToBurst(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 10, Burst: 5})
	frozen := time.Now()
	lim.now = func() time.Time { return frozen }
	lim.last = frozen

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestLimiter_Refill(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 10, Burst: 1})
	now := time.Now()
	lim.now = func() time.Time { return now }
	lim.last = now

	require.True(t, lim.Allow())
	require.False(t, lim.Allow())

	now = now.Add(200 * time.Millisecond)
	assert.True(t, lim.Allow(), "one token is due after 1/rate seconds")
}

func TestLimiter_BurstCap(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1000, Burst: 3})
	now := time.Now()
	lim.now = func() time.Time { return now }
	lim.last = now
	now = now.Add(time.Hour)

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	lim := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, lim.Allow())
	}
}

func TestLimiter_WaitSuccess(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 100, Burst: 1})
	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, lim.Wait(ctx))
}

func TestLimiter_WaitCanceled(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 0.1, Burst: 1})
	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lim.Wait(ctx), context.DeadlineExceeded)
}

func TestManager_PerHostLimiters(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 5, Burst: 2})
	m.Configure("www.google.com", Config{RequestsPerSecond: 1, Burst: 1})

	a := m.GetLimiter("www.uniqlo.com")
	assert.Same(t, a, m.GetLimiter("www.uniqlo.com"))
	assert.NotSame(t, a, m.GetLimiter("www.google.com"))
	assert.Equal(t, float64(1), m.GetLimiter("www.google.com").burst)
	assert.Equal(t, float64(2), a.burst)
}

func TestManager_ConcurrentGetLimiter(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 100, Burst: 10})

	var wg sync.WaitGroup
	got := make([]*Limiter, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.GetLimiter("www.uniqlo.com")
		}(i)
	}
	wg.Wait()
	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}
