package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Ticker string  `json:"ticker"`
	Close  float64 `json:"close"`
}

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", sample{Ticker: "AAPL", Close: 101.5}, time.Minute))
	got, err := GetTyped[sample](ctx, mc, "k")
	require.NoError(t, err)
	assert.Equal(t, sample{Ticker: "AAPL", Close: 101.5}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	require.NoError(t, mc.Delete(ctx, "k"))
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	require.NoError(t, mc.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
}

func TestMemoryCacheIncrement(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mc.Increment(ctx, "ctr")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := mc.Increment(ctx, "ctr")
	require.NoError(t, err)
	assert.Equal(t, int64(21), n)

	var v int64
	require.NoError(t, mc.Get(ctx, "ctr", &v))
	assert.Equal(t, int64(21), v)

	ok, err := mc.Expire(ctx, "ctr", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	time.Sleep(40 * time.Millisecond)
	n, err = mc.Increment(ctx, "ctr")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err = mc.Expire(ctx, "missing", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "series:AAPL", GenerateKey("series", "AAPL"))
	assert.Equal(t, "series:AAPL:3mo:1d", GenerateKeyWithParams("series", "AAPL", "3mo", "1d"))
}
