package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellko/affiliate-admin/internal/config"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), config.RedisConfig{
		Addr:          mr.Addr(),
		ConnectionTTL: time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

type payload struct {
	APIKey string `json:"api_key"`
	URL    string `json:"url"`
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "connections:cake", payload{APIKey: "k1", URL: "http://cake"})

	var got payload
	require.True(t, c.Get(ctx, "connections:cake", &got))
	assert.Equal(t, "k1", got.APIKey)
	assert.Equal(t, "http://cake", got.URL)
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got payload
	assert.False(t, c.Get(context.Background(), "nope", &got))
}

func TestTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "connections:ringba", payload{APIKey: "k2"})
	mr.FastForward(2 * time.Minute)

	var got payload
	assert.False(t, c.Get(ctx, "connections:ringba", &got))
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "a", payload{APIKey: "x"})
	c.Set(ctx, "b", payload{APIKey: "y"})
	c.Invalidate(ctx, "a", "b")

	var got payload
	assert.False(t, c.Get(ctx, "a", &got))
	assert.False(t, c.Get(ctx, "b", &got))
}

func TestCorruptValueDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("bad", "{not json"))

	var got payload
	assert.False(t, c.Get(ctx, "bad", &got))
	// The corrupt entry is evicted on read.
	assert.False(t, mr.Exists("bad"))
}
