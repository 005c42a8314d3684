package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	models "commerce-api/model"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient keeps values in a map, runs the two cache scripts in process
// and can be told to fail.
type fakeClient struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	switch script {
	case setIfVersionScript:
		current, ok := f.data[keys[1]]
		if !ok {
			current = "0"
		}
		if current != args[0].(string) {
			return redis.NewCmdResult(int64(0), nil)
		}
		f.data[keys[0]] = string(args[1].([]byte))
		f.ttls[keys[0]] = time.Duration(args[2].(int64)) * time.Millisecond
		return redis.NewCmdResult(int64(1), nil)
	case invalidateScript:
		for i := 0; i < len(keys); i += 2 {
			delete(f.data, keys[i])
			n, _ := strconv.ParseInt(f.data[keys[i+1]], 10, 64)
			f.data[keys[i+1]] = strconv.FormatInt(n+1, 10)
		}
		return redis.NewCmdResult(int64(len(keys)/2), nil)
	}
	return redis.NewCmdResult(nil, errors.New("unknown script"))
}

func (f *fakeClient) Close() error { return nil }

func TestRedisProductCache_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	c := &RedisProductCache{client: fc, ttl: time.Minute}

	_, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	p := &models.Product{ID: "p1", Name: "Lamp", Price: decimal.RequireFromString("12.50"), Count: 2, Availability: models.Available}
	v, err := c.Version(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, v)
	require.NoError(t, c.Set(ctx, p, v))
	assert.Equal(t, time.Minute, fc.ttls["commerce:product:p1"])

	got, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Lamp", got.Name)
	assert.True(t, got.Price.Equal(p.Price))

	require.NoError(t, c.Invalidate(ctx, "p1", "p2"))
	_, ok, err = c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err = c.Version(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRedisProductCache_SetSkipsAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	c := &RedisProductCache{client: fc, ttl: time.Minute}

	// reader takes the version, then loads the old product
	v, err := c.Version(ctx, "p1")
	require.NoError(t, err)
	stale := &models.Product{ID: "p1", Name: "Lamp", Count: 3, Availability: models.Available}

	// a writer commits and invalidates before the reader fills the cache
	require.NoError(t, c.Invalidate(ctx, "p1"))

	require.NoError(t, c.Set(ctx, stale, v))
	_, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok, "stale copy must not be cached")

	// the next reader sees the new version and may fill
	v, err = c.Version(ctx, "p1")
	require.NoError(t, err)
	fresh := &models.Product{ID: "p1", Name: "Lamp", Count: 0, Availability: models.NotAvailable}
	require.NoError(t, c.Set(ctx, fresh, v))
	got, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, got.Count)
	assert.Equal(t, models.NotAvailable, got.Availability)
}

func TestRedisProductCache_Errors(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	c := &RedisProductCache{client: fc, ttl: time.Minute}

	fc.data["commerce:product:bad"] = "{not json"
	_, ok, err := c.Get(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, ok)

	down := errors.New("connection refused")
	fc.getErr = down
	_, ok, err = c.Get(ctx, "p1")
	assert.ErrorIs(t, err, down)
	assert.False(t, ok)
}

func TestRedisProductCache_StoresJSON(t *testing.T) {
	fc := newFakeClient()
	c := &RedisProductCache{client: fc, ttl: time.Minute}
	require.NoError(t, c.Set(context.Background(), &models.Product{ID: "p9", Name: "Desk"}, 0))

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(fc.data["commerce:product:p9"]), &raw))
	assert.Equal(t, "Desk", raw["name"])
}

func TestNopProductCache(t *testing.T) {
	var c ProductCache = NopProductCache{}
	_, ok, err := c.Get(context.Background(), "x")
	assert.NoError(t, err)
	assert.False(t, ok)
	v, err := c.Version(context.Background(), "x")
	assert.NoError(t, err)
	assert.Zero(t, v)
	assert.NoError(t, c.Set(context.Background(), &models.Product{}, 0))
	assert.NoError(t, c.Invalidate(context.Background(), "x"))
}

func TestNewRedisProductCache_BadURL(t *testing.T) {
	_, err := NewRedisProductCache(context.Background(), "not-a-url", time.Minute)
	assert.Error(t, err)
}
