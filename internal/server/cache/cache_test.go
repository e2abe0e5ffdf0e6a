package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

func sampleImages() []models.RecordDescriptor {
	return []models.RecordDescriptor{
		{ID: "r1", UserID: "u1", Category: models.CategoryGallery, StorageDescriptor: models.StorageDescriptor{RemoteID: "k1", Width: 10}},
		{ID: "r2", UserID: "u1", Category: models.CategoryGallery, StorageDescriptor: models.StorageDescriptor{RemoteID: "k2", Width: 20}},
	}
}

func TestUserKeys(t *testing.T) {
	assert.Equal(t, []string{
		"images:u1:all",
		"images:u1:avatar",
		"images:u1:gallery",
		"images:u1:verification",
		"stats:u1",
	}, userKeys("u1"))
}

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.GetImages(ctx, "u1", models.CategoryGallery)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetImages(ctx, "u1", models.CategoryGallery, sampleImages()))
	require.NoError(t, c.SetImages(ctx, "u2", models.CategoryGallery, sampleImages()[:1]))
	require.NoError(t, c.SetStats(ctx, "u1", models.UserStats{UserID: "u1", ImageCount: 2, TotalBytes: 30}))

	got, ok, err := c.GetImages(ctx, "u1", models.CategoryGallery)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleImages(), got)

	stats, ok, err := c.GetStats(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.ImageCount)

	c.InvalidateUser(ctx, "u1")

	_, ok, _ = c.GetImages(ctx, "u1", models.CategoryGallery)
	assert.False(t, ok)
	_, ok, _ = c.GetStats(ctx, "u1")
	assert.False(t, ok)

	_, ok, _ = c.GetImages(ctx, "u2", models.CategoryGallery)
	assert.True(t, ok, "other users are untouched")
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache(16, time.Minute))
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(16, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.SetStats(ctx, "u1", models.UserStats{UserID: "u1"}))

	require.Eventually(t, func() bool {
		_, ok, _ := c.GetStats(ctx, "u1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	delErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisCache(t *testing.T) {
	fr := newFakeRedis()
	exerciseCache(t, newRedisCache(fr, 15*time.Minute, logging.NewNop()))
	assert.Equal(t, 15*time.Minute, fr.ttls["images:u2:gallery"])
}

func TestRedisCache_GetError(t *testing.T) {
	fr := newFakeRedis()
	fr.getErr = errors.New("conn refused")
	c := newRedisCache(fr, time.Minute, logging.NewNop())

	_, ok, err := c.GetImages(context.Background(), "u1", "")
	require.EqualError(t, err, "conn refused")
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	fr := newFakeRedis()
	fr.data["stats:u1"] = "{not json"
	c := newRedisCache(fr, time.Minute, logging.NewNop())

	_, ok, err := c.GetStats(context.Background(), "u1")
	require.ErrorContains(t, err, "decode stats:u1")
	assert.False(t, ok)
}

func TestRedisCache_InvalidateLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	fr := newFakeRedis()
	fr.delErr = errors.New("readonly replica")
	c := newRedisCache(fr, time.Minute, logger)

	assert.NotPanics(t, func() { c.InvalidateUser(context.Background(), "u1") })
	assert.Contains(t, buf.String(), "cache invalidation failed")
	assert.Contains(t, buf.String(), "readonly replica")
}
