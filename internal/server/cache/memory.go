package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// MemoryCache is an in-process cache bounded by entry count and TTL. It is
// used when no Redis address is configured.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 4096
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

func (c *MemoryCache) GetImages(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, bool, error) {
	return getJSON[[]models.RecordDescriptor](ctx, c, imagesKey(userID, category))
}

func (c *MemoryCache) SetImages(ctx context.Context, userID string, category models.Category, images []models.RecordDescriptor) error {
	return setJSON(ctx, c, imagesKey(userID, category), images)
}

func (c *MemoryCache) GetStats(ctx context.Context, userID string) (models.UserStats, bool, error) {
	return getJSON[models.UserStats](ctx, c, statsKey(userID))
}

func (c *MemoryCache) SetStats(ctx context.Context, userID string, stats models.UserStats) error {
	return setJSON(ctx, c, statsKey(userID), stats)
}

func (c *MemoryCache) InvalidateUser(_ context.Context, userID string) {
	for _, k := range userKeys(userID) {
		c.lru.Remove(k)
	}
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

var _ Cache = (*MemoryCache)(nil)
