// Package cache holds denormalized per-user image lists and statistics.
// Entries expire after a TTL and can be dropped per user in one call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Cache is the read-side cache used by the image service and invalidated by
// the upload coordinator.
type Cache interface {
	GetImages(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, bool, error)
	SetImages(ctx context.Context, userID string, category models.Category, images []models.RecordDescriptor) error
	GetStats(ctx context.Context, userID string) (models.UserStats, bool, error)
	SetStats(ctx context.Context, userID string, stats models.UserStats) error
	// InvalidateUser drops every entry of the user. It never fails; errors
	// are logged by the implementation.
	InvalidateUser(ctx context.Context, userID string)
}

const allCategories = "all"

func imagesKey(userID string, category models.Category) string {
	c := string(category)
	if c == "" {
		c = allCategories
	}
	return fmt.Sprintf("images:%s:%s", userID, c)
}

func statsKey(userID string) string {
	return "stats:" + userID
}

// userKeys enumerates every key that can exist for a user.
func userKeys(userID string) []string {
	keys := make([]string, 0, len(models.Categories)+2)
	keys = append(keys, imagesKey(userID, ""))
	for _, c := range models.Categories {
		keys = append(keys, imagesKey(userID, c))
	}
	return append(keys, statsKey(userID))
}

// byteStore is the key/value primitive the two backends differ in.
type byteStore interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, value []byte) error
}

func getJSON[T any](ctx context.Context, s byteStore, key string) (T, bool, error) {
	var v T
	raw, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func setJSON(ctx context.Context, s byteStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.set(ctx, key, raw)
}
