// Package services holds the application services behind the HTTP layer:
// the record store used by uploads and the cached read side.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/cache"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
)

// ImageService serves per-user image lists and statistics, reading through
// the cache. Cache failures fall back to the database.
type ImageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.Cache
	logger      logging.Logger
}

func NewImageService(db *sql.DB, repomanager repomanager.RepositoryManager, c cache.Cache, logger logging.Logger) *ImageService {
	return &ImageService{
		db:          db,
		repomanager: repomanager,
		cache:       c,
		logger:      logger.With("module", "images"),
	}
}

// List returns the user's images. An empty category lists all of them.
func (s *ImageService) List(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, error) {
	if cached, ok, err := s.cache.GetImages(ctx, userID, category); err != nil {
		s.logger.Warn(ctx, "cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return cached, nil
	}

	items, err := s.repomanager.Images(s.db).ListByUser(ctx, userID, category)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	if err := s.cache.SetImages(ctx, userID, category, items); err != nil {
		s.logger.Warn(ctx, "cache write failed", "user_id", userID, "error", err)
	}
	return items, nil
}

// Stats returns the user's aggregate counters.
func (s *ImageService) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	if cached, ok, err := s.cache.GetStats(ctx, userID); err != nil {
		s.logger.Warn(ctx, "cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return cached, nil
	}

	stats, err := s.repomanager.Images(s.db).StatsByUser(ctx, userID)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("image stats: %w", err)
	}

	if err := s.cache.SetStats(ctx, userID, stats); err != nil {
		s.logger.Warn(ctx, "cache write failed", "user_id", userID, "error", err)
	}
	return stats, nil
}
