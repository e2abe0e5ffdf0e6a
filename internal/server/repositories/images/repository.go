package images

import (
	"context"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Repository is the row-level access to image metadata and per-user stats.
// Implementations are bound to a dbx.DBTX, so the caller decides whether
// calls share a transaction.
type Repository interface {
	Insert(ctx context.Context, rec *models.RecordDescriptor) error
	DeleteByID(ctx context.Context, id string) (*models.RecordDescriptor, error)
	AdjustStats(ctx context.Context, userID string, countDelta, bytesDelta int64) error
	ListByUser(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, error)
	StatsByUser(ctx context.Context, userID string) (models.UserStats, error)
}
