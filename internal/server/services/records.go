package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// RecordService is the record store used by the upload coordinator. Every
// write keeps the images table and the user's aggregate row in one
// transaction.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewRecordService(db *sql.DB, repomanager repomanager.RepositoryManager) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: repomanager,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Save persists metadata for an object already present in the object store.
func (s *RecordService) Save(ctx context.Context, userID string, category models.Category, d models.StorageDescriptor) (models.RecordDescriptor, error) {
	if userID == "" || !category.Valid() || d.RemoteID == "" {
		return models.RecordDescriptor{}, common.ErrInvalidArgument
	}

	rec := models.RecordDescriptor{
		ID:                uuid.NewString(),
		UserID:            userID,
		Category:          category,
		StorageDescriptor: d,
		CreatedAt:         s.now(),
	}

	saved, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (models.RecordDescriptor, error) {
		repo := s.repomanager.Images(tx)
		if err := repo.Insert(ctx, &rec); err != nil {
			return models.RecordDescriptor{}, err
		}
		if err := repo.AdjustStats(ctx, userID, 1, d.Bytes); err != nil {
			return models.RecordDescriptor{}, err
		}
		return rec, nil
	})
	if err != nil {
		return models.RecordDescriptor{}, fmt.Errorf("save record: %w", err)
	}
	return saved, nil
}

// Delete removes a record and rolls its size out of the user's aggregate.
// A record that does not exist reports false with no error.
func (s *RecordService) Delete(ctx context.Context, recordID string) (bool, error) {
	deleted, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		repo := s.repomanager.Images(tx)
		rec, err := repo.DeleteByID(ctx, recordID)
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if err := repo.AdjustStats(ctx, rec.UserID, -1, -rec.Bytes); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("delete record %s: %w", recordID, err)
	}
	return deleted, nil
}
