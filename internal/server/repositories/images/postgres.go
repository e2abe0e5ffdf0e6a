// Package images implements image metadata persistence on PostgreSQL.
package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/dbx"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes a new image row. Exactly one row must be affected.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.RecordDescriptor) error {
	query := `
		INSERT INTO images (id, user_id, category, remote_id, url, width, height, format, bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, string(rec.Category), rec.RemoteID, rec.URL,
		rec.Width, rec.Height, rec.Format, rec.Bytes, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// DeleteByID removes the row and returns what was deleted (owner and size),
// or common.ErrNotFound when no such row exists.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (*models.RecordDescriptor, error) {
	query := `DELETE FROM images WHERE id=$1 RETURNING id, user_id, category, bytes`

	var (
		rec      models.RecordDescriptor
		category string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.UserID, &category, &rec.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete image: %w", err)
	}
	rec.Category = models.Category(category)
	return &rec, nil
}

// AdjustStats applies deltas to the user's aggregate row, creating it when
// missing. Counters never go below zero.
func (r *PostgresRepository) AdjustStats(ctx context.Context, userID string, countDelta, bytesDelta int64) error {
	query := `
		INSERT INTO user_image_stats (user_id, image_count, total_bytes, updated_at)
		VALUES ($1, GREATEST($2::BIGINT, 0), GREATEST($3::BIGINT, 0), now())
		ON CONFLICT (user_id)
		DO UPDATE SET
			image_count = GREATEST(user_image_stats.image_count + $2::BIGINT, 0),
			total_bytes = GREATEST(user_image_stats.total_bytes + $3::BIGINT, 0),
			updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, countDelta, bytesDelta); err != nil {
		return fmt.Errorf("failed to adjust stats: %w", err)
	}
	return nil
}

// ListByUser returns the user's images, newest first. An empty category
// selects all categories.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, error) {
	query := `SELECT id, user_id, category, remote_id, url, width, height, format, bytes, created_at FROM images
		WHERE user_id=$1 AND ($2='' OR category=$2)
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	result := make([]models.RecordDescriptor, 0)
	for rows.Next() {
		var (
			item models.RecordDescriptor
			cat  string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &cat, &item.RemoteID, &item.URL,
			&item.Width, &item.Height, &item.Format, &item.Bytes, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Category = models.Category(cat)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// StatsByUser returns the user's aggregate row; a user without uploads gets
// zero counters rather than an error.
func (r *PostgresRepository) StatsByUser(ctx context.Context, userID string) (models.UserStats, error) {
	query := `SELECT user_id, image_count, total_bytes, updated_at FROM user_image_stats WHERE user_id=$1`

	stats := models.UserStats{UserID: userID}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.UserID, &stats.ImageCount, &stats.TotalBytes, &stats.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to select stats: %w", err)
	}
	return stats, nil
}

var _ Repository = (*PostgresRepository)(nil)
