package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertImageQ = `(?s)^\s*INSERT\s+INTO\s+images\s`
	adjustStatsQ = `(?s)^\s*INSERT\s+INTO\s+user_image_stats\s`
	deleteImageQ = `(?s)^DELETE\s+FROM\s+images\s+WHERE\s+id=\$1\s+RETURNING`
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newRecordService(t *testing.T) (*RecordService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	s := NewRecordService(db, repomanager.NewPostgresRepositoryManager())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func descriptor() models.StorageDescriptor {
	return models.StorageDescriptor{
		RemoteID: "avatar/u1/h/k.jpg",
		URL:      "http://cdn/media/avatar/u1/h/k.jpg",
		Width:    400,
		Height:   400,
		Format:   "jpeg",
		Bytes:    2048,
	}
}

func TestRecordService_Save_Success(t *testing.T) {
	s, mock := newRecordService(t)
	d := descriptor()

	mock.ExpectBegin()
	mock.ExpectExec(insertImageQ).
		WithArgs(sqlmock.AnyArg(), "u1", "avatar", d.RemoteID, d.URL, 400, 400, "jpeg", int64(2048), s.now()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(adjustStatsQ).
		WithArgs("u1", int64(1), int64(2048)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.Save(context.Background(), "u1", models.CategoryAvatar, d)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, models.CategoryAvatar, rec.Category)
	assert.Equal(t, d, rec.StorageDescriptor)
	assert.Equal(t, s.now(), rec.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Save_RollsBackOnStatsError(t *testing.T) {
	s, mock := newRecordService(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertImageQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(adjustStatsQ).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	rec, err := s.Save(context.Background(), "u1", models.CategoryAvatar, descriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save record")
	assert.Contains(t, err.Error(), "deadlock")
	assert.Empty(t, rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Save_BeginError(t *testing.T) {
	s, mock := newRecordService(t)
	mock.ExpectBegin().WillReturnError(errors.New("conn refused"))

	_, err := s.Save(context.Background(), "u1", models.CategoryGallery, descriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Save_InvalidArgument(t *testing.T) {
	s, mock := newRecordService(t)

	tests := []struct {
		name     string
		userID   string
		category models.Category
		d        models.StorageDescriptor
	}{
		{"no user", "", models.CategoryAvatar, descriptor()},
		{"bad category", "u1", models.Category("banner"), descriptor()},
		{"no remote id", "u1", models.CategoryAvatar, models.StorageDescriptor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(context.Background(), tt.userID, tt.category, tt.d)
			require.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Delete_Success(t *testing.T) {
	s, mock := newRecordService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(deleteImageQ).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category", "bytes"}).
			AddRow("r1", "u1", "gallery", int64(512)))
	mock.ExpectExec(adjustStatsQ).
		WithArgs("u1", int64(-1), int64(-512)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := s.Delete(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Delete_Missing(t *testing.T) {
	s, mock := newRecordService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(deleteImageQ).WithArgs("gone").WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	ok, err := s.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Delete_Error(t *testing.T) {
	s, mock := newRecordService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(deleteImageQ).WithArgs("r1").WillReturnError(errors.New("timeout"))
	mock.ExpectRollback()

	ok, err := s.Delete(context.Background(), "r1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "delete record r1")
	require.NoError(t, mock.ExpectationsWereMet())
}
