package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockTriggerDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *TriggerRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewTriggerRepository(db, logger)

	return db, mock, repo
}

func TestTriggerGet_Success(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"account_id", "cuc", "code", "created_at", "updated_at"}).
		AddRow(7, "ALI", "E130", now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs(7, "ALI", "E130").
		WillReturnRows(rows)

	record, err := repo.Get(context.Background(), 7, "ALI", "E130")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 7, record.AccountID)
	assert.Equal(t, "ALI", record.Cuc)
	assert.Equal(t, "E130", record.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerGet_NotFound(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(7, "ALI", "E130").
		WillReturnError(sql.ErrNoRows)

	record, err := repo.Get(context.Background(), 7, "ALI", "E130")

	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerGet_MissingCuc(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	record, err := repo.Get(context.Background(), 7, "", "E130")

	assert.Error(t, err)
	assert.Nil(t, record)
	assert.Contains(t, err.Error(), "cuc is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerCreate_Inserted(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO event_triggers`).
		WithArgs(7, "ALI", "E130").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := repo.Create(context.Background(), 7, "ALI", "E130")

	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerCreate_ConflictIsBenign(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	// ON CONFLICT DO NOTHING：并发周期已创建时影响行数为 0，不报错
	mock.ExpectExec(`INSERT INTO event_triggers`).
		WithArgs(7, "ALI", "E130").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), 7, "ALI", "E130")

	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerDelete_Success(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM event_triggers`).
		WithArgs(7, "ALI", "E130").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), 7, "ALI", "E130")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerDelete_AbsentRowIsNoop(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM event_triggers`).
		WithArgs(7, "ALI", "E130").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 7, "ALI", "E130")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerDeleteStale_Success(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	windowStart := time.Now().Add(-2 * time.Hour)

	mock.ExpectExec(`DELETE FROM event_triggers WHERE updated_at`).
		WithArgs(windowStart).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.DeleteStale(context.Background(), "updated_at", windowStart)

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerDeleteStale_Idempotent(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	windowStart := time.Now().Add(-2 * time.Hour)

	mock.ExpectExec(`DELETE FROM event_triggers WHERE created_at`).
		WithArgs(windowStart).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM event_triggers WHERE created_at`).
		WithArgs(windowStart).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.DeleteStale(context.Background(), "created_at", windowStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first)

	// 同一 windowStart 重复执行不再删除任何行
	second, err := repo.DeleteStale(context.Background(), "created_at", windowStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerDeleteStale_InvalidField(t *testing.T) {
	db, mock, repo := setupMockTriggerDB(t)
	defer db.Close()

	count, err := repo.DeleteStale(context.Background(), "deleted_at", time.Now())

	assert.Error(t, err)
	assert.Zero(t, count)
	assert.Contains(t, err.Error(), "invalid staleness field")

	require.NoError(t, mock.ExpectationsWereMet())
}
