package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockWindowDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *WindowRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewWindowRepository(db, logger)

	return db, mock, repo
}

func TestWindowNow(t *testing.T) {
	db, mock, repo := setupMockWindowDB(t)
	defer db.Close()

	dbNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT NOW`).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(dbNow))

	now, err := repo.Now(context.Background())

	require.NoError(t, err)
	assert.Equal(t, dbNow, now)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowGet_Success(t *testing.T) {
	db, mock, repo := setupMockWindowDB(t)
	defer db.Close()

	windowID := uuid.New().String()
	startedAt := time.Now().Add(-time.Hour)
	createdAt := startedAt

	rows := sqlmock.NewRows([]string{"id", "started_at", "created_at"}).
		AddRow(windowID, startedAt, createdAt)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	state, err := repo.Get(context.Background())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, windowID, state.ID)
	assert.Equal(t, startedAt, state.StartedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowGet_NotFound(t *testing.T) {
	db, mock, repo := setupMockWindowDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrNoRows)

	state, err := repo.Get(context.Background())

	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowReplace_Success(t *testing.T) {
	db, mock, repo := setupMockWindowDB(t)
	defer db.Close()

	startedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM event_window`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO event_window`).
		WithArgs(sqlmock.AnyArg(), startedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at", "created_at"}).
			AddRow(uuid.New().String(), startedAt, startedAt))
	mock.ExpectCommit()

	state, err := repo.Replace(context.Background(), startedAt)

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, startedAt, state.StartedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowReplace_ZeroStartedAt(t *testing.T) {
	db, mock, repo := setupMockWindowDB(t)
	defer db.Close()

	state, err := repo.Replace(context.Background(), time.Time{})

	assert.Error(t, err)
	assert.Nil(t, state)
	assert.Contains(t, err.Error(), "started_at is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowReplace_InsertFailureRollsBack(t *testing.T) {
	db, mock, repo := setupMockWindowDB(t)
	defer db.Close()

	startedAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM event_window`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO event_window`).
		WithArgs(sqlmock.AnyArg(), startedAt).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	state, err := repo.Replace(context.Background(), startedAt)

	assert.Error(t, err)
	assert.Nil(t, state)

	require.NoError(t, mock.ExpectationsWereMet())
}
