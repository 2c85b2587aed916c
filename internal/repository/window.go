package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sigma-events-tracker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WindowRepository 窗口状态仓库（event_window 表，逻辑上单行）
type WindowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWindowRepository 创建窗口状态仓库
func NewWindowRepository(db *sql.DB, logger *zap.Logger) *WindowRepository {
	return &WindowRepository{
		db:     db,
		logger: logger,
	}
}

// Now 读取数据库时钟。窗口续期以数据库时间为准，不依赖进程时钟。
func (r *WindowRepository) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.db.QueryRowContext(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now, nil
}

// Get 获取当前窗口状态；不存在时返回 (nil, nil)
func (r *WindowRepository) Get(ctx context.Context) (*models.WindowState, error) {
	query := `
		SELECT id, started_at, created_at
		FROM event_window
		ORDER BY created_at DESC
		LIMIT 1
	`

	var state models.WindowState
	err := r.db.QueryRowContext(ctx, query).Scan(
		&state.ID,
		&state.StartedAt,
		&state.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get window state: %w", err)
	}

	return &state, nil
}

// Replace 原子替换窗口状态（删除旧行后插入新行，保证只有一行存活）
func (r *WindowRepository) Replace(ctx context.Context, startedAt time.Time) (*models.WindowState, error) {
	if startedAt.IsZero() {
		return nil, fmt.Errorf("started_at is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_window`); err != nil {
		return nil, fmt.Errorf("failed to delete window state: %w", err)
	}

	query := `
		INSERT INTO event_window (id, started_at, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, started_at, created_at
	`

	var state models.WindowState
	err = tx.QueryRowContext(ctx, query, uuid.New().String(), startedAt).Scan(
		&state.ID,
		&state.StartedAt,
		&state.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create window state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit window state: %w", err)
	}

	r.logger.Info("Window state replaced",
		zap.String("window_id", state.ID),
		zap.Time("started_at", state.StartedAt),
	)

	return &state, nil
}
