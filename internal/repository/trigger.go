package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sigma-events-tracker/internal/models"

	"go.uber.org/zap"
)

// 触发过期判定允许使用的时间戳列
var allowedStalenessFields = map[string]bool{
	"updated_at": true,
	"created_at": true,
}

// TriggerRepository 触发去重仓库（event_triggers 表）
// 唯一约束 (account_id, cuc, code) 由存储层保证，
// 并发周期对同一键的竞争通过 ON CONFLICT DO NOTHING 消解。
type TriggerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTriggerRepository 创建触发去重仓库
func NewTriggerRepository(db *sql.DB, logger *zap.Logger) *TriggerRepository {
	return &TriggerRepository{
		db:     db,
		logger: logger,
	}
}

// Get 按键查询触发记录；不存在时返回 (nil, nil)
func (r *TriggerRepository) Get(ctx context.Context, accountID int, cuc, code string) (*models.TriggerRecord, error) {
	if cuc == "" {
		return nil, fmt.Errorf("cuc is required")
	}
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}

	query := `
		SELECT account_id, cuc, code, created_at, updated_at
		FROM event_triggers
		WHERE account_id = $1
		  AND cuc = $2
		  AND code = $3
	`

	var record models.TriggerRecord
	err := r.db.QueryRowContext(ctx, query, accountID, cuc, code).Scan(
		&record.AccountID,
		&record.Cuc,
		&record.Code,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trigger: %w", err)
	}

	return &record, nil
}

// Create 幂等创建触发记录。返回值表示本次调用是否真正插入了行：
// false 表示并发周期已先行创建，调用方应跳过通知。
func (r *TriggerRepository) Create(ctx context.Context, accountID int, cuc, code string) (bool, error) {
	if cuc == "" {
		return false, fmt.Errorf("cuc is required")
	}
	if code == "" {
		return false, fmt.Errorf("code is required")
	}

	query := `
		INSERT INTO event_triggers (account_id, cuc, code, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (account_id, cuc, code) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, accountID, cuc, code)
	if err != nil {
		return false, fmt.Errorf("failed to create trigger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Delete 删除触发记录（行不存在时为空操作），为该键重新武装下一次触发
func (r *TriggerRepository) Delete(ctx context.Context, accountID int, cuc, code string) error {
	if cuc == "" {
		return fmt.Errorf("cuc is required")
	}
	if code == "" {
		return fmt.Errorf("code is required")
	}

	query := `
		DELETE FROM event_triggers
		WHERE account_id = $1
		  AND cuc = $2
		  AND code = $3
	`

	if _, err := r.db.ExecContext(ctx, query, accountID, cuc, code); err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}

	return nil
}

// DeleteStale 删除过期触发记录（stalenessField 早于 before 的行）
// 每周期抓取前执行一次，幂等。
func (r *TriggerRepository) DeleteStale(ctx context.Context, stalenessField string, before time.Time) (int64, error) {
	if !allowedStalenessFields[stalenessField] {
		return 0, fmt.Errorf("invalid staleness field: %s", stalenessField)
	}
	if before.IsZero() {
		return 0, fmt.Errorf("before is required")
	}

	// stalenessField 已通过白名单校验，可安全拼接
	query := fmt.Sprintf(`DELETE FROM event_triggers WHERE %s < $1`, stalenessField)

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale triggers: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		r.logger.Info("Stale triggers pruned",
			zap.Int64("count", rowsAffected),
			zap.Time("before", before),
		)
	}

	return rowsAffected, nil
}
