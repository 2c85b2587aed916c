package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sigma-events-tracker/internal/models"

	"go.uber.org/zap"
)

// AuditRepository 审计仓库（alarm_audit / trigger_registers 表，只追加）
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository 创建审计仓库
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlarmRecord 写入报警注入审计记录（每次通知尝试一行，成功或失败）
func (r *AuditRepository) CreateAlarmRecord(ctx context.Context, record *models.AlarmRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if record.Status != models.AlarmStatusSent && record.Status != models.AlarmStatusFailed {
		return fmt.Errorf("invalid alarm record status: %s", record.Status)
	}

	query := `
		INSERT INTO alarm_audit (
			id,
			application_type,
			account,
			auxiliary,
			code,
			company_id,
			complement,
			event_id,
			event_log,
			partition,
			protocol_type,
			status,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW()
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		record.ID,
		record.ApplicationType,
		record.Account,
		record.Auxiliary,
		record.Code,
		record.CompanyID,
		record.Complement,
		record.EventID,
		record.EventLog,
		record.Partition,
		record.ProtocolType,
		record.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to create alarm record: %w", err)
	}

	return nil
}

// CreateRegister 写入触发登记记录（每次触发一行）
func (r *AuditRepository) CreateRegister(ctx context.Context, record *models.RegisterRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if record.Code == "" {
		return fmt.Errorf("record code is required")
	}

	query := `
		INSERT INTO trigger_registers (
			id,
			account_code,
			trade_name,
			company_trade_name,
			client_group_name,
			code,
			period,
			quantity,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		record.ID,
		record.AccountCode,
		record.TradeName,
		record.CompanyTradeName,
		record.ClientGroupName,
		record.Code,
		record.Period,
		record.Quantity,
	)

	if err != nil {
		return fmt.Errorf("failed to create register record: %w", err)
	}

	return nil
}
