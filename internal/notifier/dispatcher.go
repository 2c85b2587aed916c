package notifier

import (
	"context"
	"fmt"

	"sigma-events-tracker/internal/models"
	"sigma-events-tracker/internal/repository"
	"sigma-events-tracker/internal/sigma"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 报警注入的固定负载字段
const (
	applicationType = "sigma-cloud-events-tracker"
	alarmAuxiliary  = "0"
	alarmCode       = "E701"
	alarmEventID    = "167681000"
	alarmPartition  = "000"
	alarmProtocol   = "CONTACT_ID"
)

// Dispatcher 通知分发器。
// 聊天通知与报警注入相互独立：任一失败不阻塞另一个；
// 每次注入尝试都落一条审计记录（sent/failed），注入成功时额外写登记记录。
type Dispatcher struct {
	chatClient  *ChatClient
	sigmaClient *sigma.Client
	auditRepo   *repository.AuditRepository
	logger      *zap.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(
	chatClient *ChatClient,
	sigmaClient *sigma.Client,
	auditRepo *repository.AuditRepository,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		chatClient:  chatClient,
		sigmaClient: sigmaClient,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// Dispatch 对一个新触发执行全部通知副作用
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	info *models.EnrichedAccount,
	key models.AggregateKey,
	count int,
	window models.TimeWindow,
) error {
	if info == nil {
		return fmt.Errorf("enriched account info is required")
	}

	// 1. 聊天通知：失败仅记录日志，不影响报警注入和审计
	message := RenderChatMessage(info, key.Code, count, window)
	if err := d.chatClient.SendMessage(ctx, message); err != nil {
		d.logger.Error("Failed to send chat notification",
			zap.String("cuc", key.Cuc),
			zap.Int("account_id", key.AccountID),
			zap.String("code", key.Code),
			zap.Error(err),
		)
	}

	// 2. 报警注入
	complement := RenderComplement(key.Code, count, window)
	alarmEvent := models.AlarmEvent{
		Account:      info.AccountCode,
		Auxiliary:    alarmAuxiliary,
		Code:         alarmCode,
		CompanyID:    info.CompanyID,
		Complement:   complement,
		EventID:      alarmEventID,
		EventLog:     complement,
		Partition:    alarmPartition,
		ProtocolType: alarmProtocol,
	}

	injectErr := d.sigmaClient.InjectAlarm(ctx, alarmEvent)

	status := models.AlarmStatusSent
	if injectErr != nil {
		status = models.AlarmStatusFailed
		d.logger.Error("Failed to inject alarm event",
			zap.String("account", info.AccountCode),
			zap.String("code", key.Code),
			zap.Error(injectErr),
		)
	}

	// 3. 审计：每次注入尝试一行，成功失败同一负载
	alarmRecord := &models.AlarmRecord{
		ID:              uuid.New().String(),
		ApplicationType: applicationType,
		Account:         info.AccountCode,
		Auxiliary:       alarmAuxiliary,
		Code:            alarmCode,
		CompanyID:       info.CompanyID,
		Complement:      complement,
		EventID:         alarmEventID,
		EventLog:        complement,
		Partition:       alarmPartition,
		ProtocolType:    alarmProtocol,
		Status:          status,
	}
	if err := d.auditRepo.CreateAlarmRecord(ctx, alarmRecord); err != nil {
		d.logger.Error("Failed to persist alarm audit record",
			zap.String("account", info.AccountCode),
			zap.String("status", status),
			zap.Error(err),
		)
	}

	if injectErr != nil {
		return fmt.Errorf("alarm injection failed: %w", injectErr)
	}

	// 4. 登记记录：注入成功时写入，独立还原触发明细
	register := &models.RegisterRecord{
		ID:               uuid.New().String(),
		AccountCode:      info.AccountCode,
		TradeName:        info.TradeName,
		CompanyTradeName: info.CompanyTradeName,
		ClientGroupName:  info.ClientGroupName,
		Code:             key.Code,
		Period:           FormatPeriod(window),
		Quantity:         count,
	}
	if err := d.auditRepo.CreateRegister(ctx, register); err != nil {
		d.logger.Error("Failed to persist register record",
			zap.String("account", info.AccountCode),
			zap.Error(err),
		)
	}

	return nil
}
