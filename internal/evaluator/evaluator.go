package evaluator

import (
	"context"
	"fmt"

	"sigma-events-tracker/internal/enrichment"
	"sigma-events-tracker/internal/models"
	"sigma-events-tracker/internal/notifier"
	"sigma-events-tracker/internal/repository"

	"go.uber.org/zap"
)

// Action 一次键评估产生的状态迁移
type Action string

const (
	ActionNone  Action = "none"
	ActionFire  Action = "fire"
	ActionClear Action = "clear"
)

// Evaluator 阈值评估器。
// 对每个聚合键比较计数与阈值并维护触发记录：
// 无触发且计数达到阈值 → 创建触发并发通知；
// 有触发且计数低于阈值 → 删除触发（静默清除，无通知）。
type Evaluator struct {
	triggerRepo *repository.TriggerRepository
	enricher    *enrichment.Enricher
	dispatcher  *notifier.Dispatcher
	threshold   int
	logger      *zap.Logger
}

// NewEvaluator 创建阈值评估器
func NewEvaluator(
	triggerRepo *repository.TriggerRepository,
	enricher *enrichment.Enricher,
	dispatcher *notifier.Dispatcher,
	threshold int,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		triggerRepo: triggerRepo,
		enricher:    enricher,
		dispatcher:  dispatcher,
		threshold:   threshold,
		logger:      logger,
	}
}

// EvaluateKey 评估单个聚合键。
// 先落触发记录再发通知：即使通知失败，触发也保持激活并抑制下一轮重复报警。
func (e *Evaluator) EvaluateKey(
	ctx context.Context,
	key models.AggregateKey,
	count int,
	window models.TimeWindow,
) (Action, error) {
	trigger, err := e.triggerRepo.Get(ctx, key.AccountID, key.Cuc, key.Code)
	if err != nil {
		return ActionNone, fmt.Errorf("failed to load trigger state: %w", err)
	}

	if trigger == nil && count >= e.threshold {
		return e.fire(ctx, key, count, window)
	}

	if trigger != nil && count < e.threshold {
		if err := e.triggerRepo.Delete(ctx, key.AccountID, key.Cuc, key.Code); err != nil {
			return ActionNone, fmt.Errorf("failed to clear trigger: %w", err)
		}

		e.logger.Info("Trigger cleared",
			zap.String("cuc", key.Cuc),
			zap.Int("account_id", key.AccountID),
			zap.String("code", key.Code),
			zap.Int("count", count),
		)
		return ActionClear, nil
	}

	return ActionNone, nil
}

func (e *Evaluator) fire(
	ctx context.Context,
	key models.AggregateKey,
	count int,
	window models.TimeWindow,
) (Action, error) {
	created, err := e.triggerRepo.Create(ctx, key.AccountID, key.Cuc, key.Code)
	if err != nil {
		return ActionNone, fmt.Errorf("failed to create trigger: %w", err)
	}
	if !created {
		// 并发评估已抢先创建，通知由赢家负责
		e.logger.Warn("Trigger already created by concurrent evaluation",
			zap.String("cuc", key.Cuc),
			zap.Int("account_id", key.AccountID),
			zap.String("code", key.Code),
		)
		return ActionNone, nil
	}

	e.logger.Info("Trigger fired",
		zap.String("cuc", key.Cuc),
		zap.Int("account_id", key.AccountID),
		zap.String("code", key.Code),
		zap.Int("count", count),
		zap.Int("threshold", e.threshold),
	)

	info, err := e.enricher.Enrich(ctx, key.AccountID)
	if err != nil {
		return ActionFire, err
	}

	if err := e.dispatcher.Dispatch(ctx, info, key, count, window); err != nil {
		return ActionFire, fmt.Errorf("failed to dispatch notifications: %w", err)
	}

	return ActionFire, nil
}
