package tracker

import (
	"context"
	"fmt"
	"time"

	"sigma-events-tracker/internal/models"
	"sigma-events-tracker/internal/repository"

	"go.uber.org/zap"
)

// Tracker 窗口跟踪器。持有当前聚合窗口的边界，状态落库，重启不丢失窗口身份。
// 周期之间不会并发调用，原子性由存储层保证。
type Tracker struct {
	windowRepo *repository.WindowRepository
	period     time.Duration
	logger     *zap.Logger
}

// NewTracker 创建窗口跟踪器
func NewTracker(windowRepo *repository.WindowRepository, period time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		windowRepo: windowRepo,
		period:     period,
		logger:     logger,
	}
}

// CurrentWindow 返回当前窗口状态。
// 状态不存在或数据库时间已越过 started_at + period 时，删除重建并锚定到当前时间。
func (t *Tracker) CurrentWindow(ctx context.Context) (*models.WindowState, error) {
	now, err := t.windowRepo.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current time: %w", err)
	}

	state, err := t.windowRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load window state: %w", err)
	}

	if state != nil && !now.After(state.StartedAt.Add(t.period)) {
		return state, nil
	}

	if state != nil {
		t.logger.Info("Window expired, renewing",
			zap.String("window_id", state.ID),
			zap.Time("started_at", state.StartedAt),
			zap.Time("now", now),
		)
	}

	state, err = t.windowRepo.Replace(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to renew window state: %w", err)
	}

	return state, nil
}

// Period 窗口时长
func (t *Tracker) Period() time.Duration {
	return t.period
}
