package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"sigma-events-tracker/internal/aggregator"
	"sigma-events-tracker/internal/config"
	"sigma-events-tracker/internal/enrichment"
	"sigma-events-tracker/internal/evaluator"
	"sigma-events-tracker/internal/models"
	"sigma-events-tracker/internal/notifier"
	"sigma-events-tracker/internal/repository"
	"sigma-events-tracker/internal/sigma"
	"sigma-events-tracker/internal/tracker"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// CycleStatus 最近一次轮询周期的执行情况（健康检查用）
type CycleStatus struct {
	LastCycleAt time.Time `json:"last_cycle_at"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	EventCount  int       `json:"event_count"`
	KeyCount    int       `json:"key_count"`
	Fired       int       `json:"fired"`
	Cleared     int       `json:"cleared"`
}

// TrackerService 事件追踪服务（整合各层）
type TrackerService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	windowRepo  *repository.WindowRepository
	triggerRepo *repository.TriggerRepository
	auditRepo   *repository.AuditRepository
	sigmaClient *sigma.Client
	fetcher     *sigma.Fetcher
	aggregator  *aggregator.Aggregator
	tracker     *tracker.Tracker
	evaluator   *evaluator.Evaluator

	statusMu sync.RWMutex
	status   CycleStatus
}

// NewTrackerService 创建事件追踪服务
func NewTrackerService(cfg *config.Config, logger *zap.Logger) (*TrackerService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	windowRepo := repository.NewWindowRepository(db, logger)
	triggerRepo := repository.NewTriggerRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)

	// 4. 创建 Sigma Cloud 客户端与抓取器
	sigmaClient := sigma.NewClient(cfg.Sigma.BaseURL, cfg.Sigma.BearerToken, logger)
	fetcher := sigma.NewFetcher(sigmaClient, cfg.Sigma.MaxBatches, logger)

	// 5. 创建聚合与窗口层
	agg := aggregator.NewAggregator(cfg.Sigma.IncludedCucs, cfg.Sigma.IncludedCodes)
	windowTracker := tracker.NewTracker(windowRepo, cfg.Sigma.WindowPeriod, logger)

	// 6. 创建通知与评估层
	// 客户组列表按周期不变，缓存一个轮询间隔
	enricher := enrichment.NewEnricher(sigmaClient, redisClient, cfg.Sigma.PollInterval, logger)
	dispatcher := notifier.NewDispatcher(
		notifier.NewChatClient(
			cfg.ChatPro.BaseURL,
			cfg.ChatPro.InstanceID,
			cfg.ChatPro.BearerToken,
			cfg.ChatPro.GroupJID,
			logger,
		),
		sigmaClient,
		auditRepo,
		logger,
	)
	eval := evaluator.NewEvaluator(triggerRepo, enricher, dispatcher, cfg.Sigma.CountThreshold, logger)

	return &TrackerService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		windowRepo:  windowRepo,
		triggerRepo: triggerRepo,
		auditRepo:   auditRepo,
		sigmaClient: sigmaClient,
		fetcher:     fetcher,
		aggregator:  agg,
		tracker:     windowTracker,
		evaluator:   eval,
	}, nil
}

// Start 启动服务（轮询模式，阻塞直到 ctx 取消）
func (s *TrackerService) Start(ctx context.Context) error {
	s.logger.Info("Starting event tracker service",
		zap.Duration("window_period", s.config.Sigma.WindowPeriod),
		zap.Int("count_threshold", s.config.Sigma.CountThreshold),
		zap.Duration("poll_interval", s.config.Sigma.PollInterval),
	)

	ticker := time.NewTicker(s.config.Sigma.PollInterval)
	defer ticker.Stop()

	// 立即执行一次
	s.runCycle(ctx)

	// 定期轮询
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Event tracker service stopped")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Stop 停止服务
func (s *TrackerService) Stop() error {
	s.logger.Info("Stopping event tracker service")

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// DB 暴露数据库连接（诊断端点用）
func (s *TrackerService) DB() *sql.DB {
	return s.db
}

// Redis 暴露 Redis 连接（诊断端点用）
func (s *TrackerService) Redis() *redis.Client {
	return s.redisClient
}

// Status 返回最近一次周期的执行情况
func (s *TrackerService) Status() CycleStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// runCycle 执行一个完整追踪周期。
// 周期内任何阶段失败（包括 panic）都只记录并等待下一轮，不中断服务。
func (s *TrackerService) runCycle(ctx context.Context) {
	var status CycleStatus
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}

		status.LastCycleAt = time.Now().UTC()
		status.Success = err == nil
		if err != nil {
			status.Error = err.Error()
			s.logger.Error("Tracking cycle failed",
				zap.Error(err),
			)
		}

		s.statusMu.Lock()
		s.status = status
		s.statusMu.Unlock()
	}()

	status, err = s.executeCycle(ctx)
}

func (s *TrackerService) executeCycle(ctx context.Context) (CycleStatus, error) {
	var status CycleStatus

	// 1. 解析当前聚合窗口（数据库时钟裁决过期与重建）
	state, err := s.tracker.CurrentWindow(ctx)
	if err != nil {
		return status, fmt.Errorf("failed to resolve current window: %w", err)
	}
	window := state.Window(s.tracker.Period())

	// 2. 清理窗口开始前就已过期的触发记录
	if _, err := s.triggerRepo.DeleteStale(ctx, s.config.Sigma.StalenessField, window.Start); err != nil {
		return status, fmt.Errorf("failed to prune stale triggers: %w", err)
	}

	// 3. 抓取窗口内全部事件（超限时自动细分批次）
	events, err := s.fetcher.Fetch(ctx, window)
	if err != nil {
		return status, fmt.Errorf("failed to fetch events: %w", err)
	}
	status.EventCount = len(events)

	// 4. 人工关闭工单关联的事件不参与计数
	var closed map[string]struct{}
	if s.config.Sigma.OccurrenceFilter {
		occurrences, err := s.sigmaClient.GetOccurrences(ctx, window, s.config.Sigma.OccurrenceClosingUserID)
		if err != nil {
			return status, fmt.Errorf("failed to fetch occurrences: %w", err)
		}
		closed = aggregator.ClosedOccurrenceSet(occurrences)
	}

	// 5. 聚合计数
	bundle := s.aggregator.Aggregate(events, closed)
	keys := bundle.Keys()
	status.KeyCount = len(keys)

	s.logger.Info("Cycle aggregation complete",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int("event_count", len(events)),
		zap.Int("key_count", len(keys)),
	)

	// 6. 并发评估各键，单键失败相互隔离
	fired, cleared := s.evaluateKeys(ctx, keys, window)
	status.Fired = fired
	status.Cleared = cleared

	return status, nil
}

// evaluateKeys 按配置的并发度评估全部聚合键
func (s *TrackerService) evaluateKeys(ctx context.Context, keys []aggregator.KeyCount, window models.TimeWindow) (int, int) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fired   int
		cleared int
	)
	sem := make(chan struct{}, s.config.Evaluation.Concurrency)

	for _, kc := range keys {
		select {
		case <-ctx.Done():
			wg.Wait()
			return fired, cleared
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(kc aggregator.KeyCount) {
			defer wg.Done()
			defer func() { <-sem }()

			action, err := s.evaluator.EvaluateKey(ctx, kc.Key, kc.Count, window)
			if err != nil {
				s.logger.Error("Failed to evaluate key",
					zap.String("cuc", kc.Key.Cuc),
					zap.Int("account_id", kc.Key.AccountID),
					zap.String("code", kc.Key.Code),
					zap.Error(err),
				)
			}

			mu.Lock()
			switch action {
			case evaluator.ActionFire:
				fired++
			case evaluator.ActionClear:
				cleared++
			}
			mu.Unlock()
		}(kc)
	}

	wg.Wait()
	return fired, cleared
}

// buildDSN 构建数据库连接字符串
func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)
}
