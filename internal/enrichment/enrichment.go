package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sigma-events-tracker/internal/models"
	"sigma-events-tracker/internal/sigma"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EmptyGroupName 账户未关联任何客户组时使用的占位名
const EmptyGroupName = "Vazio"

// 客户组列表缓存键
const clientGroupsCacheKey = "sigma:client-groups"

// Enricher 账户元数据富化客户端。
// 仅在新触发产生时调用：账户、公司按需拉取；
// 客户组列表在周期内不变，缓存在 Redis 中避免每个触发重复全量拉取。
type Enricher struct {
	client      *sigma.Client
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewEnricher 创建富化客户端
func NewEnricher(client *sigma.Client, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *Enricher {
	return &Enricher{
		client:      client,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Enrich 解析账户、公司与客户组元数据。
// 失败只影响当前触发的处理，不中止同周期的其他触发。
func (e *Enricher) Enrich(ctx context.Context, accountID int) (*models.EnrichedAccount, error) {
	account, err := e.client.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich account %d: %w", accountID, err)
	}

	company, err := e.client.GetCompany(ctx, account.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich company %d: %w", account.CompanyID, err)
	}

	groups, err := e.clientGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client groups: %w", err)
	}

	groupName := EmptyGroupName
	for _, group := range groups {
		if group.ID == account.ClientGroupID {
			groupName = group.Name
			break
		}
	}

	return &models.EnrichedAccount{
		AccountCode:      account.AccountCode,
		TradeName:        account.TradeName,
		CompanyID:        account.CompanyID,
		CompanyTradeName: company.TradeName,
		ClientGroupName:  groupName,
	}, nil
}

// clientGroups 读取客户组列表，优先命中 Redis 缓存
func (e *Enricher) clientGroups(ctx context.Context) ([]models.ClientGroup, error) {
	val, err := e.redisClient.Get(ctx, clientGroupsCacheKey).Result()
	if err == nil {
		var groups []models.ClientGroup
		if err := json.Unmarshal([]byte(val), &groups); err == nil {
			return groups, nil
		}
		// 缓存内容损坏，回退到上游
		e.logger.Warn("Corrupt client group cache, refetching")
	} else if err != redis.Nil {
		// Redis 不可用不是致命错误，直接打上游
		e.logger.Warn("Client group cache unavailable",
			zap.Error(err),
		)
	}

	groups, err := e.client.ListClientGroups(ctx)
	if err != nil {
		return nil, err
	}

	if jsonData, err := json.Marshal(groups); err == nil {
		if err := e.redisClient.Set(ctx, clientGroupsCacheKey, jsonData, e.cacheTTL).Err(); err != nil {
			e.logger.Warn("Failed to cache client groups",
				zap.Error(err),
			)
		}
	}

	return groups, nil
}
