package sigma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sigma-events-tracker/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrRecordsOverLimit 上游拒绝请求：时间范围内记录数超过单次请求上限。
// 调用方（Fetcher）捕获后将窗口对半细分并整体重试。
var ErrRecordsOverLimit = errors.New("records over limit")

// 上游时间参数格式（ISO8601，毫秒精度）
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// apiError Sigma Cloud 错误响应体
type apiError struct {
	Message    string `json:"message"`
	MessageKey string `json:"messageKey"`
}

// Client Sigma Cloud API 客户端（事件流、账户目录、报警注入）
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建 Sigma Cloud 客户端
func NewClient(baseURL, bearerToken string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetAuthToken(bearerToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// GetEvents 拉取窗口内的原始事件（GET /v1/events）
// 记录数超限时返回 ErrRecordsOverLimit。
func (c *Client) GetEvents(ctx context.Context, window models.TimeWindow) ([]models.Event, error) {
	var events []models.Event

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"startDate": window.Start.UTC().Format(timeFormat),
			"endDate":   window.End.UTC().Format(timeFormat),
		}).
		SetResult(&events).
		Get("/v1/events")

	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	if resp.IsError() {
		return nil, c.responseError("get events", resp)
	}

	return events, nil
}

// GetOccurrences 拉取窗口内人工关闭的工单（GET /v1/occurrences）
func (c *Client) GetOccurrences(ctx context.Context, window models.TimeWindow, closingUserID int) ([]models.Occurrence, error) {
	var occurrences []models.Occurrence

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"occurrenceClosingUserId": strconv.Itoa(closingUserID),
			"startDate":               window.Start.UTC().Format(timeFormat),
			"endDate":                 window.End.UTC().Format(timeFormat),
		}).
		SetResult(&occurrences).
		Get("/v1/occurrences")

	if err != nil {
		return nil, fmt.Errorf("failed to get occurrences: %w", err)
	}

	if resp.IsError() {
		return nil, c.responseError("get occurrences", resp)
	}

	return occurrences, nil
}

// GetAccount 查询账户目录（GET /v5/accounts/{id}）
func (c *Client) GetAccount(ctx context.Context, accountID int) (*models.AccountInfo, error) {
	var account models.AccountInfo

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&account).
		Get(fmt.Sprintf("/v5/accounts/%d", accountID))

	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", accountID, err)
	}

	if resp.IsError() {
		return nil, c.responseError(fmt.Sprintf("get account %d", accountID), resp)
	}

	return &account, nil
}

// GetCompany 查询公司目录（GET /v1/company/{id}）
func (c *Client) GetCompany(ctx context.Context, companyID int) (*models.CompanyInfo, error) {
	var company models.CompanyInfo

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&company).
		Get(fmt.Sprintf("/v1/company/%d", companyID))

	if err != nil {
		return nil, fmt.Errorf("failed to get company %d: %w", companyID, err)
	}

	if resp.IsError() {
		return nil, c.responseError(fmt.Sprintf("get company %d", companyID), resp)
	}

	return &company, nil
}

// ListClientGroups 拉取全量客户组列表（GET /v1/clientGroups）
func (c *Client) ListClientGroups(ctx context.Context) ([]models.ClientGroup, error) {
	var groups []models.ClientGroup

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&groups).
		Get("/v1/clientGroups")

	if err != nil {
		return nil, fmt.Errorf("failed to list client groups: %w", err)
	}

	if resp.IsError() {
		return nil, c.responseError("list client groups", resp)
	}

	return groups, nil
}

// InjectAlarm 注入报警事件（POST /v3/events/alarm）
func (c *Client) InjectAlarm(ctx context.Context, event models.AlarmEvent) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(models.AlarmEventRequest{Events: []models.AlarmEvent{event}}).
		Post("/v3/events/alarm")

	if err != nil {
		return fmt.Errorf("failed to inject alarm: %w", err)
	}

	if resp.IsError() {
		return c.responseError("inject alarm", resp)
	}

	c.logger.Info("Alarm event injected",
		zap.String("account", event.Account),
		zap.String("code", event.Code),
	)

	return nil
}

// responseError 解析非 2xx 响应，识别超限信号
func (c *Client) responseError(op string, resp *resty.Response) error {
	var apiErr apiError
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil {
		if apiErr.MessageKey == "registers_over_limit" ||
			strings.Contains(strings.ToLower(apiErr.Message), "over limit") {
			return fmt.Errorf("failed to %s: %w", op, ErrRecordsOverLimit)
		}
	}

	return fmt.Errorf("failed to %s: status %d: %s", op, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
}
