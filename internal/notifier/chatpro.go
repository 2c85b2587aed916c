package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ChatClient ChatPro 聊天通知客户端
type ChatClient struct {
	httpClient *resty.Client
	instanceID string
	groupJID   string
	logger     *zap.Logger
}

// NewChatClient 创建 ChatPro 客户端
func NewChatClient(baseURL, instanceID, bearerToken, groupJID string, logger *zap.Logger) *ChatClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Authorization", bearerToken).
		SetHeader("Content-Type", "application/json")

	return &ChatClient{
		httpClient: client,
		instanceID: instanceID,
		groupJID:   groupJID,
		logger:     logger,
	}
}

// SendMessage 发送消息到配置的群组
func (c *ChatClient) SendMessage(ctx context.Context, message string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("instance_id", c.instanceID).
		SetBody(map[string]string{
			"number":  c.groupJID,
			"message": message,
		}).
		Post(fmt.Sprintf("/%s/api/v1/send_message", c.instanceID))

	if err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("failed to send chat message: status %d: %s",
			resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	return nil
}
