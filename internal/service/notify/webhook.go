package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mspkit/tierkeep/internal/config"
)

// WebhookChannel 通过 HTTP Webhook 投递审批请求（Teams/Slack 入站连接器兼容）
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel 创建 Webhook 通知渠道
func NewWebhookChannel(cfg *config.NotifyConfig) *WebhookChannel {
	return &WebhookChannel{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// webhookPayload 出站消息体
type webhookPayload struct {
	ConversationID string         `json:"conversation_id"`
	Kind           string         `json:"kind"`
	Group          *ApprovalGroup `json:"group"`
}

// SendApprovalRequest 发送审批请求
func (c *WebhookChannel) SendApprovalRequest(ctx context.Context, group *ApprovalGroup) (*DeliveryResult, error) {
	if c.url == "" {
		return nil, fmt.Errorf("webhook url is not configured")
	}

	payload := webhookPayload{
		ConversationID: uuid.New().String(),
		Kind:           "archive_approval_request",
		Group:          group,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	return &DeliveryResult{
		Delivered:      true,
		ConversationID: payload.ConversationID,
	}, nil
}
