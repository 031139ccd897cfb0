// Package notify 提供审批通知渠道抽象与投递重试
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ApprovalGroup 一组按站点负责人聚合的待审批文件
// 同负责人同站点的多份文件合并为一条出站通知
type ApprovalGroup struct {
	ClientTenantID string   `json:"client_tenant_id"`
	SiteID         string   `json:"site_id"`
	SiteName       string   `json:"site_name"`
	OwnerID        string   `json:"owner_id"`
	OwnerEmail     string   `json:"owner_email"`
	FileCount      int      `json:"file_count"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	TargetTier     string   `json:"target_tier"`
	OperationIDs   []string `json:"operation_ids"`
}

// DeliveryResult 投递结果
type DeliveryResult struct {
	Delivered      bool   `json:"delivered"`
	ConversationID string `json:"conversation_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	AttemptCount   int    `json:"attempt_count"`
}

// Channel 通知渠道接口
type Channel interface {
	// SendApprovalRequest 发送审批请求
	SendApprovalRequest(ctx context.Context, group *ApprovalGroup) (*DeliveryResult, error)
}

// Dispatcher 带有限重试的投递器
// 投递失败最终记录为 delivered=false，不阻断审批计时器
type Dispatcher struct {
	channel     Channel
	maxAttempts int
	initialWait time.Duration
}

// NewDispatcher 创建投递器
func NewDispatcher(channel Channel, maxAttempts int, initialWait time.Duration) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		channel:     channel,
		maxAttempts: maxAttempts,
		initialWait: initialWait,
	}
}

// Dispatch 投递一组审批请求，指数退避重试
func (d *Dispatcher) Dispatch(ctx context.Context, group *ApprovalGroup) *DeliveryResult {
	attempts := 0
	var result *DeliveryResult

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.initialWait

	operation := func() error {
		attempts++
		r, err := d.channel.SendApprovalRequest(ctx, group)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(d.maxAttempts-1)), ctx))
	if err != nil {
		return &DeliveryResult{
			Delivered:    false,
			ErrorMessage: fmt.Sprintf("delivery failed after %d attempts: %v", attempts, err),
			AttemptCount: attempts,
		}
	}
	result.AttemptCount = attempts
	return result
}
