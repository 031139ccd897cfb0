// Package audit 提供合规审计落盘
// 每次状态迁移后调用，失败只记日志不反向传播
package audit

import (
	"context"
	"log"

	"github.com/mspkit/tierkeep/internal/model"
)

// Store 审计存储接口
type Store interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
}

// Service 审计服务
type Service struct {
	store Store
}

// NewService 创建审计服务
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Log 写入审计条目，发后即忘
func (s *Service) Log(ctx context.Context, orgID, tenantID, actor, action, correlationID string, details model.AuditDetails) {
	if s == nil || s.store == nil {
		return
	}
	entry := &model.AuditEntry{
		MspOrgID:       orgID,
		ClientTenantID: tenantID,
		Actor:          actor,
		Action:         action,
		Details:        details,
		CorrelationID:  correlationID,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		log.Printf("audit write failed: action=%s correlation=%s err=%v", action, correlationID, err)
	}
}
