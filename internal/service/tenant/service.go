// Package tenant 提供客户租户管理服务
package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/repository"
)

// Service 租户服务
type Service struct {
	repo *repository.Repositories
	cfg  config.ApprovalConfig
}

// NewService 创建租户服务
func NewService(repo *repository.Repositories, cfg config.ApprovalConfig) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// CreateRequest 创建租户请求
type CreateRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Domain   string `json:"domain"`
	Timezone string `json:"timezone"`
}

// SettingsRequest 租户设置更新请求
// AutoApprovalDays 缺省（null）表示永不自动审批
type SettingsRequest struct {
	Timezone          *string `json:"timezone,omitempty"`
	AutoApprovalDays  *int    `json:"auto_approval_days,omitempty"`
	ClearAutoApproval bool    `json:"clear_auto_approval,omitempty"`
}

// Create 创建租户，初始为未连接状态
func (s *Service) Create(ctx context.Context, orgID string, req *CreateRequest) (*model.ClientTenant, error) {
	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone: %s", timezone)
	}

	tenant := &model.ClientTenant{
		MspOrgID: orgID,
		Name:     req.Name,
		Domain:   req.Domain,
		Status:   model.TenantStatusDisconnected,
		Timezone: timezone,
	}
	if err := s.repo.Tenant.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// Get 获取租户，校验组织归属
func (s *Service) Get(ctx context.Context, orgID, id string) (*model.ClientTenant, error) {
	tenant, err := s.repo.Tenant.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	if tenant.MspOrgID != orgID {
		return nil, fmt.Errorf("tenant %s does not belong to organization", id)
	}
	return tenant, nil
}

// List 列出组织下的租户
func (s *Service) List(ctx context.Context, orgID string) ([]*model.ClientTenant, error) {
	return s.repo.Tenant.ListByOrg(ctx, orgID)
}

// UpdateSettings 更新租户设置
// 自动审批天数在 0 到配置上限之间；修改对在途等待的操作即时生效
func (s *Service) UpdateSettings(ctx context.Context, orgID, id string, req *SettingsRequest) (*model.ClientTenant, error) {
	tenant, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone: %s", *req.Timezone)
		}
		tenant.Timezone = *req.Timezone
	}

	if req.ClearAutoApproval {
		tenant.AutoApprovalDays = nil
	} else if req.AutoApprovalDays != nil {
		days := *req.AutoApprovalDays
		if days < 0 || days > s.cfg.MaxAutoApprovalDays {
			return nil, fmt.Errorf("auto approval days must be between 0 and %d", s.cfg.MaxAutoApprovalDays)
		}
		tenant.AutoApprovalDays = &days
	}

	if err := s.repo.Tenant.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

// SetStatus 更新租户连接状态
func (s *Service) SetStatus(ctx context.Context, orgID, id, status string) (*model.ClientTenant, error) {
	switch status {
	case model.TenantStatusConnected, model.TenantStatusDisconnected, model.TenantStatusSuspended:
	default:
		return nil, fmt.Errorf("invalid tenant status: %s", status)
	}

	tenant, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	tenant.Status = status
	if err := s.repo.Tenant.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

// Delete 删除租户（软删除）
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return err
	}
	return s.repo.Tenant.Delete(ctx, id)
}
