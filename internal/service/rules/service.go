package rules

import (
	"context"
	"fmt"

	"github.com/mspkit/tierkeep/internal/model"
)

// Store 规则存储接口
type Store interface {
	Create(ctx context.Context, rule *model.ArchiveRule) error
	GetByID(ctx context.Context, id string) (*model.ArchiveRule, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*model.ArchiveRule, error)
	Update(ctx context.Context, rule *model.ArchiveRule) error
	Delete(ctx context.Context, id string) error
}

// Service 规则管理服务
type Service struct {
	store Store
}

// NewService 创建规则管理服务
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateRequest 创建规则请求
type CreateRequest struct {
	Name       string              `json:"name" binding:"required,max=255"`
	RuleType   string              `json:"rule_type" binding:"required"`
	Criteria   *model.RuleCriteria `json:"criteria" binding:"required"`
	TargetTier string              `json:"target_tier"`
	IsActive   *bool               `json:"is_active"`
}

// UpdateRequest 更新规则请求，缺省字段保持不变
type UpdateRequest struct {
	Name       *string             `json:"name,omitempty"`
	Criteria   *model.RuleCriteria `json:"criteria,omitempty"`
	TargetTier *string             `json:"target_tier,omitempty"`
	IsActive   *bool               `json:"is_active,omitempty"`
}

// Create 创建规则
func (s *Service) Create(ctx context.Context, tenantID, actor string, req *CreateRequest) (*model.ArchiveRule, error) {
	rule := &model.ArchiveRule{
		ClientTenantID: tenantID,
		Name:           req.Name,
		RuleType:       req.RuleType,
		Criteria:       req.Criteria,
		TargetTier:     req.TargetTier,
		IsActive:       true,
		CreatedBy:      actor,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return rule, nil
}

// Get 获取规则，校验租户归属
func (s *Service) Get(ctx context.Context, tenantID, id string) (*model.ArchiveRule, error) {
	rule, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	if rule.ClientTenantID != tenantID {
		return nil, fmt.Errorf("rule %s does not belong to tenant %s", id, tenantID)
	}
	return rule, nil
}

// List 列出租户规则
func (s *Service) List(ctx context.Context, tenantID string) ([]*model.ArchiveRule, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// Update 更新规则，规则类型创建后不可变
func (s *Service) Update(ctx context.Context, tenantID, id string, req *UpdateRequest) (*model.ArchiveRule, error) {
	rule, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Criteria != nil {
		rule.Criteria = req.Criteria
	}
	if req.TargetTier != nil {
		rule.TargetTier = *req.TargetTier
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

// Delete 删除规则
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
