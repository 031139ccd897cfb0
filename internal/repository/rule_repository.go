package repository

import (
	"context"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
)

// RuleRepository 归档规则仓库
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建归档规则仓库
func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create 创建规则
func (r *RuleRepository) Create(ctx context.Context, rule *model.ArchiveRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID 根据 ID 获取规则
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*model.ArchiveRule, error) {
	var rule model.ArchiveRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListByTenant 列出租户全部规则
func (r *RuleRepository) ListByTenant(ctx context.Context, tenantID string) ([]*model.ArchiveRule, error) {
	var rules []*model.ArchiveRule
	err := r.db.WithContext(ctx).
		Where("client_tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

// ListActiveByTenant 列出租户生效规则，按创建时间升序
// 升序是评估器决胜的基础：先建先用
func (r *RuleRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]*model.ArchiveRule, error) {
	var rules []*model.ArchiveRule
	err := r.db.WithContext(ctx).
		Where("client_tenant_id = ? AND is_active = ?", tenantID, true).
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

// Update 更新规则
func (r *RuleRepository) Update(ctx context.Context, rule *model.ArchiveRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Delete 删除规则（软删除）
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.ArchiveRule{}, "id = ?", id).Error
}
