package repository

import (
	"context"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
)

// TenantRepository 租户仓库
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建租户仓库
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create 创建租户
func (r *TenantRepository) Create(ctx context.Context, tenant *model.ClientTenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

// GetByID 根据 ID 获取租户
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*model.ClientTenant, error) {
	var tenant model.ClientTenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListByOrg 列出组织下的租户
func (r *TenantRepository) ListByOrg(ctx context.Context, orgID string) ([]*model.ClientTenant, error) {
	var tenants []*model.ClientTenant
	err := r.db.WithContext(ctx).Where("msp_org_id = ?", orgID).Order("created_at ASC").Find(&tenants).Error
	return tenants, err
}

// ListConnected 列出所有已连接租户
func (r *TenantRepository) ListConnected(ctx context.Context) ([]*model.ClientTenant, error) {
	var tenants []*model.ClientTenant
	err := r.db.WithContext(ctx).Where("status = ?", model.TenantStatusConnected).Find(&tenants).Error
	return tenants, err
}

// Update 更新租户
func (r *TenantRepository) Update(ctx context.Context, tenant *model.ClientTenant) error {
	return r.db.WithContext(ctx).Save(tenant).Error
}

// UpdateLastScanAt 记录最近一次扫描时间
func (r *TenantRepository) UpdateLastScanAt(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ClientTenant{}).
		Where("id = ?", id).Update("last_scan_at", at).Error
}

// Delete 删除租户（软删除）
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.ClientTenant{}, "id = ?", id).Error
}
