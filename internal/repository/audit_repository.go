package repository

import (
	"context"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
)

// AuditRepository 审计仓库
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计仓库
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create 写入审计条目
func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByCorrelation 按关联 ID 查询审计链
func (r *AuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*model.AuditEntry, error) {
	var entries []*model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListByTenant 列出租户审计条目
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]*model.AuditEntry, error) {
	var entries []*model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("client_tenant_id = ?", tenantID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	return entries, err
}
