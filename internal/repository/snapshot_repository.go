package repository

import (
	"context"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRepository 月度节省快照仓库
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository 创建快照仓库
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert 按 (org, tenant, month) 写入或覆盖快照
// 同月重复捕获收敛为最新值，不产生重复行
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *model.MonthlySavingsSnapshot) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "msp_org_id"}, {Name: "client_tenant_id"}, {Name: "month_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_storage_bytes", "active_storage_bytes", "stale_storage_bytes",
			"archived_storage_bytes", "achieved_monthly_savings",
			"potential_monthly_savings", "captured_at", "updated_at",
		}),
	}).Create(snapshot).Error
}

// GetByMonth 获取某租户某月快照
func (r *SnapshotRepository) GetByMonth(ctx context.Context, orgID, tenantID, monthKey string) (*model.MonthlySavingsSnapshot, error) {
	var snapshot model.MonthlySavingsSnapshot
	err := r.db.WithContext(ctx).
		Where("msp_org_id = ? AND client_tenant_id = ? AND month_key = ?", orgID, tenantID, monthKey).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListByTenant 列出租户历史快照，按月份倒序
func (r *SnapshotRepository) ListByTenant(ctx context.Context, orgID, tenantID string, limit int) ([]*model.MonthlySavingsSnapshot, error) {
	var snapshots []*model.MonthlySavingsSnapshot
	err := r.db.WithContext(ctx).
		Where("msp_org_id = ? AND client_tenant_id = ?", orgID, tenantID).
		Order("month_key DESC").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}
