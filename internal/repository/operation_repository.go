package repository

import (
	"context"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OperationRepository 归档操作仓库
// 状态迁移一律走带前置状态检查的受控更新，保证并发竞争下只有一方生效
type OperationRepository struct {
	db *gorm.DB
}

// NewOperationRepository 创建归档操作仓库
func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// CreateIfAbsent 幂等创建：同 ID 已存在时不重复插入，返回是否新建
func (r *OperationRepository) CreateIfAbsent(ctx context.Context, op *model.ArchiveOperation) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(op)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取操作
func (r *OperationRepository) GetByID(ctx context.Context, id string) (*model.ArchiveOperation, error) {
	var op model.ArchiveOperation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetLatestByFile 获取文件最近一个逻辑周期的操作
func (r *OperationRepository) GetLatestByFile(ctx context.Context, fileID string) (*model.ArchiveOperation, error) {
	var op model.ArchiveOperation
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("cycle DESC").
		First(&op).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListByTenant 列出租户操作，可按状态过滤
func (r *OperationRepository) ListByTenant(ctx context.Context, tenantID string, status string, offset, limit int) ([]*model.ArchiveOperation, int64, error) {
	var ops []*model.ArchiveOperation
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ArchiveOperation{}).Where("client_tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&ops).Error
	return ops, total, err
}

// ListPendingBySites 列出租户指定站点下所有待处理操作
func (r *OperationRepository) ListPendingBySites(ctx context.Context, tenantID string, siteIDs []string) ([]*model.ArchiveOperation, error) {
	var ops []*model.ArchiveOperation
	err := r.db.WithContext(ctx).
		Where("client_tenant_id = ? AND status = ? AND site_id IN ?", tenantID, model.OpStatusPending, siteIDs).
		Find(&ops).Error
	return ops, err
}

// ListAwaitingBefore 列出某租户在给定时刻前进入等待审批的操作
// 自动审批计时器到期扫描使用，租户设置在到期时重新读取
func (r *OperationRepository) ListAwaitingBefore(ctx context.Context, tenantID string, before time.Time) ([]*model.ArchiveOperation, error) {
	var ops []*model.ArchiveOperation
	err := r.db.WithContext(ctx).
		Where("client_tenant_id = ? AND status = ? AND awaiting_since <= ?",
			tenantID, model.OpStatusAwaitingApproval, before).
		Find(&ops).Error
	return ops, err
}

// ListByStatus 列出全部租户中处于某状态的操作
func (r *OperationRepository) ListByStatus(ctx context.Context, status string) ([]*model.ArchiveOperation, error) {
	var ops []*model.ArchiveOperation
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&ops).Error
	return ops, err
}

// UpdateStatus 比较并交换式状态迁移
// 仅当当前状态等于 from 时更新为 to 并应用附加字段；竞争失败返回 false
func (r *OperationRepository) UpdateStatus(ctx context.Context, id, from, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&model.ArchiveOperation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// SetConversation 记录一批操作关联的出站通知会话
func (r *OperationRepository) SetConversation(ctx context.Context, ids []string, conversationID string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.ArchiveOperation{}).
		Where("id IN ?", ids).
		Update("conversation_id", conversationID).Error
}

// BatchSetAwaiting 将租户若干站点下的 Pending 操作批量迁移为等待审批
// 单条受控 UPDATE，保证租户内原子性
func (r *OperationRepository) BatchSetAwaiting(ctx context.Context, tenantID string, siteIDs []string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.ArchiveOperation{}).
		Where("client_tenant_id = ? AND status = ? AND site_id IN ?", tenantID, model.OpStatusPending, siteIDs).
		Updates(map[string]interface{}{
			"status":         model.OpStatusAwaitingApproval,
			"awaiting_since": at,
		})
	return result.RowsAffected, result.Error
}
