package repository

import (
	"context"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RetrievalRepository 取回操作仓库
type RetrievalRepository struct {
	db *gorm.DB
}

// NewRetrievalRepository 创建取回操作仓库
func NewRetrievalRepository(db *gorm.DB) *RetrievalRepository {
	return &RetrievalRepository{db: db}
}

// CreateIfAbsent 幂等创建取回操作
func (r *RetrievalRepository) CreateIfAbsent(ctx context.Context, op *model.RetrievalOperation) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(op)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取取回操作
func (r *RetrievalRepository) GetByID(ctx context.Context, id string) (*model.RetrievalOperation, error) {
	var op model.RetrievalOperation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetLatestByFile 获取文件最近一个取回周期
func (r *RetrievalRepository) GetLatestByFile(ctx context.Context, fileID string) (*model.RetrievalOperation, error) {
	var op model.RetrievalOperation
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

// ListByStatus 列出处于某状态的取回操作
func (r *RetrievalRepository) ListByStatus(ctx context.Context, status string) ([]*model.RetrievalOperation, error) {
	var ops []*model.RetrievalOperation
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&ops).Error
	return ops, err
}

// ListByTenant 列出租户取回操作
func (r *RetrievalRepository) ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]*model.RetrievalOperation, int64, error) {
	var ops []*model.RetrievalOperation
	var total int64

	query := r.db.WithContext(ctx).Model(&model.RetrievalOperation{}).Where("client_tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&ops).Error
	return ops, total, err
}

// UpdateStatus 比较并交换式状态迁移，竞争失败返回 false
func (r *RetrievalRepository) UpdateStatus(ctx context.Context, id, from, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&model.RetrievalOperation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}
