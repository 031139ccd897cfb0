package repository

import (
	"context"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
)

// ScanRepository 扫描运行仓库
type ScanRepository struct {
	db *gorm.DB
}

// NewScanRepository 创建扫描运行仓库
func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create 创建扫描运行记录
func (r *ScanRepository) Create(ctx context.Context, run *model.ScanRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetActiveByWorkflowKey 获取工作流键下未结束的运行实例
// 存在即说明同租户扫描尚在进行，调度应跳过
func (r *ScanRepository) GetActiveByWorkflowKey(ctx context.Context, workflowKey string) (*model.ScanRun, error) {
	var run model.ScanRun
	err := r.db.WithContext(ctx).
		Where("workflow_key = ? AND status IN ?", workflowKey,
			[]string{model.ScanStatusPending, model.ScanStatusRunning}).
		First(&run).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Finish 结束扫描运行并记录统计
func (r *ScanRepository) Finish(ctx context.Context, id, status string, run *model.ScanRun) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.ScanRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"files_scanned":  run.FilesScanned,
			"files_matched":  run.FilesMatched,
			"files_excluded": run.FilesExcluded,
			"error_message":  run.ErrorMessage,
			"finished_at":    now,
		}).Error
}

// ListByTenant 列出租户扫描历史
func (r *ScanRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*model.ScanRun, error) {
	var runs []*model.ScanRun
	err := r.db.WithContext(ctx).
		Where("client_tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
