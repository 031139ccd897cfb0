package repository

import (
	"context"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileRepository 文件记录仓库
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建文件记录仓库
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Upsert 按 (tenant, drive, item) 写入或更新扫描摄取的文件元数据
// 归档状态和层级由流水线维护，摄取不覆盖
func (r *FileRepository) Upsert(ctx context.Context, file *model.FileRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "client_tenant_id"}, {Name: "drive_id"}, {Name: "item_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"site_id", "site_name", "name", "library_path", "folder_path",
			"size_bytes", "owner_id", "owner_email", "compliance_tags",
			"last_modified_at", "last_accessed_at", "updated_at",
		}),
	}).Create(file).Error
}

// GetByID 根据 ID 获取文件
func (r *FileRepository) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	var file model.FileRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByTenant 列出租户文件，可按归档状态过滤
func (r *FileRepository) ListByTenant(ctx context.Context, tenantID string, status string) ([]*model.FileRecord, error) {
	var files []*model.FileRecord
	query := r.db.WithContext(ctx).Where("client_tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("archive_status = ?", status)
	}
	err := query.Order("created_at ASC").Find(&files).Error
	return files, err
}

// SetArchiveStatus 带前置状态检查的文件状态迁移
// 前置状态不匹配时不更新，返回 false
func (r *FileRepository) SetArchiveStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND archive_status = ?", id, fromStatus).
		Update("archive_status", toStatus)
	return result.RowsAffected > 0, result.Error
}

// MarkArchived 在归档流水线成功后落档文件状态和层级
func (r *FileRepository) MarkArchived(ctx context.Context, id, tier, storageKey string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archive_status": model.FileStatusArchived,
			"current_tier":   tier,
			"storage_key":    storageKey,
			"archived_at":    at,
		}).Error
}

// MarkRestored 在取回流水线成功后恢复文件状态
func (r *FileRepository) MarkRestored(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archive_status": model.FileStatusActive,
			"current_tier":   nil,
			"storage_key":    "",
			"archived_at":    nil,
		}).Error
}

// StorageTotals 按租户聚合存储量
type StorageTotals struct {
	TotalBytes    int64
	ActiveBytes   int64
	ArchivedBytes int64
}

// TotalsByTenant 统计租户的存储总量
func (r *FileRepository) TotalsByTenant(ctx context.Context, tenantID string) (*StorageTotals, error) {
	var totals StorageTotals
	err := r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("client_tenant_id = ?", tenantID).
		Select(
			"COALESCE(SUM(size_bytes), 0) AS total_bytes, " +
				"COALESCE(SUM(CASE WHEN archive_status <> 'archived' THEN size_bytes ELSE 0 END), 0) AS active_bytes, " +
				"COALESCE(SUM(CASE WHEN archive_status = 'archived' THEN size_bytes ELSE 0 END), 0) AS archived_bytes",
		).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// TierBytes 按层级聚合的归档字节数
type TierBytes struct {
	Tier  string
	Bytes int64
}

// ArchivedBytesByTier 统计租户各层级的归档字节数
func (r *FileRepository) ArchivedBytesByTier(ctx context.Context, tenantID string) (map[string]int64, error) {
	var rows []TierBytes
	err := r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("client_tenant_id = ? AND archive_status = ?", tenantID, model.FileStatusArchived).
		Select("current_tier AS tier, COALESCE(SUM(size_bytes), 0) AS bytes").
		Group("current_tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	byTier := make(map[string]int64, len(rows))
	for _, row := range rows {
		byTier[row.Tier] = row.Bytes
	}
	return byTier, nil
}

// StaleBytesByTenant 统计早于给定基准时间未动的活跃文件字节数
func (r *FileRepository) StaleBytesByTenant(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	var stale int64
	err := r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("client_tenant_id = ? AND archive_status <> ?", tenantID, model.FileStatusArchived).
		Where("COALESCE(last_accessed_at, last_modified_at) < ?", before).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&stale).Error
	return stale, err
}
