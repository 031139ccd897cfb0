package model

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 文件归档状态
const (
	FileStatusActive           = "active"
	FileStatusAwaitingApproval = "awaiting_approval"
	FileStatusArchived         = "archived"
)

// StringList JSONB 字符串列表
type StringList []string

// Value 实现 driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, l)
}

// FileRecord 文档库文件记录
// 由扫描摄取写入，归档/取回流水线在终态迁移时更新状态和层级
type FileRecord struct {
	ID             string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientTenantID string     `json:"client_tenant_id" gorm:"type:varchar(36);index:idx_files_tenant;uniqueIndex:idx_files_item;not null"`
	SiteID         string     `json:"site_id" gorm:"type:varchar(100);index"`
	SiteName       string     `json:"site_name" gorm:"type:varchar(255)"`
	DriveID        string     `json:"drive_id" gorm:"type:varchar(100);uniqueIndex:idx_files_item"`
	ItemID         string     `json:"item_id" gorm:"type:varchar(100);uniqueIndex:idx_files_item"`
	Name           string     `json:"name" gorm:"type:varchar(512);not null"`
	LibraryPath    string     `json:"library_path" gorm:"type:varchar(1024)"`
	FolderPath     string     `json:"folder_path" gorm:"type:varchar(1024)"`
	SizeBytes      int64      `json:"size_bytes"`
	OwnerID        string     `json:"owner_id" gorm:"type:varchar(100)"`
	OwnerEmail     string     `json:"owner_email" gorm:"type:varchar(255);index"`
	ComplianceTags StringList `json:"compliance_tags,omitempty" gorm:"type:jsonb"`
	LastModifiedAt time.Time  `json:"last_modified_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	ArchiveStatus string     `json:"archive_status" gorm:"type:varchar(50);default:'active';index"`
	CurrentTier   *string    `json:"current_tier,omitempty" gorm:"type:varchar(50)"`
	StorageKey    string     `json:"storage_key" gorm:"type:varchar(512)"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子
func (f *FileRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (FileRecord) TableName() string {
	return "file_records"
}

// Extension 返回小写的文件扩展名（含点），无扩展名时返回空串
func (f *FileRecord) Extension() string {
	idx := strings.LastIndex(f.Name, ".")
	if idx < 0 || idx == len(f.Name)-1 {
		return ""
	}
	return strings.ToLower(f.Name[idx:])
}

// StaleSince 返回判定不活跃的基准时间：优先最后访问时间，缺失时回退最后修改时间
func (f *FileRecord) StaleSince() time.Time {
	if f.LastAccessedAt != nil {
		return *f.LastAccessedAt
	}
	return f.LastModifiedAt
}
