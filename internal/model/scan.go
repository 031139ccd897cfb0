package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 扫描运行状态
const (
	ScanStatusPending   = "pending"
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
)

// ScanWorkflowKey 从租户身份派生确定性扫描工作流键，用于并发去重
func ScanWorkflowKey(tenantID string) string {
	return "scan-" + tenantID
}

// ScanRun 一次租户扫描工作流实例
// WorkflowKey 确定性派生自租户，配合运行中唯一性检查避免同租户双扫描
type ScanRun struct {
	ID             string `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientTenantID string `json:"client_tenant_id" gorm:"type:varchar(36);index;not null"`
	WorkflowKey    string `json:"workflow_key" gorm:"type:varchar(100);index;not null"`
	Status         string `json:"status" gorm:"type:varchar(50);default:'pending';index"`

	FilesScanned  int `json:"files_scanned"`
	FilesMatched  int `json:"files_matched"`
	FilesExcluded int `json:"files_excluded"`

	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子
func (s *ScanRun) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (ScanRun) TableName() string {
	return "scan_runs"
}
