package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MonthlySavingsSnapshot 月度节省快照
// (org, tenant, month) 三元组唯一；重复捕获收敛为最新值而非累加
// ClientTenantID 为空串表示组织级汇总行
type MonthlySavingsSnapshot struct {
	ID             string `json:"id" gorm:"type:varchar(36);primaryKey"`
	MspOrgID       string `json:"msp_org_id" gorm:"type:varchar(36);uniqueIndex:idx_snapshot_month;not null"`
	ClientTenantID string `json:"client_tenant_id" gorm:"type:varchar(36);uniqueIndex:idx_snapshot_month;default:''"`
	MonthKey       string `json:"month_key" gorm:"type:varchar(7);uniqueIndex:idx_snapshot_month;not null"` // YYYY-MM

	TotalStorageBytes    int64 `json:"total_storage_bytes"`
	ActiveStorageBytes   int64 `json:"active_storage_bytes"`
	StaleStorageBytes    int64 `json:"stale_storage_bytes"`
	ArchivedStorageBytes int64 `json:"archived_storage_bytes"`

	AchievedMonthlySavings  float64 `json:"achieved_monthly_savings"`
	PotentialMonthlySavings float64 `json:"potential_monthly_savings"`

	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子
func (s *MonthlySavingsSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (MonthlySavingsSnapshot) TableName() string {
	return "monthly_savings_snapshots"
}

// MonthKeyFor 生成月份键
func MonthKeyFor(t time.Time) string {
	return t.Format("2006-01")
}
