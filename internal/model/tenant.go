// Package model 提供归档引擎相关的数据模型
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 租户连接状态
const (
	TenantStatusConnected    = "connected"
	TenantStatusDisconnected = "disconnected"
	TenantStatusSuspended    = "suspended"
)

// ClientTenant 客户租户
// AutoApprovalDays 三态：nil 表示永不自动审批，0 表示立即审批，1-365 表示等待天数
type ClientTenant struct {
	ID               string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	MspOrgID         string     `json:"msp_org_id" gorm:"type:varchar(36);index;not null"`
	Name             string     `json:"name" gorm:"type:varchar(255);not null"`
	Domain           string     `json:"domain" gorm:"type:varchar(255)"`
	Status           string     `json:"status" gorm:"type:varchar(50);default:'disconnected'"`
	Timezone         string     `json:"timezone" gorm:"type:varchar(100);default:'UTC'"`
	AutoApprovalDays *int       `json:"auto_approval_days,omitempty"`
	LastScanAt       *time.Time `json:"last_scan_at,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate GORM 钩子
func (t *ClientTenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (ClientTenant) TableName() string {
	return "client_tenants"
}

// Location 解析租户时区，解析失败时回退 UTC
func (t *ClientTenant) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
