package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditDetails 审计附加信息（JSONB）
type AuditDetails map[string]interface{}

// Value 实现 driver.Valuer
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan 实现 sql.Scanner
func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, d)
}

// AuditEntry 合规审计条目，每次状态迁移后写入
type AuditEntry struct {
	ID             string       `json:"id" gorm:"type:varchar(36);primaryKey"`
	MspOrgID       string       `json:"msp_org_id" gorm:"type:varchar(36);index"`
	ClientTenantID string       `json:"client_tenant_id" gorm:"type:varchar(36);index"`
	Actor          string       `json:"actor" gorm:"type:varchar(255);not null"`
	Action         string       `json:"action" gorm:"type:varchar(100);not null;index"`
	Details        AuditDetails `json:"details,omitempty" gorm:"type:jsonb"`
	CorrelationID  string       `json:"correlation_id" gorm:"type:varchar(100);index"`
	CreatedAt      time.Time    `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate GORM 钩子
func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (AuditEntry) TableName() string {
	return "audit_entries"
}
