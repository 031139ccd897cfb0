package model

import (
	"time"
)

// 取回操作状态
const (
	RetrievalStatusPending     = "pending"
	RetrievalStatusRehydrating = "rehydrating"
	RetrievalStatusRetrieving  = "retrieving"
	RetrievalStatusCompleted   = "completed"
	RetrievalStatusFailed      = "failed"
)

// retrievalTransitions 取回状态机合法迁移表
var retrievalTransitions = map[string][]string{
	RetrievalStatusPending:     {RetrievalStatusRehydrating, RetrievalStatusRetrieving, RetrievalStatusFailed},
	RetrievalStatusRehydrating: {RetrievalStatusRetrieving, RetrievalStatusFailed},
	RetrievalStatusRetrieving:  {RetrievalStatusCompleted, RetrievalStatusFailed},
}

// CanTransitionRetrieval 判断取回状态迁移是否合法
func CanTransitionRetrieval(from, to string) bool {
	for _, next := range retrievalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalRetrievalStatus 判断取回状态是否为终态
func IsTerminalRetrievalStatus(status string) bool {
	return status == RetrievalStatusCompleted || status == RetrievalStatusFailed
}

// RetrievalOperation 一次文件取回的跟踪记录，与归档操作同构
// 冷层对象取回前经过 Rehydrating 等待解冻
type RetrievalOperation struct {
	ID             string `json:"id" gorm:"type:varchar(36);primaryKey"`
	MspOrgID       string `json:"msp_org_id" gorm:"type:varchar(36);index"`
	ClientTenantID string `json:"client_tenant_id" gorm:"type:varchar(36);index;not null"`
	FileID         string `json:"file_id" gorm:"type:varchar(36);index;not null"`
	Cycle          int    `json:"cycle" gorm:"default:1"`

	Status      string `json:"status" gorm:"type:varchar(50);default:'pending';index"`
	RequestedBy string `json:"requested_by" gorm:"type:varchar(255)"`

	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (RetrievalOperation) TableName() string {
	return "retrieval_operations"
}

// IsTerminal 是否已处于终态
func (o *RetrievalOperation) IsTerminal() bool {
	return IsTerminalRetrievalStatus(o.Status)
}
