package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 归档操作状态
const (
	OpStatusPending          = "pending"
	OpStatusAwaitingApproval = "awaiting_approval"
	OpStatusApproved         = "approved"
	OpStatusArchiving        = "archiving"
	OpStatusArchived         = "archived"
	OpStatusVetoed           = "vetoed"
	OpStatusVetoAccepted     = "veto_accepted"
	OpStatusVetoOverridden   = "veto_overridden"
	OpStatusExcluded         = "excluded"
	OpStatusFailed           = "failed"
)

// 操作动作，参与幂等键派生
const (
	ActionArchive  = "archive"
	ActionRetrieve = "retrieve"
)

// operationNamespace 幂等操作 ID 的 UUIDv5 命名空间
var operationNamespace = uuid.MustParse("7b1c9a52-30e4-4f8e-9d1a-6f2b4c8e0a3d")

// OperationID 从文件身份、动作和逻辑周期派生确定性操作 ID
// 同一逻辑操作重复提交得到同一 ID，由唯一索引保证不重复执行
func OperationID(tenantID, driveID, itemID, action string, cycle int) string {
	name := fmt.Sprintf("%s|%s|%s|%s|%d", tenantID, driveID, itemID, action, cycle)
	return uuid.NewSHA1(operationNamespace, []byte(name)).String()
}

// archiveTransitions 归档状态机合法迁移表，终态不出现在键中
var archiveTransitions = map[string][]string{
	OpStatusPending:          {OpStatusAwaitingApproval, OpStatusApproved, OpStatusVetoed, OpStatusFailed},
	OpStatusAwaitingApproval: {OpStatusApproved, OpStatusVetoed, OpStatusFailed},
	OpStatusApproved:         {OpStatusArchiving, OpStatusVetoed, OpStatusFailed},
	OpStatusArchiving:        {OpStatusArchived, OpStatusFailed},
	OpStatusVetoed:           {OpStatusVetoAccepted, OpStatusVetoOverridden, OpStatusExcluded},
}

// CanTransition 判断归档操作状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, next := range archiveTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus 判断归档操作状态是否为终态
func IsTerminalStatus(status string) bool {
	switch status {
	case OpStatusArchived, OpStatusFailed, OpStatusVetoAccepted, OpStatusVetoOverridden, OpStatusExcluded:
		return true
	}
	return false
}

// ArchiveOperation 一次文件归档的跟踪记录，同时是审计痕迹，永不删除
// 不变量：ID 由文件身份确定性派生；状态只能沿迁移表前进；
// ApprovedBy 与 VetoedBy 至多设置其一；Failed 不设置 CompletedAt
type ArchiveOperation struct {
	ID             string `json:"id" gorm:"type:varchar(36);primaryKey"`
	MspOrgID       string `json:"msp_org_id" gorm:"type:varchar(36);index"`
	ClientTenantID string `json:"client_tenant_id" gorm:"type:varchar(36);index;not null"`
	FileID         string `json:"file_id" gorm:"type:varchar(36);index;not null"`
	SiteID         string `json:"site_id" gorm:"type:varchar(100);index"`
	Cycle          int    `json:"cycle" gorm:"default:1"`

	Status        string `json:"status" gorm:"type:varchar(50);default:'pending';index"`
	TargetTier    string `json:"target_tier" gorm:"type:varchar(50)"`
	MatchedRuleID string `json:"matched_rule_id" gorm:"type:varchar(36)"`

	AwaitingSince  *time.Time `json:"awaiting_since,omitempty"`
	ApprovedBy     *string    `json:"approved_by,omitempty" gorm:"type:varchar(255)"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	VetoedBy       *string    `json:"vetoed_by,omitempty" gorm:"type:varchar(255)"`
	VetoReason     *string    `json:"veto_reason,omitempty" gorm:"type:text"`
	VetoedAt       *time.Time `json:"vetoed_at,omitempty"`
	ConversationID *string    `json:"conversation_id,omitempty" gorm:"type:varchar(255)"`

	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ArchiveOperation) TableName() string {
	return "archive_operations"
}

// IsTerminal 是否已处于终态
func (o *ArchiveOperation) IsTerminal() bool {
	return IsTerminalStatus(o.Status)
}
