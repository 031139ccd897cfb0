package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 规则类型
const (
	RuleTypeAge       = "age"
	RuleTypeSize      = "size"
	RuleTypeFileType  = "type"
	RuleTypeOwner     = "owner"
	RuleTypeExclusion = "exclusion"
)

// 存储层级
const (
	TierHot     = "hot"
	TierCool    = "cool"
	TierCold    = "cold"
	TierArchive = "archive"
)

// ValidTiers 归档目标允许的层级（hot 不是归档目标）
var ValidTiers = []string{TierCool, TierCold, TierArchive}

// TierRequiresRehydration 判断层级取回前是否需要解冻
func TierRequiresRehydration(tier string) bool {
	return tier == TierCold || tier == TierArchive
}

// RuleCriteria 规则条件，形态依 RuleType 而定
// age: InactiveDays；size: Min/MaxSizeBytes；type: FileTypes；owner: Owner
// exclusion: LibraryPath/FolderPath/FileTypes/ComplianceTags 任意组合
type RuleCriteria struct {
	InactiveDays   *int     `json:"inactiveDays,omitempty"`
	MinSizeBytes   *int64   `json:"minSizeBytes,omitempty"`
	MaxSizeBytes   *int64   `json:"maxSizeBytes,omitempty"`
	FileTypes      []string `json:"fileTypes,omitempty"`
	Owner          *string  `json:"owner,omitempty"`
	LibraryPath    *string  `json:"libraryPath,omitempty"`
	FolderPath     *string  `json:"folderPath,omitempty"`
	ComplianceTags []string `json:"complianceTags,omitempty"`
}

// Value 实现 driver.Valuer
func (c *RuleCriteria) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan 实现 sql.Scanner
func (c *RuleCriteria) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, c)
}

// Validate 按规则类型校验条件形态，入库前必须通过
func (c *RuleCriteria) Validate(ruleType string) error {
	if c == nil {
		return fmt.Errorf("criteria is required")
	}
	switch ruleType {
	case RuleTypeAge:
		if c.InactiveDays == nil {
			return fmt.Errorf("age rule requires inactiveDays")
		}
		if *c.InactiveDays < 1 {
			return fmt.Errorf("inactiveDays must be at least 1, got %d", *c.InactiveDays)
		}
	case RuleTypeSize:
		if c.MinSizeBytes == nil && c.MaxSizeBytes == nil {
			return fmt.Errorf("size rule requires minSizeBytes or maxSizeBytes")
		}
		if c.MinSizeBytes != nil && *c.MinSizeBytes < 0 {
			return fmt.Errorf("minSizeBytes must not be negative")
		}
		if c.MinSizeBytes != nil && c.MaxSizeBytes != nil && *c.MaxSizeBytes < *c.MinSizeBytes {
			return fmt.Errorf("maxSizeBytes must not be less than minSizeBytes")
		}
	case RuleTypeFileType:
		if len(c.FileTypes) == 0 {
			return fmt.Errorf("type rule requires fileTypes")
		}
		for _, ft := range c.FileTypes {
			if !strings.HasPrefix(ft, ".") {
				return fmt.Errorf("file type %q must start with a dot", ft)
			}
		}
	case RuleTypeOwner:
		if c.Owner == nil || *c.Owner == "" {
			return fmt.Errorf("owner rule requires owner")
		}
	case RuleTypeExclusion:
		if c.LibraryPath == nil && c.FolderPath == nil && len(c.FileTypes) == 0 && len(c.ComplianceTags) == 0 {
			return fmt.Errorf("exclusion rule requires at least one of libraryPath, folderPath, fileTypes, complianceTags")
		}
	default:
		return fmt.Errorf("unknown rule type: %s", ruleType)
	}
	return nil
}

// ArchiveRule 归档规则，租户级；排除规则优先于归档规则
type ArchiveRule struct {
	ID             string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientTenantID string        `json:"client_tenant_id" gorm:"type:varchar(36);index;not null"`
	Name           string        `json:"name" gorm:"type:varchar(255);not null"`
	RuleType       string        `json:"rule_type" gorm:"type:varchar(50);not null"`
	Criteria       *RuleCriteria `json:"criteria" gorm:"type:jsonb"`
	TargetTier     string        `json:"target_tier" gorm:"type:varchar(50)"` // 排除规则忽略
	IsActive       bool          `json:"is_active" gorm:"default:true"`
	CreatedBy      string        `json:"created_by" gorm:"type:varchar(36)"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate GORM 钩子
func (r *ArchiveRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (ArchiveRule) TableName() string {
	return "archive_rules"
}

// IsExclusion 是否排除规则
func (r *ArchiveRule) IsExclusion() bool {
	return r.RuleType == RuleTypeExclusion
}

// Validate 校验规则整体合法性
func (r *ArchiveRule) Validate() error {
	if r.ClientTenantID == "" {
		return fmt.Errorf("client tenant id is required")
	}
	if err := r.Criteria.Validate(r.RuleType); err != nil {
		return err
	}
	if r.IsExclusion() {
		return nil
	}
	for _, t := range ValidTiers {
		if r.TargetTier == t {
			return nil
		}
	}
	return fmt.Errorf("unsupported target tier: %s", r.TargetTier)
}
