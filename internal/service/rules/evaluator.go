// Package rules 提供归档规则评估引擎
// 评估是纯函数：不做 I/O，可并发重复调用，用于扫描与试算预览
package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
)

// 规则决胜顺序
const (
	PriorityCreatedAsc = "created_asc"
)

// Result 单文件评估结果
// 排除命中时归档规则一律不参与；归档规则命中至多记录一条
type Result struct {
	IsExcluded             bool   `json:"is_excluded"`
	MatchedExclusionRuleID string `json:"matched_exclusion_rule_id,omitempty"`
	MatchedArchiveRuleID   string `json:"matched_archive_rule_id,omitempty"`
	TargetTier             string `json:"target_tier,omitempty"`
}

// Evaluator 规则评估器
type Evaluator struct {
	priority string
}

// NewEvaluator 创建规则评估器
// priority 指定多条归档规则同时命中时的决胜顺序，当前支持 created_asc
func NewEvaluator(priority string) *Evaluator {
	if priority == "" {
		priority = PriorityCreatedAsc
	}
	return &Evaluator{priority: priority}
}

// Evaluate 评估单个文件
// 排除规则先于归档规则并具有严格优先级；调用方保证已归档文件不会进入评估
func (e *Evaluator) Evaluate(file *model.FileRecord, activeRules []*model.ArchiveRule, now time.Time) *Result {
	exclusions, archives := splitAndSort(activeRules)

	for _, rule := range exclusions {
		if matchExclusion(rule.Criteria, file) {
			return &Result{
				IsExcluded:             true,
				MatchedExclusionRuleID: rule.ID,
			}
		}
	}

	for _, rule := range archives {
		if matchArchive(rule, file, now) {
			return &Result{
				MatchedArchiveRuleID: rule.ID,
				TargetTier:           rule.TargetTier,
			}
		}
	}

	return &Result{}
}

// splitAndSort 拆分排除/归档规则并按创建时间升序排列
// 显式排序而非依赖入参顺序，同刻创建时以 ID 决胜，保证完全确定性
func splitAndSort(activeRules []*model.ArchiveRule) (exclusions, archives []*model.ArchiveRule) {
	for _, rule := range activeRules {
		if !rule.IsActive {
			continue
		}
		if rule.IsExclusion() {
			exclusions = append(exclusions, rule)
		} else {
			archives = append(archives, rule)
		}
	}
	byCreation := func(rules []*model.ArchiveRule) func(i, j int) bool {
		return func(i, j int) bool {
			if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
				return rules[i].ID < rules[j].ID
			}
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
	}
	sort.SliceStable(exclusions, byCreation(exclusions))
	sort.SliceStable(archives, byCreation(archives))
	return exclusions, archives
}

// matchArchive 归档规则匹配判定
func matchArchive(rule *model.ArchiveRule, file *model.FileRecord, now time.Time) bool {
	c := rule.Criteria
	if c == nil {
		return false
	}
	switch rule.RuleType {
	case model.RuleTypeAge:
		if c.InactiveDays == nil {
			return false
		}
		cutoff := now.AddDate(0, 0, -*c.InactiveDays)
		return !file.StaleSince().After(cutoff)
	case model.RuleTypeSize:
		if c.MinSizeBytes != nil && file.SizeBytes < *c.MinSizeBytes {
			return false
		}
		if c.MaxSizeBytes != nil && file.SizeBytes > *c.MaxSizeBytes {
			return false
		}
		return c.MinSizeBytes != nil || c.MaxSizeBytes != nil
	case model.RuleTypeFileType:
		return matchFileTypes(c.FileTypes, file)
	case model.RuleTypeOwner:
		return c.Owner != nil && strings.EqualFold(*c.Owner, file.OwnerEmail)
	}
	return false
}

// matchExclusion 排除规则匹配判定：给定的条件须全部满足
func matchExclusion(c *model.RuleCriteria, file *model.FileRecord) bool {
	if c == nil {
		return false
	}
	matched := false

	if c.LibraryPath != nil {
		if !hasPathPrefix(file.LibraryPath, *c.LibraryPath) {
			return false
		}
		matched = true
	}
	if c.FolderPath != nil {
		if !hasPathPrefix(file.FolderPath, *c.FolderPath) {
			return false
		}
		matched = true
	}
	if len(c.FileTypes) > 0 {
		if !matchFileTypes(c.FileTypes, file) {
			return false
		}
		matched = true
	}
	if len(c.ComplianceTags) > 0 {
		if !hasAnyTag(c.ComplianceTags, file.ComplianceTags) {
			return false
		}
		matched = true
	}
	return matched
}

// matchFileTypes 扩展名大小写不敏感匹配
func matchFileTypes(fileTypes []string, file *model.FileRecord) bool {
	ext := file.Extension()
	if ext == "" {
		return false
	}
	for _, ft := range fileTypes {
		if strings.EqualFold(ft, ext) {
			return true
		}
	}
	return false
}

// hasPathPrefix 大小写不敏感的路径前缀匹配
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(path), strings.ToLower(prefix))
}

// hasAnyTag 标签集合是否有交集
func hasAnyTag(want []string, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}
