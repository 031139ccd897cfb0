// Package rules 规则评估引擎单元测试
package rules

import (
	"testing"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
)

var evalNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func fileAgedDays(days int) *model.FileRecord {
	return &model.FileRecord{
		ID:             "file-1",
		Name:           "report.pdf",
		LastModifiedAt: evalNow.AddDate(0, 0, -days),
	}
}

func ageRule(id string, days int, createdAt time.Time) *model.ArchiveRule {
	return &model.ArchiveRule{
		ID:         id,
		RuleType:   model.RuleTypeAge,
		Criteria:   &model.RuleCriteria{InactiveDays: intPtr(days)},
		TargetTier: model.TierCool,
		IsActive:   true,
		CreatedAt:  createdAt,
	}
}

// ========== 排除优先级测试 ==========

func TestEvaluate_ExclusionBeatsArchive(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	file := fileAgedDays(400)
	file.FolderPath = "/Legal/Contracts"

	rules := []*model.ArchiveRule{
		ageRule("archive-1", 90, evalNow.AddDate(0, 0, -10)),
		{
			ID:        "excl-1",
			RuleType:  model.RuleTypeExclusion,
			Criteria:  &model.RuleCriteria{FolderPath: strPtr("/legal")},
			IsActive:  true,
			CreatedAt: evalNow.AddDate(0, 0, -1), // 比归档规则晚建，仍然优先
		},
	}

	result := e.Evaluate(file, rules, evalNow)
	if !result.IsExcluded {
		t.Fatal("expected exclusion to win over archive match")
	}
	if result.MatchedExclusionRuleID != "excl-1" {
		t.Errorf("MatchedExclusionRuleID = %q, want excl-1", result.MatchedExclusionRuleID)
	}
	if result.MatchedArchiveRuleID != "" {
		t.Errorf("excluded file must not carry an archive match, got %q", result.MatchedArchiveRuleID)
	}
}

// ========== 决胜顺序测试 ==========

func TestEvaluate_TieBreakByCreation(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	file := fileAgedDays(400)

	older := ageRule("rule-older", 90, evalNow.AddDate(0, 0, -30))
	newer := ageRule("rule-newer", 30, evalNow.AddDate(0, 0, -1))
	newer.TargetTier = model.TierArchive

	// 入参顺序不应影响结果
	forward := e.Evaluate(file, []*model.ArchiveRule{older, newer}, evalNow)
	reversed := e.Evaluate(file, []*model.ArchiveRule{newer, older}, evalNow)

	for _, result := range []*Result{forward, reversed} {
		if result.MatchedArchiveRuleID != "rule-older" {
			t.Errorf("MatchedArchiveRuleID = %q, want rule-older", result.MatchedArchiveRuleID)
		}
		if result.TargetTier != model.TierCool {
			t.Errorf("TargetTier = %q, want %q", result.TargetTier, model.TierCool)
		}
	}
}

func TestEvaluate_TieBreakSameInstant(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	file := fileAgedDays(400)
	createdAt := evalNow.AddDate(0, 0, -5)

	a := ageRule("aaa", 90, createdAt)
	b := ageRule("bbb", 90, createdAt)

	result := e.Evaluate(file, []*model.ArchiveRule{b, a}, evalNow)
	if result.MatchedArchiveRuleID != "aaa" {
		t.Errorf("same-instant tie must break by ID, got %q", result.MatchedArchiveRuleID)
	}
}

func TestEvaluate_InactiveRulesSkipped(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	file := fileAgedDays(400)

	rule := ageRule("rule-1", 90, evalNow.AddDate(0, 0, -10))
	rule.IsActive = false

	result := e.Evaluate(file, []*model.ArchiveRule{rule}, evalNow)
	if result.MatchedArchiveRuleID != "" || result.IsExcluded {
		t.Errorf("inactive rule must not match, got %+v", result)
	}
}

// ========== 归档条件测试 ==========

func TestMatchArchive_Age(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := ageRule("rule-1", 90, evalNow.AddDate(0, 0, -10))

	if r := e.Evaluate(fileAgedDays(91), []*model.ArchiveRule{rule}, evalNow); r.MatchedArchiveRuleID == "" {
		t.Error("file older than threshold should match")
	}
	if r := e.Evaluate(fileAgedDays(89), []*model.ArchiveRule{rule}, evalNow); r.MatchedArchiveRuleID != "" {
		t.Error("file newer than threshold should not match")
	}
}

func TestMatchArchive_AgeUsesAccessTime(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := ageRule("rule-1", 90, evalNow.AddDate(0, 0, -10))

	// 修改时间很旧，但最近被访问过
	file := fileAgedDays(400)
	accessed := evalNow.AddDate(0, 0, -5)
	file.LastAccessedAt = &accessed

	if r := e.Evaluate(file, []*model.ArchiveRule{rule}, evalNow); r.MatchedArchiveRuleID != "" {
		t.Error("recently accessed file should not match age rule")
	}
}

func TestMatchArchive_Size(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := &model.ArchiveRule{
		ID:       "rule-1",
		RuleType: model.RuleTypeSize,
		Criteria: &model.RuleCriteria{
			MinSizeBytes: int64Ptr(1000),
			MaxSizeBytes: int64Ptr(5000),
		},
		TargetTier: model.TierCold,
		IsActive:   true,
	}

	tests := []struct {
		size int64
		want bool
	}{
		{999, false},
		{1000, true},
		{5000, true},
		{5001, false},
	}
	for _, tt := range tests {
		file := fileAgedDays(1)
		file.SizeBytes = tt.size
		got := e.Evaluate(file, []*model.ArchiveRule{rule}, evalNow).MatchedArchiveRuleID != ""
		if got != tt.want {
			t.Errorf("size %d matched = %v, want %v", tt.size, got, tt.want)
		}
	}
}

func TestMatchArchive_FileType(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := &model.ArchiveRule{
		ID:         "rule-1",
		RuleType:   model.RuleTypeFileType,
		Criteria:   &model.RuleCriteria{FileTypes: []string{".PDF", ".docx"}},
		TargetTier: model.TierCool,
		IsActive:   true,
	}

	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{"Report.PDF", true},
		{"letter.docx", true},
		{"image.png", false},
		{"README", false},
	}
	for _, tt := range tests {
		file := fileAgedDays(1)
		file.Name = tt.name
		got := e.Evaluate(file, []*model.ArchiveRule{rule}, evalNow).MatchedArchiveRuleID != ""
		if got != tt.want {
			t.Errorf("name %q matched = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMatchArchive_Owner(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := &model.ArchiveRule{
		ID:         "rule-1",
		RuleType:   model.RuleTypeOwner,
		Criteria:   &model.RuleCriteria{Owner: strPtr("Alice@Example.com")},
		TargetTier: model.TierCool,
		IsActive:   true,
	}

	file := fileAgedDays(1)
	file.OwnerEmail = "alice@example.com"
	if r := e.Evaluate(file, []*model.ArchiveRule{rule}, evalNow); r.MatchedArchiveRuleID == "" {
		t.Error("owner match should be case-insensitive")
	}

	file.OwnerEmail = "bob@example.com"
	if r := e.Evaluate(file, []*model.ArchiveRule{rule}, evalNow); r.MatchedArchiveRuleID != "" {
		t.Error("different owner should not match")
	}
}

// ========== 排除条件测试 ==========

func TestMatchExclusion_AllProvidedFieldsMustMatch(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := &model.ArchiveRule{
		ID:       "excl-1",
		RuleType: model.RuleTypeExclusion,
		Criteria: &model.RuleCriteria{
			FolderPath: strPtr("/finance"),
			FileTypes:  []string{".xlsx"},
		},
		IsActive: true,
	}

	match := fileAgedDays(1)
	match.FolderPath = "/Finance/2024"
	match.Name = "budget.xlsx"
	if r := e.Evaluate(match, []*model.ArchiveRule{rule}, evalNow); !r.IsExcluded {
		t.Error("file matching every provided criterion should be excluded")
	}

	partial := fileAgedDays(1)
	partial.FolderPath = "/Finance/2024"
	partial.Name = "budget.pdf"
	if r := e.Evaluate(partial, []*model.ArchiveRule{rule}, evalNow); r.IsExcluded {
		t.Error("file matching only part of the criteria should not be excluded")
	}
}

func TestMatchExclusion_ComplianceTags(t *testing.T) {
	e := NewEvaluator(PriorityCreatedAsc)
	rule := &model.ArchiveRule{
		ID:       "excl-1",
		RuleType: model.RuleTypeExclusion,
		Criteria: &model.RuleCriteria{ComplianceTags: []string{"Legal-Hold"}},
		IsActive: true,
	}

	tagged := fileAgedDays(1)
	tagged.ComplianceTags = model.StringList{"legal-hold", "gdpr"}
	if r := e.Evaluate(tagged, []*model.ArchiveRule{rule}, evalNow); !r.IsExcluded {
		t.Error("tag intersection should exclude")
	}

	untagged := fileAgedDays(1)
	if r := e.Evaluate(untagged, []*model.ArchiveRule{rule}, evalNow); r.IsExcluded {
		t.Error("file without tags should not be excluded")
	}
}

func TestEvaluate_NoRules(t *testing.T) {
	e := NewEvaluator("")
	result := e.Evaluate(fileAgedDays(400), nil, evalNow)
	if result.IsExcluded || result.MatchedArchiveRuleID != "" {
		t.Errorf("no rules must yield empty result, got %+v", result)
	}
}
