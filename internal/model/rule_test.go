package model

import (
	"strings"
	"testing"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

// ========== RuleCriteria.Validate 测试 ==========

func TestRuleCriteria_Validate(t *testing.T) {
	tests := []struct {
		name     string
		ruleType string
		criteria *RuleCriteria
		wantErr  string
	}{
		{"age valid", RuleTypeAge, &RuleCriteria{InactiveDays: intPtr(90)}, ""},
		{"age missing days", RuleTypeAge, &RuleCriteria{}, "inactiveDays"},
		{"age zero days", RuleTypeAge, &RuleCriteria{InactiveDays: intPtr(0)}, "at least 1"},
		{"size min only", RuleTypeSize, &RuleCriteria{MinSizeBytes: int64Ptr(1024)}, ""},
		{"size max only", RuleTypeSize, &RuleCriteria{MaxSizeBytes: int64Ptr(1024)}, ""},
		{"size empty", RuleTypeSize, &RuleCriteria{}, "minSizeBytes or maxSizeBytes"},
		{"size inverted bounds", RuleTypeSize, &RuleCriteria{MinSizeBytes: int64Ptr(100), MaxSizeBytes: int64Ptr(10)}, "must not be less"},
		{"type valid", RuleTypeFileType, &RuleCriteria{FileTypes: []string{".pdf", ".docx"}}, ""},
		{"type empty", RuleTypeFileType, &RuleCriteria{}, "fileTypes"},
		{"type missing dot", RuleTypeFileType, &RuleCriteria{FileTypes: []string{"pdf"}}, "must start with a dot"},
		{"owner valid", RuleTypeOwner, &RuleCriteria{Owner: strPtr("a@b.com")}, ""},
		{"owner empty", RuleTypeOwner, &RuleCriteria{Owner: strPtr("")}, "requires owner"},
		{"exclusion by path", RuleTypeExclusion, &RuleCriteria{FolderPath: strPtr("/legal")}, ""},
		{"exclusion by tags", RuleTypeExclusion, &RuleCriteria{ComplianceTags: []string{"hold"}}, ""},
		{"exclusion empty", RuleTypeExclusion, &RuleCriteria{}, "at least one"},
		{"unknown type", "bogus", &RuleCriteria{}, "unknown rule type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate(tt.ruleType)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRuleCriteria_Validate_Nil(t *testing.T) {
	var c *RuleCriteria
	if err := c.Validate(RuleTypeAge); err == nil {
		t.Error("Validate() on nil criteria should fail")
	}
}

// ========== ArchiveRule.Validate 测试 ==========

func TestArchiveRule_Validate_TargetTier(t *testing.T) {
	for _, tier := range ValidTiers {
		rule := &ArchiveRule{
			ClientTenantID: "tenant-1",
			RuleType:       RuleTypeAge,
			Criteria:       &RuleCriteria{InactiveDays: intPtr(30)},
			TargetTier:     tier,
		}
		if err := rule.Validate(); err != nil {
			t.Errorf("Validate() with tier %q unexpected error: %v", tier, err)
		}
	}

	rule := &ArchiveRule{
		ClientTenantID: "tenant-1",
		RuleType:       RuleTypeAge,
		Criteria:       &RuleCriteria{InactiveDays: intPtr(30)},
		TargetTier:     TierHot,
	}
	if err := rule.Validate(); err == nil {
		t.Error("Validate() should reject hot as archive target")
	}
}

func TestArchiveRule_Validate_ExclusionIgnoresTier(t *testing.T) {
	rule := &ArchiveRule{
		ClientTenantID: "tenant-1",
		RuleType:       RuleTypeExclusion,
		Criteria:       &RuleCriteria{FolderPath: strPtr("/legal")},
	}
	if err := rule.Validate(); err != nil {
		t.Errorf("Validate() exclusion without tier unexpected error: %v", err)
	}
}

// ========== TierRequiresRehydration 测试 ==========

func TestTierRequiresRehydration(t *testing.T) {
	tests := []struct {
		tier string
		want bool
	}{
		{TierHot, false},
		{TierCool, false},
		{TierCold, true},
		{TierArchive, true},
	}
	for _, tt := range tests {
		if got := TierRequiresRehydration(tt.tier); got != tt.want {
			t.Errorf("TierRequiresRehydration(%q) = %v, want %v", tt.tier, got, tt.want)
		}
	}
}
