// Package estimate 提供归档规则的试算预览
// 在不落库、不改状态的前提下评估规则的影响面和节省金额
package estimate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service/rules"
)

// TopSiteLimit 预览中站点排行的固定截断长度
const TopSiteLimit = 5

const bytesPerGB = 1024 * 1024 * 1024

// RuleStore 规则读取接口
type RuleStore interface {
	GetByID(ctx context.Context, id string) (*model.ArchiveRule, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]*model.ArchiveRule, error)
}

// FileStore 文件快照读取接口
type FileStore interface {
	ListByTenant(ctx context.Context, tenantID string, status string) ([]*model.FileRecord, error)
}

// SiteImpact 按站点聚合的预览条目
type SiteImpact struct {
	SiteID         string `json:"site_id"`
	SiteName       string `json:"site_name"`
	FileCount      int    `json:"file_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// Preview 试算结果
type Preview struct {
	FileCount              int          `json:"file_count"`
	TotalSizeBytes         int64        `json:"total_size_bytes"`
	EstimatedAnnualSavings float64      `json:"estimated_annual_savings"`
	TopSites               []SiteImpact `json:"top_sites"`
	ExcludedFileCount      int          `json:"excluded_file_count"`
}

// Estimator 试算器
type Estimator struct {
	ruleStore RuleStore
	fileStore FileStore
	evaluator *rules.Evaluator
	pricing   config.PricingConfig
}

// NewEstimator 创建试算器
// 费率表来自配置，可整体替换而无需改动估算逻辑
func NewEstimator(ruleStore RuleStore, fileStore FileStore, evaluator *rules.Evaluator, pricing config.PricingConfig) *Estimator {
	return &Estimator{
		ruleStore: ruleStore,
		fileStore: fileStore,
		evaluator: evaluator,
		pricing:   pricing,
	}
}

// PreviewRule 试算一条已保存的规则
func (e *Estimator) PreviewRule(ctx context.Context, tenantID, ruleID string) (*Preview, error) {
	rule, err := e.ruleStore.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	if rule.ClientTenantID != tenantID {
		return nil, fmt.Errorf("rule %s does not belong to tenant %s", ruleID, tenantID)
	}
	return e.preview(ctx, tenantID, rule)
}

// PreviewDraft 试算一条未保存的规则草稿
// 草稿与当前生效的排除规则一起评估，排除优先级语义与正式扫描一致
func (e *Estimator) PreviewDraft(ctx context.Context, tenantID, ruleType string, criteria *model.RuleCriteria, targetTier string) (*Preview, error) {
	draft := &model.ArchiveRule{
		ID:             "draft",
		ClientTenantID: tenantID,
		RuleType:       ruleType,
		Criteria:       criteria,
		TargetTier:     targetTier,
		IsActive:       true,
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return e.preview(ctx, tenantID, draft)
}

func (e *Estimator) preview(ctx context.Context, tenantID string, rule *model.ArchiveRule) (*Preview, error) {
	active, err := e.ruleStore.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	// 仅评估目标规则与现行排除规则，其余归档规则不参与预览
	evalSet := make([]*model.ArchiveRule, 0, len(active)+1)
	for _, r := range active {
		if r.IsExclusion() && r.ID != rule.ID {
			evalSet = append(evalSet, r)
		}
	}
	evalSet = append(evalSet, rule)

	files, err := e.fileStore.ListByTenant(ctx, tenantID, model.FileStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load file snapshot: %w", err)
	}

	now := time.Now()
	preview := &Preview{}
	bySite := make(map[string]*SiteImpact)

	for _, file := range files {
		result := e.evaluator.Evaluate(file, evalSet, now)
		if result.IsExcluded {
			preview.ExcludedFileCount++
			continue
		}
		if result.MatchedArchiveRuleID != rule.ID {
			continue
		}
		preview.FileCount++
		preview.TotalSizeBytes += file.SizeBytes

		impact, ok := bySite[file.SiteID]
		if !ok {
			impact = &SiteImpact{SiteID: file.SiteID, SiteName: file.SiteName}
			bySite[file.SiteID] = impact
		}
		impact.FileCount++
		impact.TotalSizeBytes += file.SizeBytes
	}

	preview.EstimatedAnnualSavings = e.AnnualSavings(preview.TotalSizeBytes, rule.TargetTier)
	preview.TopSites = rankSites(bySite, TopSiteLimit)
	return preview, nil
}

// AnnualSavings 按费率表计算年化节省：源系统成本避免额减去目标层成本
func (e *Estimator) AnnualSavings(sizeBytes int64, targetTier string) float64 {
	gb := float64(sizeBytes) / bytesPerGB
	tierRate := e.pricing.TierPerGBMonth[targetTier]
	monthly := (e.pricing.SourcePerGBMonth - tierRate) * gb
	if monthly < 0 {
		monthly = 0
	}
	return monthly * 12
}

// MonthlySavings 计算月度节省，用于快照
func (e *Estimator) MonthlySavings(sizeBytes int64, targetTier string) float64 {
	return e.AnnualSavings(sizeBytes, targetTier) / 12
}

// rankSites 按文件数降序排列站点，字节数决胜，截断到 limit
func rankSites(bySite map[string]*SiteImpact, limit int) []SiteImpact {
	ranked := make([]SiteImpact, 0, len(bySite))
	for _, impact := range bySite {
		ranked = append(ranked, *impact)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FileCount != ranked[j].FileCount {
			return ranked[i].FileCount > ranked[j].FileCount
		}
		if ranked[i].TotalSizeBytes != ranked[j].TotalSizeBytes {
			return ranked[i].TotalSizeBytes > ranked[j].TotalSizeBytes
		}
		return ranked[i].SiteID < ranked[j].SiteID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
