// Package snapshot 提供月度节省快照捕获
// 快照按 (org, tenant, month) 幂等写入：同月重复捕获覆盖为最新值
package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/repository"
)

// staleAgeDays 潜在节省估算中视为沉寂的文件年龄
const staleAgeDays = 180

const bytesPerGB = float64(1024 * 1024 * 1024)

// TenantStore 租户读取接口
type TenantStore interface {
	ListConnected(ctx context.Context) ([]*model.ClientTenant, error)
}

// FileStatsStore 文件聚合统计接口
type FileStatsStore interface {
	TotalsByTenant(ctx context.Context, tenantID string) (*repository.StorageTotals, error)
	StaleBytesByTenant(ctx context.Context, tenantID string, before time.Time) (int64, error)
	ArchivedBytesByTier(ctx context.Context, tenantID string) (map[string]int64, error)
}

// SnapshotStore 快照写入接口
type SnapshotStore interface {
	Upsert(ctx context.Context, snapshot *model.MonthlySavingsSnapshot) error
}

// Capture 月度快照捕获器
type Capture struct {
	tenants   TenantStore
	files     FileStatsStore
	snapshots SnapshotStore
	pricing   config.PricingConfig
}

// NewCapture 创建快照捕获器
func NewCapture(tenants TenantStore, files FileStatsStore, snapshots SnapshotStore, pricing config.PricingConfig) *Capture {
	return &Capture{
		tenants:   tenants,
		files:     files,
		snapshots: snapshots,
		pricing:   pricing,
	}
}

// Run 为所有已连接租户捕获当月快照，并写入组织级汇总行
func (c *Capture) Run(ctx context.Context, now time.Time) error {
	tenants, err := c.tenants.ListConnected(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	monthKey := model.MonthKeyFor(now)
	orgTotals := make(map[string]*model.MonthlySavingsSnapshot)

	for _, tenant := range tenants {
		snap, err := c.CaptureTenant(ctx, tenant, monthKey, now)
		if err != nil {
			log.Printf("snapshot capture failed: tenant=%s err=%v", tenant.ID, err)
			continue
		}

		rollup, ok := orgTotals[tenant.MspOrgID]
		if !ok {
			rollup = &model.MonthlySavingsSnapshot{
				MspOrgID:   tenant.MspOrgID,
				MonthKey:   monthKey,
				CapturedAt: now,
			}
			orgTotals[tenant.MspOrgID] = rollup
		}
		rollup.TotalStorageBytes += snap.TotalStorageBytes
		rollup.ActiveStorageBytes += snap.ActiveStorageBytes
		rollup.StaleStorageBytes += snap.StaleStorageBytes
		rollup.ArchivedStorageBytes += snap.ArchivedStorageBytes
		rollup.AchievedMonthlySavings += snap.AchievedMonthlySavings
		rollup.PotentialMonthlySavings += snap.PotentialMonthlySavings
	}

	// 组织级汇总行：ClientTenantID 为空串
	for _, rollup := range orgTotals {
		if err := c.snapshots.Upsert(ctx, rollup); err != nil {
			log.Printf("org snapshot upsert failed: org=%s err=%v", rollup.MspOrgID, err)
		}
	}
	return nil
}

// CaptureTenant 捕获单个租户的当月快照
func (c *Capture) CaptureTenant(ctx context.Context, tenant *model.ClientTenant, monthKey string, now time.Time) (*model.MonthlySavingsSnapshot, error) {
	totals, err := c.files.TotalsByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate storage totals: %w", err)
	}

	staleCutoff := now.AddDate(0, 0, -staleAgeDays)
	staleBytes, err := c.files.StaleBytesByTenant(ctx, tenant.ID, staleCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stale bytes: %w", err)
	}

	byTier, err := c.files.ArchivedBytesByTier(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tier bytes: %w", err)
	}

	snap := &model.MonthlySavingsSnapshot{
		MspOrgID:                tenant.MspOrgID,
		ClientTenantID:          tenant.ID,
		MonthKey:                monthKey,
		TotalStorageBytes:       totals.TotalBytes,
		ActiveStorageBytes:      totals.ActiveBytes,
		StaleStorageBytes:       staleBytes,
		ArchivedStorageBytes:    totals.ArchivedBytes,
		AchievedMonthlySavings:  c.achievedMonthly(byTier),
		PotentialMonthlySavings: c.potentialMonthly(staleBytes),
		CapturedAt:              now,
	}
	if err := c.snapshots.Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return snap, nil
}

// achievedMonthly 已实现月度节省：各层归档量按源费率与层费率的差计算
func (c *Capture) achievedMonthly(byTier map[string]int64) float64 {
	var total float64
	for tier, bytes := range byTier {
		rate, ok := c.pricing.TierPerGBMonth[tier]
		if !ok {
			continue
		}
		delta := c.pricing.SourcePerGBMonth - rate
		if delta <= 0 {
			continue
		}
		total += float64(bytes) / bytesPerGB * delta
	}
	return total
}

// potentialMonthly 潜在月度节省：沉寂的活跃数据若转入冷却层可省的费用
func (c *Capture) potentialMonthly(staleBytes int64) float64 {
	rate, ok := c.pricing.TierPerGBMonth[model.TierCool]
	if !ok {
		return 0
	}
	delta := c.pricing.SourcePerGBMonth - rate
	if delta <= 0 {
		return 0
	}
	return float64(staleBytes) / bytesPerGB * delta
}
