// Package snapshot 月度快照单元测试
package snapshot

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/repository"
)

// mockTenantStore 固定租户集合
type mockTenantStore struct {
	tenants []*model.ClientTenant
}

func (m *mockTenantStore) ListConnected(ctx context.Context) ([]*model.ClientTenant, error) {
	return m.tenants, nil
}

// tenantStats 单租户的统计数据
type tenantStats struct {
	totals *repository.StorageTotals
	stale  int64
	byTier map[string]int64
}

// mockStatsStore 按租户返回预置统计
type mockStatsStore struct {
	stats map[string]*tenantStats
}

func (m *mockStatsStore) TotalsByTenant(ctx context.Context, tenantID string) (*repository.StorageTotals, error) {
	if s, ok := m.stats[tenantID]; ok {
		return s.totals, nil
	}
	return &repository.StorageTotals{}, nil
}

func (m *mockStatsStore) StaleBytesByTenant(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	if s, ok := m.stats[tenantID]; ok {
		return s.stale, nil
	}
	return 0, nil
}

func (m *mockStatsStore) ArchivedBytesByTier(ctx context.Context, tenantID string) (map[string]int64, error) {
	if s, ok := m.stats[tenantID]; ok {
		return s.byTier, nil
	}
	return nil, nil
}

// mockSnapshotStore 按 (org, tenant, month) 幂等写入
type mockSnapshotStore struct {
	mu      sync.Mutex
	rows    map[string]*model.MonthlySavingsSnapshot
	upserts int
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{rows: make(map[string]*model.MonthlySavingsSnapshot)}
}

func (m *mockSnapshotStore) key(s *model.MonthlySavingsSnapshot) string {
	return s.MspOrgID + "|" + s.ClientTenantID + "|" + s.MonthKey
}

func (m *mockSnapshotStore) Upsert(ctx context.Context, snapshot *model.MonthlySavingsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snapshot
	m.rows[m.key(snapshot)] = &cp
	m.upserts++
	return nil
}

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		SourcePerGBMonth: 0.20,
		TierPerGBMonth: map[string]float64{
			model.TierHot:     0.18,
			model.TierCool:    0.01,
			model.TierCold:    0.0045,
			model.TierArchive: 0.002,
		},
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

// ========== 捕获测试 ==========

func TestRun_TenantAndOrgRollupRows(t *testing.T) {
	now := time.Date(2025, 9, 15, 3, 0, 0, 0, time.UTC)
	tenants := &mockTenantStore{tenants: []*model.ClientTenant{
		{ID: "tenant-1", MspOrgID: "org-1", Status: model.TenantStatusConnected},
		{ID: "tenant-2", MspOrgID: "org-1", Status: model.TenantStatusConnected},
	}}
	stats := &mockStatsStore{stats: map[string]*tenantStats{
		"tenant-1": {
			totals: &repository.StorageTotals{TotalBytes: 10 << 30, ActiveBytes: 8 << 30, ArchivedBytes: 2 << 30},
			stale:  4 << 30,
			byTier: map[string]int64{model.TierCool: 2 << 30},
		},
		"tenant-2": {
			totals: &repository.StorageTotals{TotalBytes: 5 << 30, ActiveBytes: 5 << 30},
			stale:  1 << 30,
		},
	}}
	snapshots := newMockSnapshotStore()

	c := NewCapture(tenants, stats, snapshots, testPricing())
	if err := c.Run(context.Background(), now); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	// 两个租户行加一个组织汇总行
	if len(snapshots.rows) != 3 {
		t.Fatalf("stored %d rows, want 3", len(snapshots.rows))
	}

	t1 := snapshots.rows["org-1|tenant-1|2025-09"]
	if t1 == nil {
		t.Fatal("tenant-1 snapshot missing")
	}
	// 2 GB 冷却层归档 × (0.20 − 0.01)
	if !approxEqual(t1.AchievedMonthlySavings, 2*0.19) {
		t.Errorf("AchievedMonthlySavings = %f, want %f", t1.AchievedMonthlySavings, 2*0.19)
	}
	// 4 GB 沉寂 × (0.20 − 0.01)
	if !approxEqual(t1.PotentialMonthlySavings, 4*0.19) {
		t.Errorf("PotentialMonthlySavings = %f, want %f", t1.PotentialMonthlySavings, 4*0.19)
	}

	rollup := snapshots.rows["org-1||2025-09"]
	if rollup == nil {
		t.Fatal("org rollup row missing")
	}
	if rollup.ClientTenantID != "" {
		t.Errorf("rollup ClientTenantID = %q, want empty", rollup.ClientTenantID)
	}
	if rollup.TotalStorageBytes != 15<<30 {
		t.Errorf("rollup TotalStorageBytes = %d, want %d", rollup.TotalStorageBytes, int64(15<<30))
	}
	if !approxEqual(rollup.PotentialMonthlySavings, 5*0.19) {
		t.Errorf("rollup PotentialMonthlySavings = %f, want %f", rollup.PotentialMonthlySavings, 5*0.19)
	}
	if !approxEqual(rollup.AchievedMonthlySavings, 2*0.19) {
		t.Errorf("rollup AchievedMonthlySavings = %f, want %f", rollup.AchievedMonthlySavings, 2*0.19)
	}
}

func TestRun_RepeatedCaptureConverges(t *testing.T) {
	now := time.Date(2025, 9, 15, 3, 0, 0, 0, time.UTC)
	tenants := &mockTenantStore{tenants: []*model.ClientTenant{
		{ID: "tenant-1", MspOrgID: "org-1", Status: model.TenantStatusConnected},
	}}
	stats := &mockStatsStore{stats: map[string]*tenantStats{
		"tenant-1": {
			totals: &repository.StorageTotals{TotalBytes: 1 << 30, ActiveBytes: 1 << 30},
			stale:  1 << 30,
		},
	}}
	snapshots := newMockSnapshotStore()

	c := NewCapture(tenants, stats, snapshots, testPricing())
	if err := c.Run(context.Background(), now); err != nil {
		t.Fatalf("first Run() unexpected error: %v", err)
	}
	if err := c.Run(context.Background(), now.Add(2*time.Hour)); err != nil {
		t.Fatalf("second Run() unexpected error: %v", err)
	}

	// 同月重复捕获覆盖而非追加
	if len(snapshots.rows) != 2 {
		t.Errorf("stored %d rows after repeated capture, want 2", len(snapshots.rows))
	}
	if snapshots.upserts != 4 {
		t.Errorf("upsert calls = %d, want 4", snapshots.upserts)
	}
}

func TestAchievedMonthly_SkipsUnknownAndNonSavingTiers(t *testing.T) {
	pricing := testPricing()
	pricing.TierPerGBMonth["premium"] = 0.50
	c := NewCapture(nil, nil, nil, pricing)

	byTier := map[string]int64{
		model.TierCool: 1 << 30, // 节省 0.19
		"premium":      1 << 30, // 比源系统贵，跳过
		"mystery":      1 << 30, // 未定价，跳过
	}
	if got := c.achievedMonthly(byTier); !approxEqual(got, 0.19) {
		t.Errorf("achievedMonthly() = %f, want %f", got, 0.19)
	}
}

func TestPotentialMonthly(t *testing.T) {
	c := NewCapture(nil, nil, nil, testPricing())
	if got := c.potentialMonthly(2 << 30); !approxEqual(got, 2*0.19) {
		t.Errorf("potentialMonthly() = %f, want %f", got, 2*0.19)
	}

	noCool := testPricing()
	delete(noCool.TierPerGBMonth, model.TierCool)
	c = NewCapture(nil, nil, nil, noCool)
	if got := c.potentialMonthly(2 << 30); got != 0 {
		t.Errorf("potentialMonthly() without cool rate = %f, want 0", got)
	}
}
