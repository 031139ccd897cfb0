// Package scan 提供租户扫描调度与执行
// 调度条件（本地时间窗口、冷却间隔）每次触发重新评估；
// 同租户并发扫描由确定性工作流键去重，第二次启动被跳过而非排队
package scan

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service/approval"
	"github.com/mspkit/tierkeep/internal/service/rules"
	"github.com/mspkit/tierkeep/internal/service/source"
)

// TenantStore 租户存储接口
type TenantStore interface {
	GetByID(ctx context.Context, id string) (*model.ClientTenant, error)
	ListConnected(ctx context.Context) ([]*model.ClientTenant, error)
	UpdateLastScanAt(ctx context.Context, id string, at time.Time) error
}

// ScanStore 扫描运行存储接口
type ScanStore interface {
	Create(ctx context.Context, run *model.ScanRun) error
	GetActiveByWorkflowKey(ctx context.Context, workflowKey string) (*model.ScanRun, error)
	Finish(ctx context.Context, id, status string, run *model.ScanRun) error
}

// FileStore 文件存储接口
type FileStore interface {
	Upsert(ctx context.Context, file *model.FileRecord) error
	ListByTenant(ctx context.Context, tenantID string, status string) ([]*model.FileRecord, error)
}

// RuleStore 规则读取接口
type RuleStore interface {
	ListActiveByTenant(ctx context.Context, tenantID string) ([]*model.ArchiveRule, error)
}

// Locker 分布式锁接口，多实例部署时防止同租户双扫描
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Scheduler 扫描调度器
type Scheduler struct {
	tenants   TenantStore
	runs      ScanStore
	files     FileStore
	ruleStore RuleStore
	src       source.FileSource
	evaluator *rules.Evaluator
	workflow  *approval.Workflow
	locker    Locker
	cfg       config.ScanConfig
}

// NewScheduler 创建扫描调度器
func NewScheduler(tenants TenantStore, runs ScanStore, files FileStore, ruleStore RuleStore, src source.FileSource, evaluator *rules.Evaluator, workflow *approval.Workflow, locker Locker, cfg config.ScanConfig) *Scheduler {
	return &Scheduler{
		tenants:   tenants,
		runs:      runs,
		files:     files,
		ruleStore: ruleStore,
		src:       src,
		evaluator: evaluator,
		workflow:  workflow,
		locker:    locker,
		cfg:       cfg,
	}
}

// Tick 调度一轮：对每个符合条件的租户启动扫描
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	tenants, err := s.tenants.ListConnected(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	for _, tenant := range tenants {
		if !s.Eligible(tenant, now) {
			continue
		}
		if err := s.StartScan(ctx, tenant); err != nil {
			log.Printf("scan failed: tenant=%s err=%v", tenant.ID, err)
		}
	}
	return nil
}

// Eligible 判断租户当前是否应扫描
// 条件每次重新评估：已连接、租户本地时间落在目标窗口、距上次扫描超过冷却期
func (s *Scheduler) Eligible(tenant *model.ClientTenant, now time.Time) bool {
	if tenant.Status != model.TenantStatusConnected {
		return false
	}

	local := now.In(tenant.Location())
	hour := local.Hour()
	window := s.cfg.WindowHours
	if window < 1 {
		window = 1
	}
	inWindow := hour >= s.cfg.TargetHourLocal && hour < s.cfg.TargetHourLocal+window
	if !inWindow {
		return false
	}

	if tenant.LastScanAt != nil {
		cooldown := time.Duration(s.cfg.CooldownHours) * time.Hour
		if now.Sub(*tenant.LastScanAt) < cooldown {
			return false
		}
	}
	return true
}

// StartScan 启动一次租户扫描
// 工作流键确定性派生自租户身份；已有运行中实例或锁被占用时跳过
func (s *Scheduler) StartScan(ctx context.Context, tenant *model.ClientTenant) error {
	key := model.ScanWorkflowKey(tenant.ID)

	active, err := s.runs.GetActiveByWorkflowKey(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check active scan: %w", err)
	}
	if active != nil {
		log.Printf("scan skipped, already running: tenant=%s run=%s", tenant.ID, active.ID)
		return nil
	}

	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, key, time.Duration(s.cfg.LockTTLMinutes)*time.Minute)
		if err != nil {
			return fmt.Errorf("failed to acquire scan lock: %w", err)
		}
		if !acquired {
			log.Printf("scan skipped, lock held elsewhere: tenant=%s", tenant.ID)
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, key); err != nil {
				log.Printf("failed to release scan lock: tenant=%s err=%v", tenant.ID, err)
			}
		}()
	}

	run := &model.ScanRun{
		ClientTenantID: tenant.ID,
		WorkflowKey:    key,
		Status:         model.ScanStatusRunning,
		StartedAt:      time.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("failed to create scan run: %w", err)
	}

	if err := s.execute(ctx, tenant, run); err != nil {
		run.ErrorMessage = err.Error()
		if ferr := s.runs.Finish(ctx, run.ID, model.ScanStatusFailed, run); ferr != nil {
			log.Printf("failed to finish scan run: run=%s err=%v", run.ID, ferr)
		}
		return err
	}

	if err := s.runs.Finish(ctx, run.ID, model.ScanStatusCompleted, run); err != nil {
		log.Printf("failed to finish scan run: run=%s err=%v", run.ID, err)
	}
	if err := s.tenants.UpdateLastScanAt(ctx, tenant.ID, time.Now()); err != nil {
		log.Printf("failed to record scan time: tenant=%s err=%v", tenant.ID, err)
	}
	return nil
}

// execute 扫描主体：摄取文件元数据、评估规则、入队命中并发起审批
func (s *Scheduler) execute(ctx context.Context, tenant *model.ClientTenant, run *model.ScanRun) error {
	sites, err := s.src.ListSites(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	for _, site := range sites {
		records, err := s.src.ListFiles(ctx, tenant.ID, site.ID)
		if err != nil {
			return fmt.Errorf("failed to list files for site %s: %w", site.ID, err)
		}
		for _, record := range records {
			record.ClientTenantID = tenant.ID
			if err := s.files.Upsert(ctx, record); err != nil {
				return fmt.Errorf("failed to ingest file metadata: %w", err)
			}
		}
	}

	activeRules, err := s.ruleStore.ListActiveByTenant(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// 已归档文件不进入评估
	candidates, err := s.files.ListByTenant(ctx, tenant.ID, model.FileStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list candidate files: %w", err)
	}

	now := time.Now()
	matchedSites := make(map[string]struct{})
	for _, file := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		run.FilesScanned++
		result := s.evaluator.Evaluate(file, activeRules, now)
		if result.IsExcluded {
			run.FilesExcluded++
			continue
		}
		if result.MatchedArchiveRuleID == "" {
			continue
		}

		op, err := s.workflow.EnqueueMatch(ctx, tenant, file, result)
		if err != nil {
			return fmt.Errorf("failed to enqueue match: %w", err)
		}
		if op != nil {
			run.FilesMatched++
			matchedSites[file.SiteID] = struct{}{}
		}
	}

	if len(matchedSites) > 0 {
		siteIDs := make([]string, 0, len(matchedSites))
		for id := range matchedSites {
			siteIDs = append(siteIDs, id)
		}
		if err := s.workflow.RequestApprovals(ctx, tenant.ID, siteIDs); err != nil {
			return fmt.Errorf("failed to request approvals: %w", err)
		}
	}
	return nil
}
