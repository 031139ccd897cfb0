// Package scheduler 后台定时任务装配
// 四条周期任务：租户扫描、自动审批计时、取回解冻轮询、月度快照
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/service"
)

// Scheduler 定时任务调度器
type Scheduler struct {
	cron *cron.Cron
	svc  *service.Services
}

// New 创建调度器
func New(svc *service.Services) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		svc:  svc,
	}
}

// Start 注册并启动全部定时任务
func (s *Scheduler) Start(cfg config.SchedulerConfig) error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"tenant-scan", cfg.ScanSpec, func(ctx context.Context) error {
			return s.svc.Scan.Tick(ctx, time.Now())
		}},
		{"auto-approval", cfg.ApprovalSpec, func(ctx context.Context) error {
			if err := s.svc.Approval.TickAutoApprovals(ctx, time.Now()); err != nil {
				return err
			}
			// 审批通过的操作立即进入传输
			return s.svc.Archive.ExecuteApproved(ctx)
		}},
		{"rehydration-poll", cfg.RehydrationSpec, func(ctx context.Context) error {
			return s.svc.Retrieve.TickRehydration(ctx)
		}},
		{"savings-snapshot", cfg.SnapshotSpec, func(ctx context.Context) error {
			return s.svc.Snapshot.Run(ctx, time.Now())
		}},
	}

	for _, job := range jobs {
		name, run := job.name, job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			if err := run(context.Background()); err != nil {
				log.Printf("scheduled job failed: job=%s err=%v", name, err)
			}
		}); err != nil {
			return err
		}
		log.Printf("scheduled job registered: job=%s spec=%q", name, job.spec)
	}

	s.cron.Start()
	return nil
}

// Stop 停止调度并等待在途任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
