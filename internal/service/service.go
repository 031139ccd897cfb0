// Package service 服务装配
package service

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mspkit/tierkeep/internal/config"
	"github.com/mspkit/tierkeep/internal/repository"
	"github.com/mspkit/tierkeep/internal/service/approval"
	"github.com/mspkit/tierkeep/internal/service/audit"
	"github.com/mspkit/tierkeep/internal/service/auth"
	"github.com/mspkit/tierkeep/internal/service/estimate"
	"github.com/mspkit/tierkeep/internal/service/notify"
	"github.com/mspkit/tierkeep/internal/service/pipeline"
	"github.com/mspkit/tierkeep/internal/service/rules"
	"github.com/mspkit/tierkeep/internal/service/scan"
	"github.com/mspkit/tierkeep/internal/service/snapshot"
	"github.com/mspkit/tierkeep/internal/service/source"
	"github.com/mspkit/tierkeep/internal/service/storage"
	"github.com/mspkit/tierkeep/internal/service/tenant"
)

// Services 服务集合
type Services struct {
	Auth     *auth.Service
	Tenant   *tenant.Service
	Rules    *rules.Service
	Estimate *estimate.Estimator
	Approval *approval.Workflow
	Archive  *pipeline.ArchivePipeline
	Retrieve *pipeline.RetrievalPipeline
	Scan     *scan.Scheduler
	Snapshot *snapshot.Capture
	Audit    *audit.Service

	Config *config.Config
	Repo   *repository.Repositories
}

// NewServices 创建所有服务
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	auditSvc := audit.NewService(repo.Audit)
	evaluator := rules.NewEvaluator(cfg.Scan.RulePriority)

	dispatcher := notify.NewDispatcher(
		notify.NewWebhookChannel(&cfg.Notify),
		cfg.Approval.DispatchMaxAttempts,
		time.Duration(cfg.Approval.DispatchBackoffMillis)*time.Millisecond,
	)
	workflow := approval.NewWorkflow(repo.Operation, repo.Tenant, repo.File, repo.Rule, dispatcher, auditSvc)

	store, err := storage.NewMinIOStore(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init tiered storage: %w", err)
	}
	src := source.NewHTTPSource(&cfg.Source)

	archivePipe := pipeline.NewArchivePipeline(repo.Operation, repo.File, src, store, auditSvc, cfg.Scan.MaxConcurrentTransfers)
	retrievePipe := pipeline.NewRetrievalPipeline(repo.Retrieval, repo.File, src, store, auditSvc, cfg.Scan.MaxConcurrentTransfers)

	scanner := scan.NewScheduler(
		repo.Tenant, repo.Scan, repo.File, repo.Rule,
		src, evaluator, workflow, scan.NewRedisLocker(redisClient), cfg.Scan,
	)
	capture := snapshot.NewCapture(repo.Tenant, repo.File, repo.Snapshot, cfg.Pricing)

	return &Services{
		Auth:     auth.NewService(repo, cfg.Auth),
		Tenant:   tenant.NewService(repo, cfg.Approval),
		Rules:    rules.NewService(repo.Rule),
		Estimate: estimate.NewEstimator(repo.Rule, repo.File, evaluator, cfg.Pricing),
		Approval: workflow,
		Archive:  archivePipe,
		Retrieve: retrievePipe,
		Scan:     scanner,
		Snapshot: capture,
		Audit:    auditSvc,

		Config: cfg,
		Repo:   repo,
	}, nil
}
