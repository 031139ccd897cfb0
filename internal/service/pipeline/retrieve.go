package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service/audit"
	"github.com/mspkit/tierkeep/internal/service/source"
	"github.com/mspkit/tierkeep/internal/service/storage"
)

// RetrievalStore 取回操作存储接口
type RetrievalStore interface {
	CreateIfAbsent(ctx context.Context, op *model.RetrievalOperation) (bool, error)
	GetByID(ctx context.Context, id string) (*model.RetrievalOperation, error)
	GetLatestByFile(ctx context.Context, fileID string) (*model.RetrievalOperation, error)
	ListByStatus(ctx context.Context, status string) ([]*model.RetrievalOperation, error)
	UpdateStatus(ctx context.Context, id, from, to string, fields map[string]interface{}) (bool, error)
}

// RetrievalPipeline 取回流水线：解冻（冷层）→ 下载 → 写回源系统
type RetrievalPipeline struct {
	ops         RetrievalStore
	files       FileStore
	src         source.FileSource
	store       storage.TieredStore
	audit       *audit.Service
	concurrency int
}

// NewRetrievalPipeline 创建取回流水线
func NewRetrievalPipeline(ops RetrievalStore, files FileStore, src source.FileSource, store storage.TieredStore, auditSvc *audit.Service, concurrency int) *RetrievalPipeline {
	return &RetrievalPipeline{
		ops:         ops,
		files:       files,
		src:         src,
		store:       store,
		audit:       auditSvc,
		concurrency: concurrency,
	}
}

// Request 发起文件取回，幂等：同一逻辑周期重复请求返回既有操作
func (p *RetrievalPipeline) Request(ctx context.Context, tenant *model.ClientTenant, fileID, actor string) (*model.RetrievalOperation, error) {
	file, err := p.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	if file.ArchiveStatus != model.FileStatusArchived {
		return nil, fmt.Errorf("file %s is not archived", fileID)
	}

	latest, err := p.ops.GetLatestByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest retrieval: %w", err)
	}

	cycle := 1
	if latest != nil {
		if !latest.IsTerminal() {
			// 已有在途取回，直接返回
			return latest, nil
		}
		if latest.Status == model.RetrievalStatusCompleted {
			return latest, nil
		}
		cycle = latest.Cycle + 1
	}

	op := &model.RetrievalOperation{
		ID:             model.OperationID(tenant.ID, file.DriveID, file.ItemID, model.ActionRetrieve, cycle),
		MspOrgID:       tenant.MspOrgID,
		ClientTenantID: tenant.ID,
		FileID:         fileID,
		Cycle:          cycle,
		Status:         model.RetrievalStatusPending,
		RequestedBy:    actor,
	}
	created, err := p.ops.CreateIfAbsent(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval operation: %w", err)
	}
	if created {
		p.audit.Log(ctx, tenant.MspOrgID, tenant.ID, actor, "retrieval.requested", op.ID, model.AuditDetails{
			"file_id": fileID,
		})
	}

	if err := p.Advance(ctx, op.ID); err != nil {
		return nil, err
	}
	return p.ops.GetByID(ctx, op.ID)
}

// TickRehydration 轮询推进等待解冻和传输中的取回操作
func (p *RetrievalPipeline) TickRehydration(ctx context.Context) error {
	for _, status := range []string{model.RetrievalStatusRehydrating, model.RetrievalStatusRetrieving} {
		ops, err := p.ops.ListByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list retrieval operations: %w", err)
		}
		pool := newWorkerPool(p.concurrency)
		for _, op := range ops {
			opID := op.ID
			if err := pool.Submit(ctx, func() {
				if err := p.Advance(ctx, opID); err != nil {
					log.Printf("retrieval advance failed: op=%s err=%v", opID, err)
				}
			}); err != nil {
				break
			}
		}
		pool.Wait()
	}
	return nil
}

// Advance 按当前状态推进一步取回操作，终态重入为空操作
func (p *RetrievalPipeline) Advance(ctx context.Context, opID string) error {
	op, err := p.ops.GetByID(ctx, opID)
	if err != nil {
		return fmt.Errorf("failed to load operation: %w", err)
	}
	if op.IsTerminal() {
		return nil
	}

	file, err := p.files.GetByID(ctx, op.FileID)
	if err != nil {
		p.fail(ctx, opID, op.Status, fmt.Sprintf("file lookup failed: %v", err))
		return err
	}
	key := file.StorageKey
	if key == "" {
		key = ObjectKey(op.ClientTenantID, file.DriveID, file.ItemID)
	}

	switch op.Status {
	case model.RetrievalStatusPending:
		tier := model.TierHot
		if file.CurrentTier != nil {
			tier = *file.CurrentTier
		}
		if model.TierRequiresRehydration(tier) {
			// 冷层先发起解冻，再等待对象可读
			if err := p.store.SetTier(ctx, key, model.TierHot); err != nil {
				p.fail(ctx, opID, model.RetrievalStatusPending, fmt.Sprintf("rehydration request failed: %v", err))
				return err
			}
			_, err := p.ops.UpdateStatus(ctx, opID, model.RetrievalStatusPending, model.RetrievalStatusRehydrating, nil)
			return err
		}
		if _, err := p.ops.UpdateStatus(ctx, opID, model.RetrievalStatusPending, model.RetrievalStatusRetrieving, nil); err != nil {
			return err
		}
		return p.transfer(ctx, op, file, key)

	case model.RetrievalStatusRehydrating:
		ready, err := p.store.ObjectReady(ctx, key)
		if err != nil {
			log.Printf("rehydration poll failed: op=%s err=%v", opID, err)
			return nil
		}
		if !ready {
			return nil
		}
		if _, err := p.ops.UpdateStatus(ctx, opID, model.RetrievalStatusRehydrating, model.RetrievalStatusRetrieving, nil); err != nil {
			return err
		}
		return p.transfer(ctx, op, file, key)

	case model.RetrievalStatusRetrieving:
		return p.transfer(ctx, op, file, key)
	}
	return nil
}

// transfer 从分层存储取回并写回源系统
func (p *RetrievalPipeline) transfer(ctx context.Context, op *model.RetrievalOperation, file *model.FileRecord, key string) error {
	step := func() error {
		reader, err := p.store.GetObject(ctx, key)
		if err != nil {
			return fmt.Errorf("object download failed: %w", err)
		}
		defer drainClose(reader)

		if err := p.src.UploadFile(ctx, op.ClientTenantID, file.DriveID, file.ItemID, reader, file.SizeBytes); err != nil {
			return fmt.Errorf("source upload failed: %w", err)
		}
		return nil
	}

	if err := retryTransient(ctx, step); err != nil {
		p.fail(ctx, op.ID, model.RetrievalStatusRetrieving, err.Error())
		return err
	}

	now := time.Now()
	applied, err := p.ops.UpdateStatus(ctx, op.ID, model.RetrievalStatusRetrieving, model.RetrievalStatusCompleted, map[string]interface{}{
		"completed_at": now,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize retrieval: %w", err)
	}
	if !applied {
		return nil
	}

	if err := p.files.MarkRestored(ctx, file.ID); err != nil {
		log.Printf("failed to update file record after retrieval: file=%s err=%v", file.ID, err)
	}

	// 归档副本尽力清理
	if err := p.store.RemoveObject(ctx, key); err != nil {
		log.Printf("failed to remove archived object: key=%s err=%v", key, err)
	}

	p.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, "system:retrieve", "retrieval.completed", op.ID, model.AuditDetails{
		"file_id": file.ID,
	})
	return nil
}

// fail 记录取回终态失败
func (p *RetrievalPipeline) fail(ctx context.Context, opID, from, message string) {
	applied, err := p.ops.UpdateStatus(ctx, opID, from, model.RetrievalStatusFailed, map[string]interface{}{
		"error_message": message,
	})
	if err != nil {
		log.Printf("failed to record retrieval failure: op=%s err=%v", opID, err)
		return
	}
	if applied {
		op, err := p.ops.GetByID(ctx, opID)
		if err == nil {
			p.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, "system:retrieve", "retrieval.failed", opID, model.AuditDetails{
				"error": message,
			})
		}
	}
}
