// Package pipeline 提供归档与取回的物理传输流水线
// 每次传输对应一条操作记录；终态操作重入是空操作，绝不二次传输
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service/audit"
	"github.com/mspkit/tierkeep/internal/service/source"
	"github.com/mspkit/tierkeep/internal/service/storage"
)

// transferAttempts 单步传输的尝试次数上限
const transferAttempts = 3

// OperationStore 归档操作存储接口
type OperationStore interface {
	GetByID(ctx context.Context, id string) (*model.ArchiveOperation, error)
	ListByStatus(ctx context.Context, status string) ([]*model.ArchiveOperation, error)
	UpdateStatus(ctx context.Context, id, from, to string, fields map[string]interface{}) (bool, error)
}

// FileStore 文件存储接口
type FileStore interface {
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	MarkArchived(ctx context.Context, id, tier, storageKey string, at time.Time) error
	MarkRestored(ctx context.Context, id string) error
}

// ArchivePipeline 归档流水线：下载 → 按层级上传 → 校验 → 落档
type ArchivePipeline struct {
	ops         OperationStore
	files       FileStore
	src         source.FileSource
	store       storage.TieredStore
	audit       *audit.Service
	concurrency int
}

// NewArchivePipeline 创建归档流水线
func NewArchivePipeline(ops OperationStore, files FileStore, src source.FileSource, store storage.TieredStore, auditSvc *audit.Service, concurrency int) *ArchivePipeline {
	return &ArchivePipeline{
		ops:         ops,
		files:       files,
		src:         src,
		store:       store,
		audit:       auditSvc,
		concurrency: concurrency,
	}
}

// ObjectKey 归档对象在分层存储中的键
func ObjectKey(tenantID, driveID, itemID string) string {
	return fmt.Sprintf("%s/%s/%s", tenantID, driveID, itemID)
}

// ExecuteApproved 驱动所有已审批操作的物理传输，按并发上限推进
func (p *ArchivePipeline) ExecuteApproved(ctx context.Context) error {
	approved, err := p.ops.ListByStatus(ctx, model.OpStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to list approved operations: %w", err)
	}

	pool := newWorkerPool(p.concurrency)
	for _, op := range approved {
		opID := op.ID
		if err := pool.Submit(ctx, func() {
			if err := p.Execute(ctx, opID); err != nil {
				log.Printf("archive transfer failed: op=%s err=%v", opID, err)
			}
		}); err != nil {
			// 取消后不再开始新传输
			break
		}
	}
	pool.Wait()
	return nil
}

// Execute 执行单个操作的归档传输
// 终态重入直接返回存档结果；Archiving 状态说明另一执行者持有该操作
func (p *ArchivePipeline) Execute(ctx context.Context, opID string) error {
	op, err := p.ops.GetByID(ctx, opID)
	if err != nil {
		return fmt.Errorf("failed to load operation: %w", err)
	}
	if op.IsTerminal() {
		return nil
	}
	if op.Status != model.OpStatusApproved {
		return nil
	}

	// 认领操作：竞争失败说明另一执行者已接手
	claimed, err := p.ops.UpdateStatus(ctx, opID, model.OpStatusApproved, model.OpStatusArchiving, nil)
	if err != nil {
		return fmt.Errorf("failed to claim operation: %w", err)
	}
	if !claimed {
		return nil
	}

	file, err := p.files.GetByID(ctx, op.FileID)
	if err != nil {
		p.fail(ctx, opID, model.OpStatusArchiving, fmt.Sprintf("file lookup failed: %v", err))
		return err
	}

	key := ObjectKey(op.ClientTenantID, file.DriveID, file.ItemID)

	var info *storage.ObjectInfo
	var digest string
	transfer := func() error {
		reader, size, err := p.src.DownloadFile(ctx, op.ClientTenantID, file.DriveID, file.ItemID)
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		defer reader.Close()

		hasher := md5.New()
		info, err = p.store.PutObject(ctx, key, io.TeeReader(reader, hasher), size, op.TargetTier)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		digest = hex.EncodeToString(hasher.Sum(nil))
		return nil
	}

	if err := retryTransient(ctx, transfer); err != nil {
		p.fail(ctx, opID, model.OpStatusArchiving, err.Error())
		return err
	}

	// 校验：对象大小必须与源文件一致，否则不得标记归档
	if info.Size != file.SizeBytes {
		msg := fmt.Sprintf("size mismatch after upload: expected %d, stored %d", file.SizeBytes, info.Size)
		p.fail(ctx, opID, model.OpStatusArchiving, msg)
		return fmt.Errorf("%s", msg)
	}

	// 单段上传的 ETag 即内容 MD5，可与下载流摘要比对；分段 ETag 含 '-'，不可比
	if info.ETag != "" && !strings.Contains(info.ETag, "-") && info.ETag != digest {
		msg := fmt.Sprintf("content hash mismatch after upload: expected %s, stored %s", digest, info.ETag)
		p.fail(ctx, opID, model.OpStatusArchiving, msg)
		return fmt.Errorf("%s", msg)
	}

	now := time.Now()
	applied, err := p.ops.UpdateStatus(ctx, opID, model.OpStatusArchiving, model.OpStatusArchived, map[string]interface{}{
		"completed_at": now,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize operation: %w", err)
	}
	if !applied {
		return nil
	}

	if err := p.files.MarkArchived(ctx, file.ID, op.TargetTier, key, now); err != nil {
		log.Printf("failed to update file record after archive: file=%s err=%v", file.ID, err)
	}

	// 源系统内容移除是尽力而为：归档副本已校验落盘
	if err := p.src.RemoveFile(ctx, op.ClientTenantID, file.DriveID, file.ItemID); err != nil {
		log.Printf("failed to remove source content: file=%s err=%v", file.ID, err)
	}

	p.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, "system:archive", "operation.archived", op.ID, model.AuditDetails{
		"file_id": file.ID, "tier": op.TargetTier, "size_bytes": file.SizeBytes,
	})
	return nil
}

// fail 记录终态失败：设置错误信息，CompletedAt 保持为空
func (p *ArchivePipeline) fail(ctx context.Context, opID, from, message string) {
	applied, err := p.ops.UpdateStatus(ctx, opID, from, model.OpStatusFailed, map[string]interface{}{
		"error_message": message,
	})
	if err != nil {
		log.Printf("failed to record failure: op=%s err=%v", opID, err)
		return
	}
	if applied {
		op, err := p.ops.GetByID(ctx, opID)
		if err == nil {
			p.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, "system:archive", "operation.failed", opID, model.AuditDetails{
				"error": message,
			})
		}
	}
}

// retryTransient 对瞬态 I/O 错误做有限指数退避重试
func retryTransient(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, transferAttempts-1), ctx))
}

// drainClose 读尽并关闭，避免连接复用中断
func drainClose(rc io.ReadCloser) {
	io.Copy(io.Discard, rc)
	rc.Close()
}
