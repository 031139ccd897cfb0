// Package approval 提供归档操作的审批工作流
// 负责操作创建与去重、按站点负责人分组通知、审批/否决处理和自动审批计时
// 等待以持久化状态加外部计时器实现，不占用任何阻塞的调用栈
package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service/audit"
	"github.com/mspkit/tierkeep/internal/service/notify"
	"github.com/mspkit/tierkeep/internal/service/rules"
)

// 审批动作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionReview  = "review"
)

// 否决处置
const (
	ResolutionAccept   = "accept"
	ResolutionOverride = "override"
	ResolutionExclude  = "exclude"
)

// AutoApprovalActor 自动审批的记账主体
const AutoApprovalActor = "system:auto-approval"

var (
	// ErrInvalidAction 未知审批动作
	ErrInvalidAction = errors.New("invalid approval action")
	// ErrInvalidResolution 未知否决处置
	ErrInvalidResolution = errors.New("invalid veto resolution")
	// ErrNotVetoed 操作不处于否决状态
	ErrNotVetoed = errors.New("operation is not vetoed")
)

// OperationStore 操作存储接口
type OperationStore interface {
	CreateIfAbsent(ctx context.Context, op *model.ArchiveOperation) (bool, error)
	GetByID(ctx context.Context, id string) (*model.ArchiveOperation, error)
	GetLatestByFile(ctx context.Context, fileID string) (*model.ArchiveOperation, error)
	ListPendingBySites(ctx context.Context, tenantID string, siteIDs []string) ([]*model.ArchiveOperation, error)
	ListAwaitingBefore(ctx context.Context, tenantID string, before time.Time) ([]*model.ArchiveOperation, error)
	UpdateStatus(ctx context.Context, id, from, to string, fields map[string]interface{}) (bool, error)
	BatchSetAwaiting(ctx context.Context, tenantID string, siteIDs []string, at time.Time) (int64, error)
	SetConversation(ctx context.Context, ids []string, conversationID string) error
}

// TenantStore 租户读取接口
type TenantStore interface {
	GetByID(ctx context.Context, id string) (*model.ClientTenant, error)
	ListConnected(ctx context.Context) ([]*model.ClientTenant, error)
}

// FileStore 文件读取与状态迁移接口
type FileStore interface {
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	SetArchiveStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error)
}

// RuleStore 规则写入接口，否决排除处置时创建文件级排除规则
type RuleStore interface {
	Create(ctx context.Context, rule *model.ArchiveRule) error
}

// Workflow 审批工作流
type Workflow struct {
	ops        OperationStore
	tenants    TenantStore
	files      FileStore
	ruleStore  RuleStore
	dispatcher *notify.Dispatcher
	audit      *audit.Service
}

// NewWorkflow 创建审批工作流
func NewWorkflow(ops OperationStore, tenants TenantStore, files FileStore, ruleStore RuleStore, dispatcher *notify.Dispatcher, auditSvc *audit.Service) *Workflow {
	return &Workflow{
		ops:        ops,
		tenants:    tenants,
		files:      files,
		ruleStore:  ruleStore,
		dispatcher: dispatcher,
		audit:      auditSvc,
	}
}

// EnqueueMatch 为评估命中的文件创建 Pending 操作
// 操作 ID 由文件身份与逻辑周期确定性派生，重复入队是无害的空操作
// 返回新建的操作；文件已被未了结操作覆盖时返回 nil
func (w *Workflow) EnqueueMatch(ctx context.Context, tenant *model.ClientTenant, file *model.FileRecord, match *rules.Result) (*model.ArchiveOperation, error) {
	if match.IsExcluded || match.MatchedArchiveRuleID == "" {
		return nil, nil
	}
	if file.ArchiveStatus == model.FileStatusArchived {
		return nil, nil
	}

	latest, err := w.ops.GetLatestByFile(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest operation: %w", err)
	}

	cycle := 1
	if latest != nil {
		if !latest.IsTerminal() {
			// 已有未了结周期覆盖该文件
			return nil, nil
		}
		if latest.Status == model.OpStatusArchived || latest.Status == model.OpStatusExcluded {
			return nil, nil
		}
		cycle = latest.Cycle + 1
	}

	op := &model.ArchiveOperation{
		ID:             model.OperationID(tenant.ID, file.DriveID, file.ItemID, model.ActionArchive, cycle),
		MspOrgID:       tenant.MspOrgID,
		ClientTenantID: tenant.ID,
		FileID:         file.ID,
		SiteID:         file.SiteID,
		Cycle:          cycle,
		Status:         model.OpStatusPending,
		TargetTier:     match.TargetTier,
		MatchedRuleID:  match.MatchedArchiveRuleID,
	}

	created, err := w.ops.CreateIfAbsent(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}
	if !created {
		return nil, nil
	}

	w.audit.Log(ctx, tenant.MspOrgID, tenant.ID, "system:scan", "operation.created", op.ID, model.AuditDetails{
		"file_id": file.ID, "rule_id": match.MatchedArchiveRuleID, "target_tier": match.TargetTier, "cycle": cycle,
	})
	return op, nil
}

// Group 按站点负责人聚合的审批组
type Group = notify.ApprovalGroup

// GroupFilesBySiteOwner 将租户的 Pending 操作按站点负责人分组
func (w *Workflow) GroupFilesBySiteOwner(ctx context.Context, tenantID string, ops []*model.ArchiveOperation) ([]*Group, error) {
	byKey := make(map[string]*Group)
	for _, op := range ops {
		file, err := w.files.GetByID(ctx, op.FileID)
		if err != nil {
			return nil, fmt.Errorf("failed to load file %s: %w", op.FileID, err)
		}
		key := op.SiteID + "|" + file.OwnerEmail
		group, ok := byKey[key]
		if !ok {
			group = &Group{
				ClientTenantID: tenantID,
				SiteID:         op.SiteID,
				SiteName:       file.SiteName,
				OwnerID:        file.OwnerID,
				OwnerEmail:     file.OwnerEmail,
				TargetTier:     op.TargetTier,
			}
			byKey[key] = group
		}
		group.FileCount++
		group.TotalSizeBytes += file.SizeBytes
		group.OperationIDs = append(group.OperationIDs, op.ID)
	}

	groups := make([]*Group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].SiteID != groups[j].SiteID {
			return groups[i].SiteID < groups[j].SiteID
		}
		return groups[i].OwnerEmail < groups[j].OwnerEmail
	})
	return groups, nil
}

// RequestApprovals 将站点集合下的 Pending 操作推进到审批阶段
// 租户设置为立即审批（0 天）时跳过等待态直达 Approved；
// 否则批量迁移为等待审批并按组投递通知，投递失败不阻断计时器
func (w *Workflow) RequestApprovals(ctx context.Context, tenantID string, siteIDs []string) error {
	tenant, err := w.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	pending, err := w.ops.ListPendingBySites(ctx, tenantID, siteIDs)
	if err != nil {
		return fmt.Errorf("failed to list pending operations: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	if tenant.AutoApprovalDays != nil && *tenant.AutoApprovalDays == 0 {
		for _, op := range pending {
			w.approve(ctx, op, AutoApprovalActor)
		}
		return nil
	}

	now := time.Now()
	if _, err := w.ops.BatchSetAwaiting(ctx, tenantID, siteIDs, now); err != nil {
		return fmt.Errorf("failed to transition operations: %w", err)
	}

	groups, err := w.GroupFilesBySiteOwner(ctx, tenantID, pending)
	if err != nil {
		return err
	}

	for _, group := range groups {
		for _, opID := range group.OperationIDs {
			op, err := w.ops.GetByID(ctx, opID)
			if err != nil {
				continue
			}
			w.files.SetArchiveStatus(ctx, op.FileID, model.FileStatusActive, model.FileStatusAwaitingApproval)
		}

		result := w.dispatcher.Dispatch(ctx, group)
		if result.Delivered {
			if err := w.ops.SetConversation(ctx, group.OperationIDs, result.ConversationID); err != nil {
				log.Printf("failed to record conversation id: %v", err)
			}
		} else {
			log.Printf("approval notification undelivered: tenant=%s site=%s owner=%s attempts=%d err=%s",
				tenantID, group.SiteID, group.OwnerEmail, result.AttemptCount, result.ErrorMessage)
		}
		w.audit.Log(ctx, tenant.MspOrgID, tenantID, "system:approval", "approval.requested", group.SiteID, model.AuditDetails{
			"owner": group.OwnerEmail, "file_count": group.FileCount, "delivered": result.Delivered,
		})
	}
	return nil
}

// TickAutoApprovals 自动审批计时扫描
// 租户设置在到期时重新读取，管理员的修改对在途等待即时生效
func (w *Workflow) TickAutoApprovals(ctx context.Context, now time.Time) error {
	tenants, err := w.tenants.ListConnected(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	for _, tenant := range tenants {
		days := tenant.AutoApprovalDays
		if days == nil || *days < 1 {
			continue
		}
		due, err := w.ops.ListAwaitingBefore(ctx, tenant.ID, now.AddDate(0, 0, -*days))
		if err != nil {
			log.Printf("auto-approval scan failed: tenant=%s err=%v", tenant.ID, err)
			continue
		}
		for _, op := range due {
			w.approve(ctx, op, AutoApprovalActor)
		}
	}
	return nil
}

// HandleAction 处理审批回调动作
// 同一操作重复提交同一结果是空操作，不产生第二次副作用；
// 终态操作对任何回调保持不变，过期的审批链接点不回已失败或已归档的周期
func (w *Workflow) HandleAction(ctx context.Context, opID, action, actor, reason string) (*model.ArchiveOperation, error) {
	op, err := w.ops.GetByID(ctx, opID)
	if err != nil {
		return nil, fmt.Errorf("failed to load operation: %w", err)
	}

	switch action {
	case ActionApprove:
		if op.Status == model.OpStatusApproved || op.Status == model.OpStatusArchiving || op.Status == model.OpStatusArchived {
			return op, nil
		}
		w.approve(ctx, op, actor)
	case ActionReject:
		if op.Status == model.OpStatusVetoed {
			return op, nil
		}
		w.veto(ctx, op, actor, reason)
	case ActionReview:
		// 评审动作不迁移状态，只留痕
		w.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, actor, "operation.reviewed", op.ID, model.AuditDetails{
			"status": op.Status,
		})
		return op, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}

	return w.ops.GetByID(ctx, opID)
}

// approve 受控迁移到 Approved
// 迁移表不允许的来源状态（含所有终态）直接空操作，竞争失败同样视为成功空操作
func (w *Workflow) approve(ctx context.Context, op *model.ArchiveOperation, actor string) {
	if !model.CanTransition(op.Status, model.OpStatusApproved) {
		return
	}
	now := time.Now()
	applied, err := w.ops.UpdateStatus(ctx, op.ID, op.Status, model.OpStatusApproved, map[string]interface{}{
		"approved_by": actor,
		"approved_at": now,
	})
	if err != nil {
		log.Printf("approve failed: op=%s err=%v", op.ID, err)
		return
	}
	if applied {
		w.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, actor, "operation.approved", op.ID, nil)
	}
}

// veto 受控迁移到 Vetoed，非法来源状态空操作
// 已审批操作被否决时清空审批人字段：ApprovedBy 与 VetoedBy 至多保留其一
func (w *Workflow) veto(ctx context.Context, op *model.ArchiveOperation, actor, reason string) {
	if !model.CanTransition(op.Status, model.OpStatusVetoed) {
		return
	}
	now := time.Now()
	applied, err := w.ops.UpdateStatus(ctx, op.ID, op.Status, model.OpStatusVetoed, map[string]interface{}{
		"vetoed_by":   actor,
		"veto_reason": reason,
		"vetoed_at":   now,
		"approved_by": nil,
		"approved_at": nil,
	})
	if err != nil {
		log.Printf("veto failed: op=%s err=%v", op.ID, err)
		return
	}
	if applied {
		w.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, actor, "operation.vetoed", op.ID, model.AuditDetails{
			"reason": reason,
		})
	}
}

// ResolveVeto 处置被否决的操作
// accept：文件保持活跃，操作终结；override：开启新的 Pending 周期；
// exclude：创建文件级排除规则，操作终结且文件此后不再命中
func (w *Workflow) ResolveVeto(ctx context.Context, opID, resolution, actor string) (*model.ArchiveOperation, error) {
	op, err := w.ops.GetByID(ctx, opID)
	if err != nil {
		return nil, fmt.Errorf("failed to load operation: %w", err)
	}
	if op.Status != model.OpStatusVetoed {
		if terminalResolution(op.Status) {
			// 已处置过，幂等返回
			return op, nil
		}
		return nil, fmt.Errorf("%w: operation %s is %s", ErrNotVetoed, opID, op.Status)
	}

	now := time.Now()
	switch resolution {
	case ResolutionAccept:
		applied, err := w.ops.UpdateStatus(ctx, opID, model.OpStatusVetoed, model.OpStatusVetoAccepted, map[string]interface{}{
			"completed_at": now,
		})
		if err != nil {
			return nil, err
		}
		if applied {
			w.files.SetArchiveStatus(ctx, op.FileID, model.FileStatusAwaitingApproval, model.FileStatusActive)
			w.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, actor, "veto.accepted", op.ID, nil)
		}

	case ResolutionOverride:
		applied, err := w.ops.UpdateStatus(ctx, opID, model.OpStatusVetoed, model.OpStatusVetoOverridden, map[string]interface{}{
			"completed_at": now,
		})
		if err != nil {
			return nil, err
		}
		if applied {
			if err := w.requeue(ctx, op); err != nil {
				return nil, err
			}
			w.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, actor, "veto.overridden", op.ID, nil)
		}

	case ResolutionExclude:
		applied, err := w.ops.UpdateStatus(ctx, opID, model.OpStatusVetoed, model.OpStatusExcluded, map[string]interface{}{
			"completed_at": now,
		})
		if err != nil {
			return nil, err
		}
		if applied {
			if err := w.protectFile(ctx, op, actor); err != nil {
				return nil, err
			}
			w.files.SetArchiveStatus(ctx, op.FileID, model.FileStatusAwaitingApproval, model.FileStatusActive)
			w.audit.Log(ctx, op.MspOrgID, op.ClientTenantID, actor, "veto.excluded", op.ID, nil)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidResolution, resolution)
	}

	return w.ops.GetByID(ctx, opID)
}

// requeue 为同一文件开启下一个逻辑周期
func (w *Workflow) requeue(ctx context.Context, prev *model.ArchiveOperation) error {
	file, err := w.files.GetByID(ctx, prev.FileID)
	if err != nil {
		return fmt.Errorf("failed to load file: %w", err)
	}
	next := &model.ArchiveOperation{
		ID:             model.OperationID(prev.ClientTenantID, file.DriveID, file.ItemID, model.ActionArchive, prev.Cycle+1),
		MspOrgID:       prev.MspOrgID,
		ClientTenantID: prev.ClientTenantID,
		FileID:         prev.FileID,
		SiteID:         prev.SiteID,
		Cycle:          prev.Cycle + 1,
		Status:         model.OpStatusPending,
		TargetTier:     prev.TargetTier,
		MatchedRuleID:  prev.MatchedRuleID,
	}
	if _, err := w.ops.CreateIfAbsent(ctx, next); err != nil {
		return fmt.Errorf("failed to requeue operation: %w", err)
	}
	return nil
}

// protectFile 创建覆盖该文件路径的排除规则
func (w *Workflow) protectFile(ctx context.Context, op *model.ArchiveOperation, actor string) error {
	file, err := w.files.GetByID(ctx, op.FileID)
	if err != nil {
		return fmt.Errorf("failed to load file: %w", err)
	}
	filePath := path.Join(file.FolderPath, file.Name)
	rule := &model.ArchiveRule{
		ClientTenantID: op.ClientTenantID,
		Name:           fmt.Sprintf("Protect %s", file.Name),
		RuleType:       model.RuleTypeExclusion,
		Criteria:       &model.RuleCriteria{FolderPath: &filePath},
		IsActive:       true,
		CreatedBy:      actor,
	}
	if err := w.ruleStore.Create(ctx, rule); err != nil {
		return fmt.Errorf("failed to create exclusion rule: %w", err)
	}
	return nil
}

// terminalResolution 是否已是否决处置后的终态
func terminalResolution(status string) bool {
	switch status {
	case model.OpStatusVetoAccepted, model.OpStatusVetoOverridden, model.OpStatusExcluded:
		return true
	}
	return false
}
