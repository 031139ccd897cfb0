// Package approval 审批工作流单元测试
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service/notify"
	"github.com/mspkit/tierkeep/internal/service/rules"
)

func intPtr(v int) *int { return &v }

// mockOpStore 内存操作存储
type mockOpStore struct {
	mu  sync.Mutex
	ops map[string]*model.ArchiveOperation
}

func newMockOpStore() *mockOpStore {
	return &mockOpStore{ops: make(map[string]*model.ArchiveOperation)}
}

func (m *mockOpStore) CreateIfAbsent(ctx context.Context, op *model.ArchiveOperation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ops[op.ID]; exists {
		return false, nil
	}
	cp := *op
	m.ops[op.ID] = &cp
	return true, nil
}

func (m *mockOpStore) GetByID(ctx context.Context, id string) (*model.ArchiveOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation not found: %s", id)
	}
	cp := *op
	return &cp, nil
}

func (m *mockOpStore) GetLatestByFile(ctx context.Context, fileID string) (*model.ArchiveOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.ArchiveOperation
	for _, op := range m.ops {
		if op.FileID != fileID {
			continue
		}
		if latest == nil || op.Cycle > latest.Cycle {
			latest = op
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *mockOpStore) ListPendingBySites(ctx context.Context, tenantID string, siteIDs []string) ([]*model.ArchiveOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ArchiveOperation
	for _, op := range m.ops {
		if op.ClientTenantID != tenantID || op.Status != model.OpStatusPending {
			continue
		}
		for _, sid := range siteIDs {
			if op.SiteID == sid {
				cp := *op
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (m *mockOpStore) ListAwaitingBefore(ctx context.Context, tenantID string, before time.Time) ([]*model.ArchiveOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ArchiveOperation
	for _, op := range m.ops {
		if op.ClientTenantID != tenantID || op.Status != model.OpStatusAwaitingApproval {
			continue
		}
		if op.AwaitingSince != nil && op.AwaitingSince.Before(before) {
			cp := *op
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOpStore) UpdateStatus(ctx context.Context, id, from, to string, fields map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok || op.Status != from {
		return false, nil
	}
	op.Status = to
	for k, v := range fields {
		switch k {
		case "approved_by":
			op.ApprovedBy = strField(v)
		case "approved_at":
			op.ApprovedAt = timeField(v)
		case "vetoed_by":
			op.VetoedBy = strField(v)
		case "veto_reason":
			op.VetoReason = strField(v)
		case "vetoed_at":
			op.VetoedAt = timeField(v)
		case "completed_at":
			op.CompletedAt = timeField(v)
		}
	}
	return true, nil
}

// strField 字段值转指针，nil 表示置空
func strField(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func timeField(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func (m *mockOpStore) BatchSetAwaiting(ctx context.Context, tenantID string, siteIDs []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, op := range m.ops {
		if op.ClientTenantID != tenantID || op.Status != model.OpStatusPending {
			continue
		}
		for _, sid := range siteIDs {
			if op.SiteID == sid {
				op.Status = model.OpStatusAwaitingApproval
				t := at
				op.AwaitingSince = &t
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *mockOpStore) SetConversation(ctx context.Context, ids []string, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if op, ok := m.ops[id]; ok {
			cid := conversationID
			op.ConversationID = &cid
		}
	}
	return nil
}

// mockTenantStore 内存租户存储
type mockTenantStore struct {
	tenants map[string]*model.ClientTenant
}

func (m *mockTenantStore) GetByID(ctx context.Context, id string) (*model.ClientTenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	return t, nil
}

func (m *mockTenantStore) ListConnected(ctx context.Context) ([]*model.ClientTenant, error) {
	var out []*model.ClientTenant
	for _, t := range m.tenants {
		if t.Status == model.TenantStatusConnected {
			out = append(out, t)
		}
	}
	return out, nil
}

// mockFileStore 内存文件存储
type mockFileStore struct {
	mu    sync.Mutex
	files map[string]*model.FileRecord
}

func (m *mockFileStore) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	cp := *f
	return &cp, nil
}

func (m *mockFileStore) SetArchiveStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.ArchiveStatus != fromStatus {
		return false, nil
	}
	f.ArchiveStatus = toStatus
	return true, nil
}

// mockRuleStore 记录创建的排除规则
type mockRuleStore struct {
	mu      sync.Mutex
	created []*model.ArchiveRule
}

func (m *mockRuleStore) Create(ctx context.Context, rule *model.ArchiveRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, rule)
	return nil
}

// fakeChannel 可编程的通知渠道
type fakeChannel struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (c *fakeChannel) SendApprovalRequest(ctx context.Context, group *notify.ApprovalGroup) (*notify.DeliveryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return nil, errors.New("channel unavailable")
	}
	return &notify.DeliveryResult{Delivered: true, ConversationID: "conv-" + group.SiteID}, nil
}

type fixture struct {
	ops      *mockOpStore
	tenants  *mockTenantStore
	files    *mockFileStore
	rules    *mockRuleStore
	channel  *fakeChannel
	workflow *Workflow
}

func newFixture() *fixture {
	f := &fixture{
		ops:     newMockOpStore(),
		tenants: &mockTenantStore{tenants: make(map[string]*model.ClientTenant)},
		files:   &mockFileStore{files: make(map[string]*model.FileRecord)},
		rules:   &mockRuleStore{},
		channel: &fakeChannel{},
	}
	dispatcher := notify.NewDispatcher(f.channel, 3, time.Millisecond)
	f.workflow = NewWorkflow(f.ops, f.tenants, f.files, f.rules, dispatcher, nil)
	return f
}

func (f *fixture) addTenant(id string, autoApprovalDays *int) *model.ClientTenant {
	t := &model.ClientTenant{
		ID:               id,
		MspOrgID:         "org-1",
		Status:           model.TenantStatusConnected,
		AutoApprovalDays: autoApprovalDays,
	}
	f.tenants.tenants[id] = t
	return t
}

func (f *fixture) addFile(id, siteID string) *model.FileRecord {
	file := &model.FileRecord{
		ID:             id,
		ClientTenantID: "tenant-1",
		SiteID:         siteID,
		SiteName:       "Site " + siteID,
		DriveID:        "drive-" + id,
		ItemID:         "item-" + id,
		Name:           id + ".pdf",
		FolderPath:     "/docs",
		OwnerID:        "owner-1",
		OwnerEmail:     "owner@example.com",
		SizeBytes:      1024,
		ArchiveStatus:  model.FileStatusActive,
	}
	f.files.files[id] = file
	return file
}

func archiveMatch(ruleID string) *rules.Result {
	return &rules.Result{MatchedArchiveRuleID: ruleID, TargetTier: model.TierCool}
}

// ========== EnqueueMatch 测试 ==========

func TestEnqueueMatch_CreatesFirstCycle(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")

	op, err := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	if err != nil {
		t.Fatalf("EnqueueMatch() unexpected error: %v", err)
	}
	if op == nil {
		t.Fatal("EnqueueMatch() returned nil operation")
	}
	if op.Cycle != 1 {
		t.Errorf("Cycle = %d, want 1", op.Cycle)
	}
	if op.Status != model.OpStatusPending {
		t.Errorf("Status = %q, want %q", op.Status, model.OpStatusPending)
	}
	if op.ID != model.OperationID("tenant-1", file.DriveID, file.ItemID, model.ActionArchive, 1) {
		t.Error("operation ID must derive from file identity and cycle")
	}
}

func TestEnqueueMatch_ActiveCycleBlocksDuplicate(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")

	first, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	if first == nil {
		t.Fatal("first enqueue should create an operation")
	}

	dup, err := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	if err != nil {
		t.Fatalf("EnqueueMatch() unexpected error: %v", err)
	}
	if dup != nil {
		t.Error("re-scan during an active cycle must be a no-op")
	}
}

func TestEnqueueMatch_CycleAdvancesAfterFailure(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")

	first, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	f.ops.mu.Lock()
	f.ops.ops[first.ID].Status = model.OpStatusFailed
	f.ops.mu.Unlock()

	next, err := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	if err != nil {
		t.Fatalf("EnqueueMatch() unexpected error: %v", err)
	}
	if next == nil {
		t.Fatal("failed cycle should allow a new one")
	}
	if next.Cycle != 2 {
		t.Errorf("Cycle = %d, want 2", next.Cycle)
	}
}

func TestEnqueueMatch_ArchivedAndExcludedStayTerminal(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)

	for _, status := range []string{model.OpStatusArchived, model.OpStatusExcluded} {
		file := f.addFile("file-"+status, "site-a")
		op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
		f.ops.mu.Lock()
		f.ops.ops[op.ID].Status = status
		f.ops.mu.Unlock()

		next, err := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
		if err != nil {
			t.Fatalf("EnqueueMatch() unexpected error: %v", err)
		}
		if next != nil {
			t.Errorf("latest status %q must not open a new cycle", status)
		}
	}
}

func TestEnqueueMatch_IgnoresExclusionsAndMisses(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")

	if op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, &rules.Result{IsExcluded: true}); op != nil {
		t.Error("excluded file must not enqueue")
	}
	if op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, &rules.Result{}); op != nil {
		t.Error("unmatched file must not enqueue")
	}
}

// ========== RequestApprovals 测试 ==========

func TestRequestApprovals_NotifiesAndSetsAwaiting(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))

	if err := f.workflow.RequestApprovals(context.Background(), "tenant-1", []string{"site-a"}); err != nil {
		t.Fatalf("RequestApprovals() unexpected error: %v", err)
	}

	got, _ := f.ops.GetByID(context.Background(), op.ID)
	if got.Status != model.OpStatusAwaitingApproval {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusAwaitingApproval)
	}
	if got.ConversationID == nil || *got.ConversationID != "conv-site-a" {
		t.Errorf("ConversationID = %v, want conv-site-a", got.ConversationID)
	}
	if f.channel.calls != 1 {
		t.Errorf("channel called %d times, want 1", f.channel.calls)
	}

	fileAfter, _ := f.files.GetByID(context.Background(), "file-1")
	if fileAfter.ArchiveStatus != model.FileStatusAwaitingApproval {
		t.Errorf("file ArchiveStatus = %q, want %q", fileAfter.ArchiveStatus, model.FileStatusAwaitingApproval)
	}
}

func TestRequestApprovals_ImmediateAutoApproval(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", intPtr(0))
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))

	if err := f.workflow.RequestApprovals(context.Background(), "tenant-1", []string{"site-a"}); err != nil {
		t.Fatalf("RequestApprovals() unexpected error: %v", err)
	}

	got, _ := f.ops.GetByID(context.Background(), op.ID)
	if got.Status != model.OpStatusApproved {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusApproved)
	}
	if f.channel.calls != 0 {
		t.Errorf("immediate approval must not notify, channel called %d times", f.channel.calls)
	}
}

func TestRequestApprovals_DeliveryFailureDoesNotBlock(t *testing.T) {
	f := newFixture()
	f.channel.fail = true
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))

	if err := f.workflow.RequestApprovals(context.Background(), "tenant-1", []string{"site-a"}); err != nil {
		t.Fatalf("RequestApprovals() must not fail on undelivered notification: %v", err)
	}

	got, _ := f.ops.GetByID(context.Background(), op.ID)
	if got.Status != model.OpStatusAwaitingApproval {
		t.Errorf("Status = %q, want %q even when undelivered", got.Status, model.OpStatusAwaitingApproval)
	}
	if got.ConversationID != nil {
		t.Errorf("undelivered group must not record a conversation, got %q", *got.ConversationID)
	}
	if f.channel.calls != 3 {
		t.Errorf("channel called %d times, want 3 attempts", f.channel.calls)
	}
}

// ========== TickAutoApprovals 测试 ==========

func TestTickAutoApprovals(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		days       *int
		waitedDays int
		want       string
	}{
		{"nil means never", nil, 400, model.OpStatusAwaitingApproval},
		{"not yet due", intPtr(7), 3, model.OpStatusAwaitingApproval},
		{"due", intPtr(7), 10, model.OpStatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tenant := f.addTenant("tenant-1", tt.days)
			file := f.addFile("file-1", "site-a")
			op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))

			requested := now.AddDate(0, 0, -tt.waitedDays)
			f.ops.mu.Lock()
			f.ops.ops[op.ID].Status = model.OpStatusAwaitingApproval
			f.ops.ops[op.ID].AwaitingSince = &requested
			f.ops.mu.Unlock()

			if err := f.workflow.TickAutoApprovals(context.Background(), now); err != nil {
				t.Fatalf("TickAutoApprovals() unexpected error: %v", err)
			}

			got, _ := f.ops.GetByID(context.Background(), op.ID)
			if got.Status != tt.want {
				t.Errorf("Status = %q, want %q", got.Status, tt.want)
			}
		})
	}
}

// ========== HandleAction 测试 ==========

func TestHandleAction_ApproveAndIdempotency(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	f.ops.mu.Lock()
	f.ops.ops[op.ID].Status = model.OpStatusAwaitingApproval
	f.ops.mu.Unlock()

	got, err := f.workflow.HandleAction(context.Background(), op.ID, ActionApprove, "owner@example.com", "")
	if err != nil {
		t.Fatalf("HandleAction() unexpected error: %v", err)
	}
	if got.Status != model.OpStatusApproved {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusApproved)
	}

	again, err := f.workflow.HandleAction(context.Background(), op.ID, ActionApprove, "owner@example.com", "")
	if err != nil {
		t.Fatalf("repeated approve must be a no-op, got error: %v", err)
	}
	if again.Status != model.OpStatusApproved {
		t.Errorf("repeated approve Status = %q, want %q", again.Status, model.OpStatusApproved)
	}
}

func TestHandleAction_Reject(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	f.ops.mu.Lock()
	f.ops.ops[op.ID].Status = model.OpStatusAwaitingApproval
	f.ops.mu.Unlock()

	got, err := f.workflow.HandleAction(context.Background(), op.ID, ActionReject, "owner@example.com", "still needed")
	if err != nil {
		t.Fatalf("HandleAction() unexpected error: %v", err)
	}
	if got.Status != model.OpStatusVetoed {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusVetoed)
	}
}

func TestHandleAction_TerminalStatesDoNotRegress(t *testing.T) {
	tests := []struct {
		status string
		action string
	}{
		{model.OpStatusFailed, ActionApprove},
		{model.OpStatusArchived, ActionReject},
		{model.OpStatusVetoAccepted, ActionApprove},
		{model.OpStatusVetoOverridden, ActionReject},
		{model.OpStatusExcluded, ActionApprove},
	}
	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.action, func(t *testing.T) {
			f := newFixture()
			tenant := f.addTenant("tenant-1", nil)
			file := f.addFile("file-1", "site-a")
			op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
			f.ops.mu.Lock()
			f.ops.ops[op.ID].Status = tt.status
			f.ops.mu.Unlock()

			got, err := f.workflow.HandleAction(context.Background(), op.ID, tt.action, "owner@example.com", "too late")
			if err != nil {
				t.Fatalf("HandleAction() on terminal operation unexpected error: %v", err)
			}
			if got.Status != tt.status {
				t.Errorf("Status = %q, terminal state must not change from %q", got.Status, tt.status)
			}
		})
	}
}

func TestHandleAction_VetoedNotApprovableDirectly(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	f.ops.mu.Lock()
	f.ops.ops[op.ID].Status = model.OpStatusVetoed
	f.ops.mu.Unlock()

	// 否决后只能经由 ResolveVeto 处置，审批回调不得推进
	got, err := f.workflow.HandleAction(context.Background(), op.ID, ActionApprove, "admin@msp.com", "")
	if err != nil {
		t.Fatalf("HandleAction() unexpected error: %v", err)
	}
	if got.Status != model.OpStatusVetoed {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusVetoed)
	}
}

func TestHandleAction_VetoClearsApproval(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	f.ops.mu.Lock()
	f.ops.ops[op.ID].Status = model.OpStatusAwaitingApproval
	f.ops.mu.Unlock()

	if _, err := f.workflow.HandleAction(context.Background(), op.ID, ActionApprove, "owner@example.com", ""); err != nil {
		t.Fatalf("approve unexpected error: %v", err)
	}
	got, err := f.workflow.HandleAction(context.Background(), op.ID, ActionReject, "admin@msp.com", "hold everything")
	if err != nil {
		t.Fatalf("reject unexpected error: %v", err)
	}

	if got.Status != model.OpStatusVetoed {
		t.Fatalf("Status = %q, want %q", got.Status, model.OpStatusVetoed)
	}
	if got.VetoedBy == nil || *got.VetoedBy != "admin@msp.com" {
		t.Errorf("VetoedBy = %v, want admin@msp.com", got.VetoedBy)
	}
	if got.ApprovedBy != nil {
		t.Errorf("ApprovedBy = %q, must be cleared when the operation is vetoed", *got.ApprovedBy)
	}
	if got.ApprovedAt != nil {
		t.Error("ApprovedAt must be cleared when the operation is vetoed")
	}
}

func TestHandleAction_InvalidAction(t *testing.T) {
	f := newFixture()
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))

	_, err := f.workflow.HandleAction(context.Background(), op.ID, "escalate", "owner@example.com", "")
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("HandleAction() error = %v, want ErrInvalidAction", err)
	}
}

// ========== ResolveVeto 测试 ==========

func vetoedOp(f *fixture) *model.ArchiveOperation {
	tenant := f.addTenant("tenant-1", nil)
	file := f.addFile("file-1", "site-a")
	op, _ := f.workflow.EnqueueMatch(context.Background(), tenant, file, archiveMatch("rule-1"))
	f.ops.mu.Lock()
	f.ops.ops[op.ID].Status = model.OpStatusVetoed
	f.ops.mu.Unlock()
	f.files.files["file-1"].ArchiveStatus = model.FileStatusAwaitingApproval
	return op
}

func TestResolveVeto_Accept(t *testing.T) {
	f := newFixture()
	op := vetoedOp(f)

	got, err := f.workflow.ResolveVeto(context.Background(), op.ID, ResolutionAccept, "admin@msp.com")
	if err != nil {
		t.Fatalf("ResolveVeto() unexpected error: %v", err)
	}
	if got.Status != model.OpStatusVetoAccepted {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusVetoAccepted)
	}

	file, _ := f.files.GetByID(context.Background(), "file-1")
	if file.ArchiveStatus != model.FileStatusActive {
		t.Errorf("file ArchiveStatus = %q, want %q", file.ArchiveStatus, model.FileStatusActive)
	}
}

func TestResolveVeto_OverrideOpensNextCycle(t *testing.T) {
	f := newFixture()
	op := vetoedOp(f)

	got, err := f.workflow.ResolveVeto(context.Background(), op.ID, ResolutionOverride, "admin@msp.com")
	if err != nil {
		t.Fatalf("ResolveVeto() unexpected error: %v", err)
	}
	if got.Status != model.OpStatusVetoOverridden {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusVetoOverridden)
	}

	next, _ := f.ops.GetLatestByFile(context.Background(), "file-1")
	if next.Cycle != op.Cycle+1 {
		t.Errorf("latest cycle = %d, want %d", next.Cycle, op.Cycle+1)
	}
	if next.Status != model.OpStatusPending {
		t.Errorf("requeued Status = %q, want %q", next.Status, model.OpStatusPending)
	}
}

func TestResolveVeto_ExcludeCreatesRule(t *testing.T) {
	f := newFixture()
	op := vetoedOp(f)

	got, err := f.workflow.ResolveVeto(context.Background(), op.ID, ResolutionExclude, "admin@msp.com")
	if err != nil {
		t.Fatalf("ResolveVeto() unexpected error: %v", err)
	}
	if got.Status != model.OpStatusExcluded {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusExcluded)
	}

	if len(f.rules.created) != 1 {
		t.Fatalf("created %d rules, want 1", len(f.rules.created))
	}
	rule := f.rules.created[0]
	if rule.RuleType != model.RuleTypeExclusion {
		t.Errorf("RuleType = %q, want %q", rule.RuleType, model.RuleTypeExclusion)
	}
	if rule.Criteria == nil || rule.Criteria.FolderPath == nil || !strings.Contains(*rule.Criteria.FolderPath, "file-1.pdf") {
		t.Errorf("exclusion rule must cover the vetoed file path, got %+v", rule.Criteria)
	}

	file, _ := f.files.GetByID(context.Background(), "file-1")
	if file.ArchiveStatus != model.FileStatusActive {
		t.Errorf("file ArchiveStatus = %q, want %q", file.ArchiveStatus, model.FileStatusActive)
	}
}

func TestResolveVeto_Errors(t *testing.T) {
	f := newFixture()
	op := vetoedOp(f)

	if _, err := f.workflow.ResolveVeto(context.Background(), op.ID, "punt", "admin@msp.com"); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("unknown resolution error = %v, want ErrInvalidResolution", err)
	}

	f.ops.mu.Lock()
	f.ops.ops[op.ID].Status = model.OpStatusAwaitingApproval
	f.ops.mu.Unlock()
	if _, err := f.workflow.ResolveVeto(context.Background(), op.ID, ResolutionAccept, "admin@msp.com"); !errors.Is(err, ErrNotVetoed) {
		t.Errorf("non-vetoed resolution error = %v, want ErrNotVetoed", err)
	}
}

func TestResolveVeto_IdempotentAfterTerminal(t *testing.T) {
	f := newFixture()
	op := vetoedOp(f)

	if _, err := f.workflow.ResolveVeto(context.Background(), op.ID, ResolutionAccept, "admin@msp.com"); err != nil {
		t.Fatalf("first resolve unexpected error: %v", err)
	}
	got, err := f.workflow.ResolveVeto(context.Background(), op.ID, ResolutionAccept, "admin@msp.com")
	if err != nil {
		t.Fatalf("repeated resolve must be a no-op, got error: %v", err)
	}
	if got.Status != model.OpStatusVetoAccepted {
		t.Errorf("Status = %q, want %q", got.Status, model.OpStatusVetoAccepted)
	}
}
