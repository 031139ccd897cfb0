package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mspkit/tierkeep/internal/middleware"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service"
)

// SnapshotHandler 月度节省快照处理器
type SnapshotHandler struct {
	svc *service.Services
}

// NewSnapshotHandler 创建快照处理器
func NewSnapshotHandler(svc *service.Services) *SnapshotHandler {
	return &SnapshotHandler{svc: svc}
}

// ListSnapshots 列出租户历史快照
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgID(c)

	t, err := h.svc.Tenant.Get(ctx, orgID, c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "12"))
	if limit < 1 || limit > 60 {
		limit = 12
	}
	snapshots, err := h.svc.Repo.Snapshot.ListByTenant(ctx, orgID, t.ID, limit)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, snapshots)
}

// GetOrgSummary 获取组织级汇总快照
func (h *SnapshotHandler) GetOrgSummary(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgID(c)

	monthKey := c.DefaultQuery("month", model.MonthKeyFor(time.Now()))
	snapshot, err := h.svc.Repo.Snapshot.GetByMonth(ctx, orgID, "", monthKey)
	if err != nil {
		NotFound(c, "no snapshot for month "+monthKey)
		return
	}
	Success(c, snapshot)
}

// TriggerCapture 手动触发快照捕获
// 幂等：同月重复触发覆盖为最新值
func (h *SnapshotHandler) TriggerCapture(c *gin.Context) {
	if err := h.svc.Snapshot.Run(c.Request.Context(), time.Now()); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"captured": true})
}
