package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mspkit/tierkeep/internal/middleware"
	"github.com/mspkit/tierkeep/internal/service"
	"github.com/mspkit/tierkeep/internal/service/tenant"
)

// TenantHandler 客户租户处理器
type TenantHandler struct {
	svc *service.Services
}

// NewTenantHandler 创建租户处理器
func NewTenantHandler(svc *service.Services) *TenantHandler {
	return &TenantHandler{svc: svc}
}

// CreateTenant 创建租户
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var req tenant.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Tenant.Create(c.Request.Context(), middleware.GetOrgID(c), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, result)
}

// GetTenant 获取租户详情
func (h *TenantHandler) GetTenant(c *gin.Context) {
	result, err := h.svc.Tenant.Get(c.Request.Context(), middleware.GetOrgID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, result)
}

// ListTenants 列出组织下的租户
func (h *TenantHandler) ListTenants(c *gin.Context) {
	tenants, err := h.svc.Tenant.List(c.Request.Context(), middleware.GetOrgID(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, tenants)
}

// UpdateSettings 更新租户设置
func (h *TenantHandler) UpdateSettings(c *gin.Context) {
	var req tenant.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Tenant.UpdateSettings(c.Request.Context(), middleware.GetOrgID(c), c.Param("id"), &req)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, result)
}

// SetStatus 更新租户连接状态
func (h *TenantHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Tenant.SetStatus(c.Request.Context(), middleware.GetOrgID(c), c.Param("id"), req.Status)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, result)
}

// DeleteTenant 删除租户
func (h *TenantHandler) DeleteTenant(c *gin.Context) {
	if err := h.svc.Tenant.Delete(c.Request.Context(), middleware.GetOrgID(c), c.Param("id")); err != nil {
		NotFound(c, err.Error())
		return
	}
	NoContent(c)
}

// ListScanRuns 列出租户扫描历史
func (h *TenantHandler) ListScanRuns(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgID(c)
	tenantID := c.Param("id")

	if _, err := h.svc.Tenant.Get(ctx, orgID, tenantID); err != nil {
		NotFound(c, err.Error())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	runs, err := h.svc.Repo.Scan.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, runs)
}

// TriggerScan 手动触发租户扫描
// 与定时扫描共用去重语义：已有运行中扫描时为空操作
func (h *TenantHandler) TriggerScan(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := h.svc.Tenant.Get(ctx, middleware.GetOrgID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}

	if err := h.svc.Scan.StartScan(ctx, t); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"tenant_id": t.ID, "triggered": true})
}
