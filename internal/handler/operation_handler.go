package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mspkit/tierkeep/internal/middleware"
	"github.com/mspkit/tierkeep/internal/service"
	"github.com/mspkit/tierkeep/internal/service/approval"
)

// OperationHandler 归档操作处理器
type OperationHandler struct {
	svc *service.Services
}

// NewOperationHandler 创建归档操作处理器
func NewOperationHandler(svc *service.Services) *OperationHandler {
	return &OperationHandler{svc: svc}
}

// ListOperations 列出租户的归档操作
func (h *OperationHandler) ListOperations(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := h.svc.Tenant.Get(ctx, middleware.GetOrgID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	ops, total, err := h.svc.Repo.Operation.ListByTenant(ctx, t.ID, c.Query("status"), (page-1)*pageSize, pageSize)
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, ops, total, page, pageSize)
}

// GetOperation 获取操作详情
func (h *OperationHandler) GetOperation(c *gin.Context) {
	ctx := c.Request.Context()

	op, err := h.svc.Repo.Operation.GetByID(ctx, c.Param("op_id"))
	if err != nil {
		NotFound(c, "operation not found")
		return
	}
	if _, err := h.svc.Tenant.Get(ctx, middleware.GetOrgID(c), op.ClientTenantID); err != nil {
		NotFound(c, "operation not found")
		return
	}
	Success(c, op)
}

// HandleAction 审批回调：approve / reject / review
// 重复提交同一结果幂等返回当前操作
func (h *OperationHandler) HandleAction(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
		Actor  string `json:"actor" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	op, err := h.svc.Approval.HandleAction(c.Request.Context(), c.Param("op_id"), req.Action, req.Actor, req.Reason)
	if err != nil {
		if errors.Is(err, approval.ErrInvalidAction) {
			BadRequest(c, err.Error())
			return
		}
		Error(c, err)
		return
	}
	Success(c, op)
}

// ResolveVeto 处置被否决的操作：accept / override / exclude
func (h *OperationHandler) ResolveVeto(c *gin.Context) {
	var req struct {
		Resolution string `json:"resolution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor := ""
	if user, ok := middleware.GetCurrentUser(c); ok {
		actor = user.Email
	}

	op, err := h.svc.Approval.ResolveVeto(c.Request.Context(), c.Param("op_id"), req.Resolution, actor)
	if err != nil {
		if errors.Is(err, approval.ErrInvalidResolution) || errors.Is(err, approval.ErrNotVetoed) {
			BadRequest(c, err.Error())
			return
		}
		Error(c, err)
		return
	}
	Success(c, op)
}
