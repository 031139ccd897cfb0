package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mspkit/tierkeep/internal/middleware"
	"github.com/mspkit/tierkeep/internal/service"
)

// RetrievalHandler 取回处理器
type RetrievalHandler struct {
	svc *service.Services
}

// NewRetrievalHandler 创建取回处理器
func NewRetrievalHandler(svc *service.Services) *RetrievalHandler {
	return &RetrievalHandler{svc: svc}
}

// RequestRetrieval 发起文件取回
func (h *RetrievalHandler) RequestRetrieval(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := h.svc.Tenant.Get(ctx, middleware.GetOrgID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}

	var req struct {
		FileID string `json:"file_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor := ""
	if user, ok := middleware.GetCurrentUser(c); ok {
		actor = user.Email
	}

	op, err := h.svc.Retrieve.Request(ctx, t, req.FileID, actor)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, op)
}

// GetRetrieval 获取取回操作详情
func (h *RetrievalHandler) GetRetrieval(c *gin.Context) {
	ctx := c.Request.Context()

	op, err := h.svc.Repo.Retrieval.GetByID(ctx, c.Param("op_id"))
	if err != nil {
		NotFound(c, "retrieval not found")
		return
	}
	if _, err := h.svc.Tenant.Get(ctx, middleware.GetOrgID(c), op.ClientTenantID); err != nil {
		NotFound(c, "retrieval not found")
		return
	}
	Success(c, op)
}

// ListRetrievals 列出租户取回操作
func (h *RetrievalHandler) ListRetrievals(c *gin.Context) {
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

	ops, total, err := h.svc.Repo.Retrieval.ListByTenant(ctx, t.ID, (page-1)*pageSize, pageSize)
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, ops, total, page, pageSize)
}
