package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mspkit/tierkeep/internal/middleware"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service"
	"github.com/mspkit/tierkeep/internal/service/rules"
)

// RuleHandler 归档规则处理器
type RuleHandler struct {
	svc *service.Services
}

// NewRuleHandler 创建规则处理器
func NewRuleHandler(svc *service.Services) *RuleHandler {
	return &RuleHandler{svc: svc}
}

// tenantID 校验租户归属后返回租户 ID
func (h *RuleHandler) tenantID(c *gin.Context) (string, bool) {
	t, err := h.svc.Tenant.Get(c.Request.Context(), middleware.GetOrgID(c), c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return "", false
	}
	return t.ID, true
}

// CreateRule 创建规则
func (h *RuleHandler) CreateRule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req rules.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor := ""
	if user, ok := middleware.GetCurrentUser(c); ok {
		actor = user.Email
	}

	rule, err := h.svc.Rules.Create(c.Request.Context(), tenantID, actor, &req)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Created(c, rule)
}

// GetRule 获取规则
func (h *RuleHandler) GetRule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	rule, err := h.svc.Rules.Get(c.Request.Context(), tenantID, c.Param("rule_id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, rule)
}

// ListRules 列出租户规则
func (h *RuleHandler) ListRules(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	ruleList, err := h.svc.Rules.List(c.Request.Context(), tenantID)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, ruleList)
}

// UpdateRule 更新规则
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req rules.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	rule, err := h.svc.Rules.Update(c.Request.Context(), tenantID, c.Param("rule_id"), &req)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, rule)
}

// DeleteRule 删除规则
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	if err := h.svc.Rules.Delete(c.Request.Context(), tenantID, c.Param("rule_id")); err != nil {
		NotFound(c, err.Error())
		return
	}
	NoContent(c)
}

// PreviewRule 试算一条已保存规则的影响面
func (h *RuleHandler) PreviewRule(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	preview, err := h.svc.Estimate.PreviewRule(c.Request.Context(), tenantID, c.Param("rule_id"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, preview)
}

// PreviewDraft 试算一条未保存的规则草稿
func (h *RuleHandler) PreviewDraft(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req struct {
		RuleType   string              `json:"rule_type" binding:"required"`
		Criteria   *model.RuleCriteria `json:"criteria" binding:"required"`
		TargetTier string              `json:"target_tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	preview, err := h.svc.Estimate.PreviewDraft(c.Request.Context(), tenantID, req.RuleType, req.Criteria, req.TargetTier)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, preview)
}
