package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mspkit/tierkeep/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// Health 健康检查
func (h *SystemHandler) Health(c *gin.Context) {
	sqlDB, err := h.svc.Repo.DB.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		c.JSON(503, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	c.JSON(200, gin.H{
		"status":  "ok",
		"name":    h.svc.Config.App.Name,
		"version": h.svc.Config.App.Version,
	})
}
