package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mspkit/tierkeep/internal/handler"
	"github.com/mspkit/tierkeep/internal/middleware"
	"github.com/mspkit/tierkeep/internal/model"
	"github.com/mspkit/tierkeep/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// 健康检查与指标
	r.GET("/health", h.System.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		protected := v1.Group("")
		protected.Use(middleware.RequireAuth(svc))
		{
			protected.GET("/auth/me", h.Auth.Me)
			protected.POST("/auth/change-password", h.Auth.ChangePassword)

			// 客户租户
			tenants := protected.Group("/tenants")
			{
				tenants.POST("", h.Tenant.CreateTenant)
				tenants.GET("", h.Tenant.ListTenants)
				tenants.GET("/:id", h.Tenant.GetTenant)
				tenants.PATCH("/:id/settings", h.Tenant.UpdateSettings)
				tenants.PUT("/:id/status", h.Tenant.SetStatus)
				tenants.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.Tenant.DeleteTenant)

				// 扫描
				tenants.GET("/:id/scans", h.Tenant.ListScanRuns)
				tenants.POST("/:id/scans", h.Tenant.TriggerScan)

				// 归档规则
				tenants.POST("/:id/rules", h.Rule.CreateRule)
				tenants.GET("/:id/rules", h.Rule.ListRules)
				tenants.GET("/:id/rules/:rule_id", h.Rule.GetRule)
				tenants.PUT("/:id/rules/:rule_id", h.Rule.UpdateRule)
				tenants.DELETE("/:id/rules/:rule_id", h.Rule.DeleteRule)
				tenants.GET("/:id/rules/:rule_id/preview", h.Rule.PreviewRule)
				tenants.POST("/:id/rules/preview", h.Rule.PreviewDraft)

				// 归档操作与取回
				tenants.GET("/:id/operations", h.Operation.ListOperations)
				tenants.POST("/:id/retrievals", h.Retrieval.RequestRetrieval)
				tenants.GET("/:id/retrievals", h.Retrieval.ListRetrievals)

				// 节省快照
				tenants.GET("/:id/snapshots", h.Snapshot.ListSnapshots)
			}

			// 归档操作（跨租户按操作 ID 访问）
			operations := protected.Group("/operations")
			{
				operations.GET("/:op_id", h.Operation.GetOperation)
				operations.POST("/:op_id/action", h.Operation.HandleAction)
				operations.POST("/:op_id/resolve", h.Operation.ResolveVeto)
			}

			// 取回操作
			retrievals := protected.Group("/retrievals")
			{
				retrievals.GET("/:op_id", h.Retrieval.GetRetrieval)
			}

			// 组织级节省汇总
			snapshots := protected.Group("/snapshots")
			{
				snapshots.GET("/summary", h.Snapshot.GetOrgSummary)
				snapshots.POST("/capture", middleware.RequireRole(model.RoleAdmin), h.Snapshot.TriggerCapture)
			}
		}
	}

	return r
}
