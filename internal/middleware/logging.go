package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware 日志中间件
// 认证通过后带上 MSP 组织标识，便于按组织排查归档 API 调用
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		org := c.GetString("msp_org_id")
		if org == "" {
			org = "-"
		}

		log.Printf("[%s] %s %s | Org: %s | Status: %d | Latency: %v",
			c.Request.Method,
			path,
			query,
			org,
			c.Writer.Status(),
			latency,
		)
	}
}
