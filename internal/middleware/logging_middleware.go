// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"ecf-service/internal/utils"
)

// LoggingMiddleware logs every request once it completes.
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		logger.LogAPIRequest(
			c.Request.Method,
			path,
			c.ClientIP(),
			c.GetString("request_id"),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
