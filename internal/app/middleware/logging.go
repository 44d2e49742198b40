package middleware

import (
	"time"

	"otelmobile/pkg/logger"

	"github.com/gin-gonic/gin"
)

func LoggingMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		l.Info("request completed",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "query", Value: query},
			logger.Field{Key: "method", Value: c.Request.Method},
			logger.Field{Key: "status", Value: c.Writer.Status()},
			logger.Field{Key: "latency", Value: time.Since(start).String()},
		)
	}
}
