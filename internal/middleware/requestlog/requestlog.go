// Package requestlog provides middleware that tags and logs every request
package requestlog

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/logger"
)

const (
	// HeaderRequestID is echoed back to the client; an incoming value is reused
	HeaderRequestID = "X-Request-ID"
	contextKey      = "request_id"
)

// New returns a middleware function that logs request details
func New() gin.HandlerFunc {
	log := logger.HTTP()

	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set(contextKey, requestID)
		c.Header(HeaderRequestID, requestID)

		log.Debug("Request started",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"remote_addr", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		c.Next()

		status := c.Writer.Status()
		logLevel := log.Info
		if status >= 500 {
			logLevel = log.Error
		} else if status >= 400 {
			logLevel = log.Warn
		}

		logLevel("Request completed",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(startTime),
			"size", c.Writer.Size(),
		)
	}
}

// RequestID returns the id assigned to the current request
func RequestID(c *gin.Context) string {
	return c.GetString(contextKey)
}
