package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderClientID  = "X-Client-ID"

	ContextRequestID = "request_id"
	ContextClientID  = "client_id"
)

// RequestContextMiddleware 注入 client_id 和 request_id，便于下游和日志使用。
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader(HeaderClientID)
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		if clientID != "" {
			c.Set(ContextClientID, clientID)
		}
		c.Set(ContextRequestID, reqID)
		c.Writer.Header().Set(HeaderRequestID, reqID)
		c.Next()
	}
}

// RequestID returns the id set by RequestContextMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}
