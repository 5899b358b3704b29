package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/webdevsha/permitakaun/pkg/logger"
)

// HeaderRequestID is echoed back on every response
const HeaderRequestID = "X-Request-ID"

const contextKeyRequestID = "request_id"

// RequestID assigns a request id (reusing the inbound header when present) and stores it
// on both the gin context and the request context for logger.WithContext
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}

		c.Set(contextKeyRequestID, id)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, id)

		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "" when the middleware did not run
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(contextKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.GetHeader(HeaderRequestID)
}
