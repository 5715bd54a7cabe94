package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shhady/leadform/backend/pkg/logger"
)

// maxRequestIDLength bounds client supplied request ids.
const maxRequestIDLength = 64

// RequestID middleware reuses a sane X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		// Set request ID in response header
		c.Header("X-Request-ID", requestID)

		// Store in gin context
		c.Set("request_id", requestID)

		c.Request = c.Request.WithContext(logger.WithValue(c.Request.Context(), logger.RequestIDKey, requestID))

		c.Next()
	}
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
