package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/pkg/logger"
)

// RequestLogger logs each request once it completes. Paths in quiet are
// logged at debug level, as health probes and progress polling would
// otherwise drown the log.
func RequestLogger(quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		// request, session and agent ids come from the request context
		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("request completed", attrs...)
		case status >= 400:
			log.Warn("request completed", attrs...)
		case skip[c.FullPath()] && c.Request.Method == "GET":
			log.Debug("request completed", attrs...)
		default:
			log.Info("request completed", attrs...)
		}
	}
}
