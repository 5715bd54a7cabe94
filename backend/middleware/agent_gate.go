package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/agent"
	"github.com/shhady/leadform/backend/pkg/logger"
)

// InvalidAgentRedirect is where unknown agent links are sent.
const InvalidAgentRedirect = "/?error=invalid-agent"

// AgentGate lets a page route through only when its :agent segment is on the
// allow-list. Unknown agents are redirected home with an error flag.
func AgentGate(registry *agent.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("agent")
		a, ok := registry.Lookup(id)
		if !ok {
			slog.Info("unknown agent link", "agent", id, "path", c.Request.URL.Path, "request_id", GetRequestID(c))
			c.Redirect(http.StatusFound, InvalidAgentRedirect)
			c.Abort()
			return
		}

		c.Set("agent", a.ID)
		c.Request = c.Request.WithContext(logger.WithValue(c.Request.Context(), logger.AgentKey, a.ID))
		c.Next()
	}
}
