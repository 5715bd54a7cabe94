package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/agent"
)

type PageHandler struct {
	agents    *agent.Registry
	staticDir string
}

func NewPageHandler(agents *agent.Registry, staticDir string) *PageHandler {
	return &PageHandler{agents: agents, staticDir: staticDir}
}

// Index serves the single page app. Agent gating happens in middleware.
func (h *PageHandler) Index(c *gin.Context) {
	c.File(filepath.Join(h.staticDir, "index.html"))
}

// Agent returns the public details of a referral agent.
func (h *PageHandler) Agent(c *gin.Context) {
	a, ok := h.agents.Lookup(c.Param("agent"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}
