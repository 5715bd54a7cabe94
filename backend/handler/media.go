package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/pkg/logger"
	"github.com/shhady/leadform/backend/service"
)

type MediaHandler struct {
	host service.MediaHost
}

func NewMediaHandler(host service.MediaHost) *MediaHandler {
	return &MediaHandler{host: host}
}

type DeleteFileRequest struct {
	PublicID string `json:"public_id"`
}

// DeleteFile removes a hosted file by its public id.
func (h *MediaHandler) DeleteFile(c *gin.Context) {
	var req DeleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PublicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Public ID is required"})
		return
	}

	if err := h.host.Delete(c.Request.Context(), req.PublicID); err != nil {
		logger.Error(c.Request.Context(), "failed to delete file", "public_id", req.PublicID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
