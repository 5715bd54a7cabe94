package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/pkg/logger"
	"github.com/shhady/leadform/backend/service"
)

// Localized error returned when a submission could not be processed.
const MsgProcessingFailed = "שגיאה בעיבוד הבקשה"

type EmailHandler struct {
	pipeline *service.Pipeline
	maxBytes int64
}

func NewEmailHandler(pipeline *service.Pipeline, maxBytes int64) *EmailHandler {
	return &EmailHandler{pipeline: pipeline, maxBytes: maxBytes}
}

// Send handles a submitted form and runs it through the notification pipeline.
func (h *EmailHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.pipeline.Ready() {
		logger.Error(ctx, "mail provider credentials missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error: Missing API key"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	payload, err := service.ParsePayload(c.Request, h.maxBytes)
	if err != nil {
		logger.Warn(ctx, "invalid submission body", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MsgProcessingFailed})
		return
	}

	results, err := h.pipeline.Run(ctx, payload)
	if err != nil {
		logger.Error(ctx, "submission pipeline failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MsgProcessingFailed})
		return
	}

	logger.Info(ctx, "submission processed", "stages", len(results), "pdf_attached", payload.Attachment != nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
