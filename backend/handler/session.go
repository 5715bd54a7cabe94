package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shhady/leadform/backend/agent"
	"github.com/shhady/leadform/backend/form"
	"github.com/shhady/leadform/backend/middleware"
	"github.com/shhady/leadform/backend/model"
	"github.com/shhady/leadform/backend/pkg/logger"
	"github.com/shhady/leadform/backend/service"
)

// Localized messages for upload failures.
const (
	MsgFileTooLarge = "הקובץ גדול מדי. הגודל המקסימלי המותר הוא 8MB"
	MsgDeleteFailed = "שגיאה במחיקת הקובץ. אנא נסה שוב."
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

type SessionHandler struct {
	store       service.SessionStore
	coordinator *service.UploadCoordinator
	assembler   *service.Assembler
	agents      *agent.Registry
	secret      string
	ttl         time.Duration
	maxBytes    int64
}

func NewSessionHandler(
	store service.SessionStore,
	coordinator *service.UploadCoordinator,
	assembler *service.Assembler,
	agents *agent.Registry,
	secret string,
	ttl time.Duration,
	maxBytes int64,
) *SessionHandler {
	return &SessionHandler{
		store:       store,
		coordinator: coordinator,
		assembler:   assembler,
		agents:      agents,
		secret:      secret,
		ttl:         ttl,
		maxBytes:    maxBytes,
	}
}

type CreateSessionRequest struct {
	Agent string `json:"agent"`
}

type CreateSessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	Session   SessionView `json:"session"`
}

type FieldRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// SlotView is a slot as shown to the client. Attachment bytes stay server side.
type SlotView struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	Errored  bool   `json:"errored"`
}

type SessionView struct {
	ID          string                      `json:"id"`
	Agent       string                      `json:"agent,omitempty"`
	Fields      map[model.FieldName]string  `json:"fields"`
	FieldErrors map[model.FieldName]string  `json:"field_errors"`
	Slots       map[model.SlotName]SlotView `json:"slots"`
	Status      string                      `json:"status"`
	Message     model.Message               `json:"message"`
	Uploading   bool                        `json:"uploading"`
}

func NewSessionView(sub *model.Submission) SessionView {
	v := SessionView{
		ID:          sub.ID,
		Agent:       sub.Agent,
		Fields:      sub.Fields,
		FieldErrors: sub.FieldErrors,
		Slots:       make(map[model.SlotName]SlotView, len(model.Slots)),
		Status:      sub.Status,
		Message:     sub.Message,
	}
	for _, name := range model.Slots {
		s := sub.Slot(name)
		sv := SlotView{State: s.State, Progress: s.Progress, URL: s.URL, Errored: s.Errored}
		if s.Attachment != nil {
			sv.Filename = s.Attachment.Filename
		}
		if s.State == model.SlotInProgress {
			v.Uploading = true
		}
		v.Slots[name] = sv
	}
	return v
}

// Create starts a new form session, optionally tagged with a referring agent.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	if req.Agent != "" && !h.agents.Allowed(req.Agent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown agent"})
		return
	}

	sub := model.NewSubmission(uuid.New().String(), req.Agent)
	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		logger.Error(c.Request.Context(), "failed to create session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, expiresAt, err := middleware.GenerateSessionToken(sub.ID, sub.Agent, h.secret, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	logger.Info(c.Request.Context(), "session created", "session_id", sub.ID, "agent", sub.Agent)
	c.JSON(http.StatusCreated, CreateSessionResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Session:   NewSessionView(sub),
	})
}

// Get returns the session with per-slot progress.
func (h *SessionHandler) Get(c *gin.Context) {
	sub, err := h.store.Get(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionView(sub))
}

// UpdateField applies one input event to a field.
func (h *SessionHandler) UpdateField(c *gin.Context) {
	var req FieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !model.IsField(req.Name) {
		h.fail(c, service.ErrUnknownField)
		return
	}
	field := model.FieldName(req.Name)

	var result form.Result
	sub, err := h.store.Update(c.Request.Context(), middleware.GetSessionID(c), func(sub *model.Submission) error {
		if sub.Status == model.StatusSubmitting {
			return service.ErrSubmitInFlight
		}
		result = form.Apply(field, sub.Fields[field], req.Value)
		sub.Fields[field] = result.Value
		if result.Error != "" {
			sub.FieldErrors[field] = result.Error
		} else {
			delete(sub.FieldErrors, field)
		}
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"field":    field,
		"value":    result.Value,
		"error":    result.Error,
		"accepted": result.Accepted,
		"session":  NewSessionView(sub),
	})
}

// UploadFile accepts the multipart "file" for a slot and starts its upload.
func (h *SessionHandler) UploadFile(c *gin.Context) {
	slot := model.SlotName(c.Param("slot"))
	if !model.IsSlot(string(slot)) {
		h.fail(c, service.ErrUnknownSlot)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(c, service.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		h.fail(c, service.ErrFileTooLarge)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	sub, err := h.coordinator.Begin(c.Request.Context(), middleware.GetSessionID(c), slot, service.File{
		Filename:    header.Filename,
		ContentType: detectContentType(header.Header.Get("Content-Type"), header.Filename, data),
		Size:        header.Size,
		Data:        data,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, NewSessionView(sub))
}

// DeleteFile clears a slot and removes its hosted copy.
func (h *SessionHandler) DeleteFile(c *gin.Context) {
	sub, err := h.coordinator.Delete(c.Request.Context(), middleware.GetSessionID(c), model.SlotName(c.Param("slot")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionView(sub))
}

// Submit sends the completed form.
func (h *SessionHandler) Submit(c *gin.Context) {
	out, err := h.assembler.Submit(c.Request.Context(), middleware.GetSessionID(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"message":        out.Submission.Message,
			"reset_after_ms": out.ResetAfter.Milliseconds(),
			"session":        NewSessionView(out.Submission),
		})
	case errors.Is(err, service.ErrMissingFiles):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Required files missing",
			"missing": out.Submission.MissingSlots(),
			"session": NewSessionView(out.Submission),
		})
	case errors.Is(err, service.ErrInvalidFields):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        "Required fields invalid",
			"field_errors": out.Submission.FieldErrors,
			"session":      NewSessionView(out.Submission),
		})
	case errors.Is(err, service.ErrSubmitFailed):
		resp := gin.H{"error": service.MsgSubmitFailure}
		if out != nil && out.Submission != nil {
			resp["session"] = NewSessionView(out.Submission)
		}
		c.JSON(http.StatusBadGateway, resp)
	default:
		h.fail(c, err)
	}
}

// Discard drops the session when the user leaves the form.
func (h *SessionHandler) Discard(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session discarded"})
}

// fail maps service errors onto HTTP responses.
func (h *SessionHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, service.ErrUnknownSlot):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown file slot"})
	case errors.Is(err, service.ErrUnknownField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown field"})
	case errors.Is(err, service.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": MsgFileTooLarge})
	case errors.Is(err, service.ErrSlotBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Upload already in progress"})
	case errors.Is(err, service.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "Submission in progress"})
	case errors.Is(err, service.ErrAlreadySent):
		c.JSON(http.StatusConflict, gin.H{"error": "Submission already sent"})
	default:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// detectContentType trusts a specific client type, otherwise sniffs the data.
func detectContentType(declared, filename string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "application/pdf"
	}
	return http.DetectContentType(data)
}
