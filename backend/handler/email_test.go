package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/service"
)

type stubMailer struct {
	sent []service.MailMessage
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg service.MailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newEmailRouter(mailer service.Mailer) *gin.Engine {
	h := NewEmailHandler(service.NewPipeline(mailer, nil, "from@test", "to@test"), 1<<20)
	router := gin.New()
	router.POST("/api/send-email", h.Send)
	return router
}

func submissionFields() map[string]string {
	return map[string]string{
		"fullName":     "ישראל ישראלי",
		"phone":        "0521234567",
		"idNumber":     "123456789",
		"city":         "נצרת",
		"idFront":      "https://media.test/v1/front.jpg",
		"bankApproval": service.PDFSentinel,
	}
}

func TestSendEmailJSON(t *testing.T) {
	mailer := &stubMailer{}
	router := newEmailRouter(mailer)

	body, _ := json.Marshal(submissionFields())
	req := httptest.NewRequest(http.MethodPost, "/api/send-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("Expected one email, got %d", len(mailer.sent))
	}
	if mailer.sent[0].Subject != "טופס חדש - ישראל ישראלי" {
		t.Errorf("Unexpected subject %q", mailer.sent[0].Subject)
	}
}

func TestSendEmailMultipartWithPDF(t *testing.T) {
	mailer := &stubMailer{}
	router := newEmailRouter(mailer)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range submissionFields() {
		_ = mw.WriteField(k, v)
	}
	_ = mw.WriteField("salary", "null")
	part, _ := mw.CreateFormFile(service.PDFPart, "approval.pdf")
	_, _ = part.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/send-email", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	msg := mailer.sent[0]
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "bank-approval-ישראל ישראלי.pdf" {
		t.Errorf("Unexpected attachments %+v", msg.Attachments)
	}
	if strings.Contains(msg.HTML, "null") {
		t.Error("Literal null must render as not specified")
	}
}

func TestSendEmailErrors(t *testing.T) {
	tests := []struct {
		name     string
		mailer   service.Mailer
		body     string
		wantBody string
	}{
		{"missing key", nil, `{}`, "Server configuration error: Missing API key"},
		{"bad body", &stubMailer{}, `{`, MsgProcessingFailed},
		{"send failure", &stubMailer{err: errors.New("rate limited")}, `{"fullName":"x"}`, MsgProcessingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newEmailRouter(tt.mailer)
			req := httptest.NewRequest(http.MethodPost, "/api/send-email", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("Expected body to contain %q, got %s", tt.wantBody, w.Body.String())
			}
		})
	}
}
