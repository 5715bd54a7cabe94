package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhady/leadform/backend/form"
	"github.com/shhady/leadform/backend/model"
)

type countingDispatcher struct {
	mu       sync.Mutex
	payloads []*Payload
	err      error
	gate     chan struct{}
}

func (d *countingDispatcher) Dispatch(_ context.Context, p *Payload) error {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	return d.err
}

func (d *countingDispatcher) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}

func newTestAssembler(t *testing.T, sub *model.Submission, d Dispatcher, resetDelay time.Duration) (*Assembler, SessionStore) {
	t.Helper()
	store := newTestStore(0)
	require.NoError(t, store.Create(context.Background(), sub))
	return NewAssembler(store, form.NewValidator(), d, resetDelay), store
}

func TestAssemblerMissingFilesNoDispatch(t *testing.T) {
	sub := completeSubmission()
	sub.Slot(model.SlotIDBack).Clear()
	sub.Slot(model.SlotBankApproval).Clear()

	d := &countingDispatcher{}
	a, store := newTestAssembler(t, sub, d, time.Hour)

	out, err := a.Submit(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrMissingFiles)
	assert.Equal(t, 0, d.calls())

	require.NotNil(t, out)
	assert.True(t, out.Submission.Slots[model.SlotIDBack].Errored)
	assert.True(t, out.Submission.Slots[model.SlotBankApproval].Errored)
	assert.False(t, out.Submission.Slots[model.SlotIDFront].Errored)

	stored, err := store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEditing, stored.Status)
	assert.True(t, stored.Slots[model.SlotIDBack].Errored)
}

func TestAssemblerInvalidFieldsNoDispatch(t *testing.T) {
	sub := completeSubmission()
	sub.Fields[model.FieldCity] = ""
	sub.Fields[model.FieldPhone] = "052"

	d := &countingDispatcher{}
	a, _ := newTestAssembler(t, sub, d, time.Hour)

	out, err := a.Submit(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrInvalidFields)
	assert.Equal(t, 0, d.calls())
	assert.Equal(t, form.MsgRequired, out.Submission.FieldErrors[model.FieldCity])
	assert.Equal(t, form.MsgPhone, out.Submission.FieldErrors[model.FieldPhone])
}

func TestAssemblerExactlyOneDispatch(t *testing.T) {
	sub := completeSubmission()
	d := &countingDispatcher{}
	a, store := newTestAssembler(t, sub, d, 200*time.Millisecond)

	out, err := a.Submit(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.calls())
	assert.Equal(t, 200*time.Millisecond, out.ResetAfter)
	assert.Equal(t, model.StatusSubmitted, out.Submission.Status)
	assert.Equal(t, model.Message{Type: model.MessageSuccess, Content: MsgSubmitSuccess}, out.Submission.Message)

	// resubmitting before the reset is refused
	_, err = a.Submit(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrAlreadySent)
	assert.Equal(t, 1, d.calls())

	assert.Eventually(t, func() bool {
		s, err := store.Get(context.Background(), sub.ID)
		return err == nil && s.Status == model.StatusEditing && s.Fields[model.FieldFullName] == "" && !s.Slots[model.SlotIDFront].Resolved()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAssemblerDispatchFailure(t *testing.T) {
	sub := completeSubmission()
	d := &countingDispatcher{err: errors.New("502 bad gateway")}
	a, store := newTestAssembler(t, sub, d, time.Hour)

	out, err := a.Submit(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, 1, d.calls())
	assert.Equal(t, model.Message{Type: model.MessageError, Content: MsgSubmitFailure}, out.Submission.Message)

	// answers survive so the user can retry
	stored, err := store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEditing, stored.Status)
	assert.Equal(t, "ישראל ישראלי", stored.Fields[model.FieldFullName])
}

func TestAssemblerDoubleSubmitGuard(t *testing.T) {
	sub := completeSubmission()
	d := &countingDispatcher{gate: make(chan struct{})}
	a, store := newTestAssembler(t, sub, d, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := a.Submit(context.Background(), sub.ID)
		done <- err
	}()

	assert.Eventually(t, func() bool {
		s, err := store.Get(context.Background(), sub.ID)
		return err == nil && s.Status == model.StatusSubmitting
	}, 2*time.Second, 5*time.Millisecond)

	_, err := a.Submit(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(d.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, d.calls())
}

func TestAssemblerPDFPayload(t *testing.T) {
	sub := withPDF(completeSubmission())
	d := &countingDispatcher{}
	a, _ := newTestAssembler(t, sub, d, time.Hour)

	_, err := a.Submit(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, 1, d.calls())
	assert.Equal(t, PDFSentinel, d.payloads[0].Get("bankApproval"))
	assert.NotNil(t, d.payloads[0].Attachment)
}

func TestHTTPDispatcher(t *testing.T) {
	var hits int
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		contentType = r.Header.Get("Content-Type")
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, 5*time.Second)
	require.NoError(t, d.Dispatch(context.Background(), BuildPayload(completeSubmission())))
	assert.Equal(t, 1, hits)
	assert.Equal(t, "application/json", contentType)

	require.NoError(t, d.Dispatch(context.Background(), BuildPayload(withPDF(completeSubmission()))))
	assert.Contains(t, contentType, "multipart/form-data")
}

func TestHTTPDispatcherNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"שגיאה בעיבוד הבקשה"}`))
	}))
	defer server.Close()

	err := NewHTTPDispatcher(server.URL, 5*time.Second).Dispatch(context.Background(), BuildPayload(completeSubmission()))
	assert.ErrorIs(t, err, ErrSubmitFailed)
}

func TestPipelineDispatcher(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("down")}
	d := NewPipelineDispatcher(NewPipeline(mailer, nil, "a@test", "b@test"))

	err := d.Dispatch(context.Background(), BuildPayload(completeSubmission()))
	assert.ErrorIs(t, err, ErrSubmitFailed)
}
