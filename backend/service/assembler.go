package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shhady/leadform/backend/form"
	"github.com/shhady/leadform/backend/model"
)

// Localized outcome messages shown to the user.
const (
	MsgSubmitSuccess = "הטופס נשלח בהצלחה!"
	MsgSubmitFailure = "אירעה שגיאה בשליחת הטופס. אנא נסה שוב."
)

// Dispatcher delivers an assembled payload to the submission endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *Payload) error
}

// HTTPDispatcher posts the payload to a remote submission endpoint.
type HTTPDispatcher struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPDispatcher(endpoint string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, p *Payload) error {
	body, contentType, err := p.Encode()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrSubmitFailed, resp.StatusCode, string(msg))
	}
	return nil
}

// PipelineDispatcher hands the payload straight to an in-process pipeline.
type PipelineDispatcher struct {
	pipeline *Pipeline
}

func NewPipelineDispatcher(p *Pipeline) *PipelineDispatcher {
	return &PipelineDispatcher{pipeline: p}
}

func (d *PipelineDispatcher) Dispatch(ctx context.Context, p *Payload) error {
	if _, err := d.pipeline.Run(ctx, p); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	return nil
}

// Outcome describes an accepted submission.
type Outcome struct {
	Submission *model.Submission
	// ResetAfter is when the session returns to its empty state.
	ResetAfter time.Duration
}

// Assembler checks a session is complete and sends it exactly once.
type Assembler struct {
	store      SessionStore
	validator  *form.Validator
	dispatcher Dispatcher
	resetDelay time.Duration
}

func NewAssembler(store SessionStore, validator *form.Validator, dispatcher Dispatcher, resetDelay time.Duration) *Assembler {
	return &Assembler{
		store:      store,
		validator:  validator,
		dispatcher: dispatcher,
		resetDelay: resetDelay,
	}
}

// Submit validates the session and dispatches its payload. Missing files or
// invalid answers are reported without dispatching.
func (a *Assembler) Submit(ctx context.Context, sessionID string) (*Outcome, error) {
	var payload *Payload

	// Missing files and invalid answers are recorded on the session, so
	// these checks commit before returning their error.
	var check error
	sub, err := a.store.Update(ctx, sessionID, func(sub *model.Submission) error {
		check = nil
		switch sub.Status {
		case model.StatusSubmitting:
			return ErrSubmitInFlight
		case model.StatusSubmitted:
			return ErrAlreadySent
		}

		if missing := sub.MissingSlots(); len(missing) > 0 {
			for _, name := range missing {
				if sub.Slot(name).State != model.SlotInProgress {
					sub.Slot(name).Errored = true
				}
			}
			check = ErrMissingFiles
			return nil
		}

		problems, err := a.validator.Check(sub.Fields)
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			sub.FieldErrors = problems
			check = ErrInvalidFields
			return nil
		}

		sub.FieldErrors = make(map[model.FieldName]string)
		sub.Status = model.StatusSubmitting
		sub.Message = model.Message{}
		payload = BuildPayload(sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if check != nil {
		return &Outcome{Submission: sub}, check
	}

	log := slog.With("session_id", sessionID, "agent", sub.Agent)
	start := time.Now()
	derr := a.dispatcher.Dispatch(ctx, payload)

	sub, err = a.store.Update(context.WithoutCancel(ctx), sessionID, func(sub *model.Submission) error {
		if derr != nil {
			sub.Status = model.StatusEditing
			sub.Message = model.Message{Type: model.MessageError, Content: MsgSubmitFailure}
			return nil
		}
		sub.Status = model.StatusSubmitted
		sub.Message = model.Message{Type: model.MessageSuccess, Content: MsgSubmitSuccess}
		return nil
	})
	if err != nil {
		log.Error("failed to record submission outcome", "error", err)
		if derr == nil {
			return nil, err
		}
	}

	if derr != nil {
		log.Error("submission failed", "error", derr, "duration", time.Since(start))
		if !errors.Is(derr, ErrSubmitFailed) {
			derr = fmt.Errorf("%w: %v", ErrSubmitFailed, derr)
		}
		return &Outcome{Submission: sub}, derr
	}

	log.Info("submission sent", "duration", time.Since(start), "pdf_attached", payload.Attachment != nil)
	a.scheduleReset(sessionID)
	return &Outcome{Submission: sub, ResetAfter: a.resetDelay}, nil
}

// scheduleReset empties the session once the success message has been shown.
func (a *Assembler) scheduleReset(sessionID string) {
	time.AfterFunc(a.resetDelay, func() {
		_, err := a.store.Update(context.Background(), sessionID, func(sub *model.Submission) error {
			if sub.Status != model.StatusSubmitted {
				return errUnchanged
			}
			sub.Reset()
			return nil
		})
		if err != nil && !errors.Is(err, errUnchanged) && !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("failed to reset session", "session_id", sessionID, "error", err)
		}
	})
}
