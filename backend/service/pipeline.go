package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shhady/leadform/backend/model"
)

// StageResult records how one pipeline stage went.
type StageResult struct {
	Name  string
	Fatal bool
	Err   error
}

type stage struct {
	name  string
	fatal bool
	run   func(ctx context.Context, run *pipelineRun) error
}

type pipelineRun struct {
	payload *Payload
	html    string
}

// Pipeline turns an accepted payload into notifications: render the summary,
// mail it, then optionally record it on the board. Stages run in order; a
// failed fatal stage stops the run, a failed non-fatal stage is only logged.
type Pipeline struct {
	mailer Mailer
	board  *BoardClient
	from   string
	to     string
	stages []stage
}

// NewPipeline builds the pipeline. mailer may be nil when mail is not
// configured, board may be nil when the board is disabled.
func NewPipeline(mailer Mailer, board *BoardClient, from, to string) *Pipeline {
	p := &Pipeline{mailer: mailer, board: board, from: from, to: to}
	p.stages = []stage{
		{name: "render", fatal: true, run: p.render},
		{name: "email", fatal: true, run: p.email},
	}
	if board != nil {
		p.stages = append(p.stages, stage{name: "board", fatal: false, run: p.createBoardItem})
	}
	return p
}

// Ready reports whether the pipeline can send mail.
func (p *Pipeline) Ready() bool {
	return p.mailer != nil
}

// Run executes the stages for payload. The returned error is non-nil only if a
// fatal stage failed.
func (p *Pipeline) Run(ctx context.Context, payload *Payload) ([]StageResult, error) {
	run := &pipelineRun{payload: payload}
	results := make([]StageResult, 0, len(p.stages))

	for _, st := range p.stages {
		start := time.Now()
		err := st.run(ctx, run)
		results = append(results, StageResult{Name: st.name, Fatal: st.fatal, Err: err})

		if err == nil {
			slog.Debug("pipeline stage done", "stage", st.name, "duration", time.Since(start))
			continue
		}
		if st.fatal {
			slog.Error("pipeline stage failed", "stage", st.name, "error", err)
			return results, fmt.Errorf("%s: %w", st.name, err)
		}
		slog.Warn("pipeline stage failed, continuing", "stage", st.name, "error", err)
	}
	return results, nil
}

func (p *Pipeline) render(_ context.Context, run *pipelineRun) error {
	html, err := RenderSubmissionEmailHTML(NewEmailData(run.payload))
	if err != nil {
		return err
	}
	run.html = html
	return nil
}

func (p *Pipeline) email(ctx context.Context, run *pipelineRun) error {
	if p.mailer == nil {
		return ErrMissingAPIKey
	}

	fullName := run.payload.Get(string(model.FieldFullName))
	msg := MailMessage{
		From:    p.from,
		To:      p.to,
		Subject: SubmissionSubject(fullName),
		HTML:    run.html,
	}
	if a := run.payload.Attachment; a != nil {
		msg.Attachments = []model.Attachment{{
			Filename:    AttachmentFilename(fullName),
			ContentType: "application/pdf",
			Data:        a.Data,
		}}
	}

	if err := p.mailer.Send(ctx, msg); err != nil {
		return err
	}
	slog.Info("submission email sent", "to", p.to, "attachments", len(msg.Attachments))
	return nil
}

func (p *Pipeline) createBoardItem(ctx context.Context, run *pipelineRun) error {
	id, err := p.board.CreateItem(ctx, run.payload)
	if err != nil {
		return err
	}
	slog.Info("board item created", "item_id", id, "fields", p.board.mappedFields())
	return nil
}
