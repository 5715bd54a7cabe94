package service

import (
	"context"
	"fmt"

	"github.com/shhady/leadform/backend/config"
	"github.com/shhady/leadform/backend/model"
)

// MailMessage is one outgoing email.
type MailMessage struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Attachments []model.Attachment
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NewMailer picks the provider configured in cfg. A provider without
// credentials is reported as ErrMissingAPIKey.
func NewMailer(cfg *config.MailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "smtp", "resend", "":
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: %s credentials not set", ErrMissingAPIKey, cfg.Provider)
	}
	if cfg.Provider == "smtp" {
		return NewSMTPMailer(&cfg.SMTP), nil
	}
	return NewResendMailer(cfg.ResendAPIKey), nil
}
