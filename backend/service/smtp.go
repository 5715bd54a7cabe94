package service

import (
	"context"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/shhady/leadform/backend/config"
)

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg *config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)}
}

// Send delivers msg. gomail cannot take a context, so ctx does not bound the
// SMTP exchange; the dialer's own timeouts apply.
func (s *SMTPMailer) Send(_ context.Context, msg MailMessage) error {
	return s.dialer.DialAndSend(buildSMTPMessage(msg))
}

func buildSMTPMessage(msg MailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m
}
