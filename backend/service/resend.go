package service

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendMailer sends through the Resend transactional email API.
type ResendMailer struct {
	client *resend.Client
}

func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) Send(ctx context.Context, msg MailMessage) error {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Content:  a.Data,
			Filename: a.Filename,
		})
	}

	sent, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("resend: no message id returned")
	}
	return nil
}
