package services

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"

	"github.com/ryokrieger/CityConnect/internal/config"
	"github.com/ryokrieger/CityConnect/internal/logging"
)

// EmailSender delivers a rendered message to one recipient.
type EmailSender interface {
	SendNotificationEmail(ctx context.Context, toEmail, subject, html, text string) error
}

// resendEmails is the part of the resend client the service uses.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailService struct {
	provider string
	from     string
	resend   resendEmails
	logger   *logging.Logger
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	svc := &EmailService{
		provider: cfg.Provider,
		from:     fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		logger:   logging.Default.WithField("component", "email"),
	}
	if cfg.Provider == "resend" {
		svc.resend = resend.NewClient(cfg.ResendAPIKey).Emails
	}
	return svc
}

func (s *EmailService) SendNotificationEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	if s.resend == nil {
		s.logger.Info("Email (console)", map[string]interface{}{
			"to":      toEmail,
			"subject": subject,
			"body":    textBody,
		})
		return nil
	}

	_, err := s.resend.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlBody,
		Text:    textBody,
	})
	if err != nil {
		return fmt.Errorf("sending email via resend: %w", err)
	}
	return nil
}

func templateEscape(value string) string {
	return html.EscapeString(value)
}
