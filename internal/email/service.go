package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/config"
)

// Service sends transactional email through Resend. With no API key
// configured it degrades to logging, which keeps local development and
// tests free of outbound mail.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	templates    *template.Template
	logger       zerolog.Logger
}

const verificationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Welcome to Relayworks.</p>
  <p>Confirm your email address to activate realtime access:</p>
  <p><a href="{{.Link}}">Verify email</a></p>
  <p>If you did not create this account, ignore this message.</p>
</body>
</html>`

type verificationData struct {
	Link string
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.FromAddress != "" {
		if err := validateAddress(cfg.FromAddress); err != nil {
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
	}

	templates, err := template.New("verification").Parse(verificationTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	svc := &Service{
		config:    cfg,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.ResendAPIKey != "" {
		svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return svc, nil
}

// SendVerification delivers the email-verification link after signup.
func (s *Service) SendVerification(ctx context.Context, to, link string) error {
	if err := validateAddress(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if err := validateLink(link); err != nil {
		return fmt.Errorf("invalid verification link: %w", err)
	}

	if s.resendClient == nil {
		s.logger.Info().Str("to", to).Str("link", link).Msg("email delivery disabled, skipping verification email")
		return nil
	}

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "verification", verificationData{Link: link}); err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	return s.send(ctx, to, "Verify your Relayworks email", body.String())
}

func (s *Service) send(ctx context.Context, to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    s.config.FromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limited: %w", err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().Str("email_id", sent.Id).Str("to", to).Msg("email sent")
	return nil
}

// validateAddress rejects malformed addresses and header injection.
func validateAddress(address string) error {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("address contains newline characters")
	}
	return nil
}

// validateLink only admits http(s) URLs so a poisoned base URL can never
// smuggle a javascript: or data: scheme into the message.
func validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
