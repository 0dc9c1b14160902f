package identity

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"instadm/internal/config"
)

// Mailer delivers the confirmation and magic-link emails.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns an SMTP mailer, or a log-only mailer when no SMTP host is configured.
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		return logMailer{}
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// logMailer is for local development without an SMTP relay.
type logMailer struct{}

func (logMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	log.Printf("mail to %s: %s\n%s", to, subject, htmlBody)
	return nil
}
