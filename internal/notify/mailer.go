package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"procurement/internal/config"

	"github.com/sirupsen/logrus"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer returns an SMTP mailer when a host is configured and a logging one otherwise.
func NewMailer(cfg config.SMTPConfig, log logrus.FieldLogger) Mailer {
	if cfg.Enabled() {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{log: log}
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if len(m.cfg.Username) > 0 {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		m.cfg.From, to, subject, body))

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("notify.SMTPMailer.Send: %w", err)
	}
	return nil
}

// LogMailer only records what would have been sent.
type LogMailer struct {
	log logrus.FieldLogger
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email not configured, message logged")
	return nil
}
