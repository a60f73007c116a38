package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/suteetoe/testtrack/pkg/config"
	"go.uber.org/zap"
)

// Mailer delivers transactional email. Registration and invite flows await
// delivery before reporting success to the caller.
type Mailer interface {
	Send(to, subject, htmlBody, textBody string) error
}

// New returns an SMTP mailer when a host is configured, otherwise a
// log-only mailer suitable for development.
func New(cfg *config.MailConfig, log *zap.Logger) Mailer {
	if cfg.Host == "" {
		return &logMailer{log: log}
	}
	return &smtpMailer{cfg: cfg}
}

type smtpMailer struct {
	cfg *config.MailConfig
}

func (m *smtpMailer) Send(to, subject, htmlBody, textBody string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if htmlBody != "" {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(htmlBody)
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(textBody)
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(b.String()))
}

// logMailer records deliveries instead of sending them
type logMailer struct {
	log *zap.Logger
}

func (m *logMailer) Send(to, subject, htmlBody, textBody string) error {
	m.log.Info("Email delivery (log-only mailer)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}
