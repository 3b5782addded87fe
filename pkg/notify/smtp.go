package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds email delivery settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SMTPSender delivers notifications by email
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

// Send delivers the notification to every configured recipient
func (s *SMTPSender) Send(subject, body string) error {
	if len(s.cfg.To) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + strings.Join(s.cfg.To, ", "),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, s.cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	return nil
}
