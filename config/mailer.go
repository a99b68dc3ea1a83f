package config

import (
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

// Mailer is the outbound notification contract. Implementations must not
// panic; delivery failures come back as plain errors and the caller decides
// what to record.
type Mailer interface {
	Send(to string, subject string, body string) error
}

type smtpMailer struct {
	host string
	port string
	from string
	auth smtp.Auth
}

// NewMailerFromEnv builds an SMTP-backed Mailer from SMTP_HOST, SMTP_PORT,
// SMTP_USER, SMTP_PASSWORD and SMTP_FROM. Returns a disabled mailer when the
// host is unset so local development works without a mail server.
func NewMailerFromEnv() Mailer {
	host := strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if host == "" {
		return &disabledMailer{}
	}
	port := strings.TrimSpace(os.Getenv("SMTP_PORT"))
	if port == "" {
		port = "587"
	}
	user := os.Getenv("SMTP_USER")
	from := strings.TrimSpace(os.Getenv("SMTP_FROM"))
	if from == "" {
		from = user
	}
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, os.Getenv("SMTP_PASSWORD"), host)
	}
	return &smtpMailer{host: host, port: port, from: from, auth: auth}
}

func (m *smtpMailer) Send(to string, subject string, body string) error {
	if to == "" {
		return errors.New("recipient address is required")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s", m.from, to, subject, body)
	return smtp.SendMail(m.host+":"+m.port, m.auth, m.from, []string{to}, []byte(msg))
}

type disabledMailer struct{}

func (m *disabledMailer) Send(to string, subject string, body string) error {
	return errors.New("mailer is not configured (SMTP_HOST is empty)")
}
