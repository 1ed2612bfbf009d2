// Package mailer delivers outgoing mail over SMTP, or logs it when no
// server is configured.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Dialer is the part of gomail.Dialer used to deliver messages.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through an SMTP server.
type SMTPMailer struct {
	from   string
	dialer Dialer
}

// NewSMTPMailer builds a mailer from cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewSMTPMailerWithDialer is NewSMTPMailer with a custom dialer.
func NewSMTPMailerWithDialer(from string, d Dialer) *SMTPMailer {
	return &SMTPMailer{from: from, dialer: d}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mailer: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	gm := Compose(m.from, msg)
	if err := m.dialer.DialAndSend(gm); err != nil {
		log.WithError(err).WithField("to", strings.Join(msg.To, ",")).Error("Failed to send email")
		return fmt.Errorf("error sending email: %w", err)
	}
	log.WithFields(log.Fields{"to": strings.Join(msg.To, ","), "subject": msg.Subject}).Info("Email sent")
	return nil
}

// Compose builds the gomail message for msg.
func Compose(from string, msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	switch {
	case msg.HTML != "" && msg.Text != "":
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		gm.SetBody("text/html", msg.HTML)
	default:
		gm.SetBody("text/plain", msg.Text)
	}
	return gm
}

// LogMailer writes messages to the log instead of sending them. Sent
// messages are kept for inspection.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	log.WithFields(log.Fields{
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	}).Info(msg.Text)
	return nil
}

// Sent returns a copy of the messages logged so far.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// PasswordReset is the reset-link email for a portal user.
func PasswordReset(to, name, link string) Message {
	text := fmt.Sprintf("Hello %s,\n\nA password reset was requested for your account.\n"+
		"Open the link below within 30 minutes to choose a new password:\n\n%s\n\n"+
		"If you did not ask for this, ignore this email.\n", name, link)
	html := fmt.Sprintf("<p>Hello %s,</p><p>A password reset was requested for your account. "+
		"Open the link below within 30 minutes to choose a new password:</p>"+
		"<p><a href=\"%s\">Reset password</a></p><p>If you did not ask for this, ignore this email.</p>", name, link)
	return Message{To: []string{to}, Subject: "Reset your password", Text: text, HTML: html}
}
