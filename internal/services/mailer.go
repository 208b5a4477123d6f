package services

import (
	"context"
	"fmt"
	"io"

	"github.com/go-gomail/gomail"
	"github.com/rs/zerolog"
)

type Attachment struct {
	Name string
	Data []byte
}

type Mail struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers a single transactional email.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer sends mail through an SMTP relay with gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	if from == "" {
		from = username
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPMailer) Send(_ context.Context, mail Mail) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/html", mail.HTML)

	for _, a := range mail.Attachments {
		data := a.Data
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail. It is used when no SMTP relay is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (l *LogMailer) Send(_ context.Context, m Mail) error {
	l.log.Info().
		Str("to", m.To).
		Str("subject", m.Subject).
		Int("attachments", len(m.Attachments)).
		Msg("SMTP not configured, email not sent")
	return nil
}
