package services

import (
	"context"
	"strings"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

// ContactService forwards the public contact form to the support inbox.
type ContactService struct {
	inbox    string
	notifier Notifier
}

func (s *ContactService) Send(ctx context.Context, name, email, subject, message string) error {
	name, email, message = strings.TrimSpace(name), normalizeEmail(email), strings.TrimSpace(message)
	if name == "" || email == "" || message == "" {
		return validation("All fields are required")
	}
	if !utils.IsEmail(email) {
		return validation("Invalid email")
	}
	if s.inbox == "" {
		return validation("Email configuration missing")
	}
	s.notifier.Notify(ctx, models.KindContactInquiry, s.inbox, map[string]string{
		"name":    name,
		"email":   email,
		"subject": strings.TrimSpace(subject),
		"message": message,
	})
	return nil
}
