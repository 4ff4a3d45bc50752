package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

const (
	kindWelcome      = "welcome"
	kindRegistration = "registration"
)

// ErrRateLimited is returned when Resend refuses a send because the account
// quota is used up. Callers treat it like any other delivery failure.
var ErrRateLimited = errors.New("email provider rate limit reached")

type message struct {
	to      string
	subject string
	html    string
	// kind is attached as a Resend tag so deliveries can be filtered by type.
	kind string
}

func (s *Service) sendViaResend(ctx context.Context, msg message) error {
	if s.resendClient == nil {
		return errors.New("resend client not initialized")
	}

	req := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{msg.to},
		Subject: msg.subject,
		Html:    msg.html,
	}
	if msg.kind != "" {
		req.Tags = []resend.Tag{{Name: "kind", Value: msg.kind}}
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, req)
	var limited *resend.RateLimitError
	switch {
	case errors.As(err, &limited):
		s.logger.Warn().
			Str("kind", msg.kind).
			Str("remaining", limited.Remaining).
			Str("reset_seconds", limited.Reset).
			Msg("resend quota exhausted")
		if limited.Reset == "" {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: retry after %ss", ErrRateLimited, limited.Reset)
	case err != nil:
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().Str("email_id", sent.Id).Str("kind", msg.kind).Msg("email delivered to resend")
	return nil
}
