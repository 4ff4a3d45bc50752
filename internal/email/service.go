package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/users"
)

//go:embed templates/*.html
var templateFS embed.FS

// UserLookup resolves the recipient of a registration confirmation.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Service sends transactional mail through Resend. With email disabled it
// renders the message and logs it instead.
type Service struct {
	config       config.EmailConfig
	baseURL      string
	users        UserLookup
	templates    *template.Template
	resendClient *resend.Client
	logger       zerolog.Logger
	now          func() time.Time
}

type welcomeData struct {
	FirstName   string
	Email       string
	BaseURL     string
	CurrentYear int
}

type registrationData struct {
	FirstName   string
	Title       string
	When        string
	Location    string
	CurrentYear int
}

func NewService(cfg config.EmailConfig, baseURL string, lookup UserLookup, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required when email is enabled")
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	svc := &Service{
		config:    cfg,
		baseURL:   baseURL,
		users:     lookup,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
		now:       time.Now,
	}
	if cfg.Enabled {
		svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return svc, nil
}

// SendWelcome greets a newly registered user.
func (s *Service) SendWelcome(ctx context.Context, user users.User) error {
	body, err := s.render("welcome.html", welcomeData{
		FirstName:   user.FirstName,
		Email:       user.Email,
		BaseURL:     s.baseURL,
		CurrentYear: s.now().Year(),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, message{to: user.Email, subject: "Welcome to UniSphere", html: body, kind: kindWelcome})
}

// RegistrationConfirmed tells the user their seat for event is held.
func (s *Service) RegistrationConfirmed(ctx context.Context, userID int64, event events.Event) error {
	if s.users == nil {
		return fmt.Errorf("user lookup not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	body, err := s.render("registration.html", registrationData{
		FirstName:   user.FirstName,
		Title:       event.Title,
		When:        event.Date.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		Location:    event.Location,
		CurrentYear: s.now().Year(),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, message{to: user.Email, subject: "Registration confirmed: " + event.Title, html: body, kind: kindRegistration})
}

func (s *Service) send(ctx context.Context, msg message) error {
	if err := validateEmailAddress(msg.to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	if strings.ContainsAny(msg.subject, "\r\n") {
		return fmt.Errorf("invalid subject: contains newline characters")
	}
	if !s.config.Enabled {
		s.logger.Info().Str("to", msg.to).Str("kind", msg.kind).Msg("email disabled, skipping send")
		return nil
	}
	return s.sendViaResend(ctx, msg)
}

func (s *Service) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
