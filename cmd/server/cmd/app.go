package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/domain/announcements"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/places"
	"github.com/unisphere-campus/server/internal/domain/users"
	"github.com/unisphere-campus/server/internal/email"
	"github.com/unisphere-campus/server/internal/storage"
	"github.com/unisphere-campus/server/internal/storage/backend"
)

func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, nil
}

// app is the wired service graph shared by serve and the maintenance
// commands.
type app struct {
	cfg           config.Config
	logger        zerolog.Logger
	store         storage.Store
	mailer        *email.Service
	users         *users.Service
	events        *events.Service
	announcements *announcements.Service
	places        *places.Service
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := backend.Open(openCtx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Database.Driver, err)
	}

	mailer, err := email.NewService(cfg.Email, cfg.Server.BaseURL, store.Users(), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry, cfg.Auth.RefreshExpiry, cfg.Auth.JWTIssuer)
	usersService := users.NewService(store.Users(), store.Tokens(), jwt, mailer, logger)

	return &app{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		mailer:        mailer,
		users:         usersService,
		events:        events.NewService(store.Events(), logger),
		announcements: announcements.NewService(store.Announcements(), usersService, logger),
		places:        places.NewService(store.Places(), logger),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// bootstrapAdmin creates the configured admin account when it is missing.
func (a *app) bootstrapAdmin(ctx context.Context) error {
	bootstrap := a.cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		a.logger.Debug().Msg("admin bootstrap env vars not set; skipping")
		return nil
	}

	created, err := a.users.EnsureAdmin(ctx, bootstrap.Email, bootstrap.Password, bootstrap.FirstName, bootstrap.LastName)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if !created {
		a.logger.Debug().Msg("admin account already present")
	}
	return nil
}
