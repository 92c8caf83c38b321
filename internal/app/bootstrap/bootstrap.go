package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	pollservice "pollbot/contexts/chat-interaction/poll-service"
	postgresadapter "pollbot/contexts/chat-interaction/poll-service/adapters/postgres"
	slackadapter "pollbot/contexts/chat-interaction/poll-service/adapters/slack"
	"pollbot/internal/platform/config"
	"pollbot/internal/platform/db"
	"pollbot/internal/platform/httpserver"
	"pollbot/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const interactionWorkers = 4

type APIApp struct {
	server   *httpserver.Server
	polls    pollservice.Module
	bus      *messaging.Bus
	database *db.Postgres
	logger   *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	database, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(database.DB, logger)
	if cfg.AutoMigrate {
		if err := repo.Migrate(context.Background()); err != nil {
			_ = database.Close()
			return nil, err
		}
	}
	if strings.TrimSpace(cfg.SlackSigningSecret) == "" {
		logger.Warn("slack signing secret not set, request signatures will not be verified",
			"event", "bootstrap_signature_verification_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	bus := messaging.NewBus(interactionWorkers, logger)
	module := pollservice.NewModule(pollservice.Dependencies{
		Polls:            repo,
		Clock:            postgresadapter.SystemClock{},
		IDGen:            postgresadapter.UUIDGenerator{},
		Responder:        slackadapter.NewResponder(cfg.SlackBotToken, logger),
		Publisher:        bus,
		Subscriber:       bus,
		VoteMaxAttempts:  cfg.VoteMaxAttempts,
		VoteRetryBackoff: cfg.VoteRetryBackoff,
		Logger:           logger,
	})

	server := httpserver.New(module, cfg.SlackSigningSecret, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		polls:    module,
		bus:      bus,
		database: database,
		logger:   logger,
	}, nil
}

func connect(cfg config.Config) (*db.Postgres, error) {
	switch cfg.DatabaseType {
	case config.DatabaseSQLite:
		return db.ConnectSQLite(cfg.SQLitePath)
	default:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		return db.Connect(cfg.PostgresDSN)
	}
}

// Run starts the interaction consumer and serves HTTP until ctx is
// cancelled. Queued interactions drain before Run returns.
func (a *APIApp) Run(ctx context.Context) error {
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	if err := a.polls.Consumer.Start(consumerCtx); err != nil {
		return err
	}
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	err := a.server.Run(ctx)
	stopConsumer()
	a.bus.Wait()
	return err
}

func (a *APIApp) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
