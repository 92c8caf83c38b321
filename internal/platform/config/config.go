package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	DatabaseType string
	PostgresDSN  string
	SQLitePath   string
	AutoMigrate  bool

	SlackSigningSecret string
	SlackBotToken      string

	VoteMaxAttempts  int
	VoteRetryBackoff time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, fills variables that are not already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "pollbot"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dbType := strings.ToLower(strings.TrimSpace(os.Getenv("DATABASE_TYPE")))
	if dbType == "" {
		dbType = DatabasePostgres
	}
	if dbType != DatabasePostgres && dbType != DatabaseSQLite {
		return Config{}, errors.New("DATABASE_TYPE must be postgres or sqlite")
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "pollbot.db"
	}

	maxAttempts, err := envInt("VOTE_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	if maxAttempts < 1 {
		return Config{}, errors.New("VOTE_MAX_ATTEMPTS must be at least 1")
	}
	backoff, err := envDuration("VOTE_RETRY_BACKOFF", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		DatabaseType: dbType,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		SQLitePath:   sqlitePath,
		AutoMigrate:  envBool("AUTO_MIGRATE", true),

		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),

		VoteMaxAttempts:  maxAttempts,
		VoteRetryBackoff: backoff,
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + " env variable")
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid " + name + " env variable")
	}
	return value, nil
}
