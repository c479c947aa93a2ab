package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-based settings.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	ServerAddress  string

	// JWTSecret verifies the tracker-issued session tokens guarding the web
	// surface. Required by serve, unused by the CLI commands.
	JWTSecret string

	// OperatorTokenHash is the bcrypt hash of the token accepted on the
	// run-now endpoint. Empty disables that endpoint.
	OperatorTokenHash string

	TrackerURL     string
	TrackerToken   string
	TrackerTimeout time.Duration
	Reporter       string

	// UpdateCron, when set, runs the batch from inside serve on a cron
	// spec instead of relying on an external job runner.
	UpdateCron string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseDriver:    getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ServerAddress:     getenv("SERVER_ADDRESS", ":8036"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		OperatorTokenHash: os.Getenv("OPERATOR_TOKEN_HASH"),
		TrackerURL:        os.Getenv("TRACKER_URL"),
		TrackerToken:      os.Getenv("TRACKER_TOKEN"),
		Reporter:          getenv("TICKET_REPORTER", "scheduled"),
		UpdateCron:        os.Getenv("UPDATE_CRON"),
		RedisAddress:      os.Getenv("REDIS_ADDRESS"),
		RedisUsername:     os.Getenv("REDIS_USERNAME"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:     os.Getenv("MQTT_BROKER_URL"),
	}

	if cfg.DatabaseURL == "" {
		if cfg.DatabaseDriver == "sqlite" {
			cfg.DatabaseURL = "scheduled.db"
		} else {
			return nil, fmt.Errorf("DATABASE_URL is required for driver %q", cfg.DatabaseDriver)
		}
	}
	if cfg.TrackerURL == "" {
		return nil, fmt.Errorf("TRACKER_URL is required")
	}

	timeout := getenv("TRACKER_TIMEOUT", "10s")
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid TRACKER_TIMEOUT %q: %w", timeout, err)
	}
	cfg.TrackerTimeout = d

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
