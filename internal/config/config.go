// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/EmpoweredVote/geofence-backend/internal/mqtt"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrUnknownDriver      = errors.New("DB_DRIVER must be postgres or sqlite")
	ErrInvalidRateLimit   = errors.New("EVENT_RATE_LIMIT must be a positive number")
	ErrBadBroker          = errors.New("MQTT_BROKER must look like tcp://host:port")
)

const (
	DefaultPort      = "5050"
	DefaultRateLimit = 5.0
	DefaultRateBurst = 10
)

// Config holds everything the server and the CLI need.
type Config struct {
	DatabaseURL string
	DBDriver    string
	Port        string
	LogLevel    string

	// Empty MQTT.Broker disables the broker integration.
	MQTT mqtt.Config

	// DeviceTokenHash is a bcrypt hash. Empty disables device authentication.
	DeviceTokenHash string

	// EventRateLimit is events per second allowed per device.
	EventRateLimit float64
	EventRateBurst int

	// RegionsFile seeds an empty store at startup when set.
	RegionsFile string
}

// LoadDotEnv reads .env.local when present. A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
}

// LoadFromEnv builds a Config from environment variables.
//
// Environment variables:
//   - DATABASE_URL: Postgres DSN, or a sqlite file path / ":memory:" (required)
//   - DB_DRIVER: "postgres" or "sqlite" (default: postgres)
//   - PORT: HTTP port (default: 5050)
//   - LOG_LEVEL: logrus level (default: info)
//   - MQTT_BROKER, MQTT_CLIENT_ID, MQTT_USERNAME, MQTT_PASSWORD, MQTT_TOPIC_PREFIX
//   - DEVICE_TOKEN_HASH: bcrypt hash of the shared device token
//   - EVENT_RATE_LIMIT, EVENT_RATE_BURST: per-device event budget (default: 5/s, burst 10)
//   - REGIONS_FILE: YAML region list used to seed an empty store
func LoadFromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBDriver:        strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER"))),
		Port:            strings.TrimSpace(os.Getenv("PORT")),
		LogLevel:        strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		DeviceTokenHash: strings.TrimSpace(os.Getenv("DEVICE_TOKEN_HASH")),
		RegionsFile:     strings.TrimSpace(os.Getenv("REGIONS_FILE")),
		EventRateLimit:  DefaultRateLimit,
		EventRateBurst:  DefaultRateBurst,
		MQTT: mqtt.Config{
			Broker:         strings.TrimSpace(os.Getenv("MQTT_BROKER")),
			ClientID:       strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID")),
			Username:       os.Getenv("MQTT_USERNAME"),
			Password:       os.Getenv("MQTT_PASSWORD"),
			TopicPrefix:    strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/"),
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
		},
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "postgres"
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = mqtt.DefaultTopicPrefix
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "geofence-backend"
	}

	if v := strings.TrimSpace(os.Getenv("EVENT_RATE_LIMIT")); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: %q", ErrInvalidRateLimit, v)
		}
		cfg.EventRateLimit = limit
	}
	if v := strings.TrimSpace(os.Getenv("EVENT_RATE_BURST")); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("EVENT_RATE_BURST: %w", err)
		}
		cfg.EventRateBurst = burst
	}
	return cfg, nil
}

// Validate checks the configuration before anything is started.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.DBDriver)
	}
	if c.EventRateLimit <= 0 || c.EventRateBurst <= 0 {
		return ErrInvalidRateLimit
	}
	if c.MQTT.Broker != "" && !strings.Contains(c.MQTT.Broker, "://") {
		return fmt.Errorf("%w: %q", ErrBadBroker, c.MQTT.Broker)
	}
	return nil
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return "0.0.0.0:" + c.Port }
