// Package config loads process settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Store backends
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether a mail server is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type Config struct {
	MongoURI    string
	MongoDBName string
	Store       string

	Host string
	Port string

	JWTSecret string
	JWTExpiry time.Duration

	ItemsPerPage    int64
	OverdueSchedule string

	MQTT MQTTConfig
	SMTP SMTPConfig

	SentryDSN string
	LogLevel  string
	LogFormat string
	PublicURL string
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "maintenance_management"),
		Store:           strings.ToLower(getEnv("STORE", StoreMongo)),
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "5000"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		ItemsPerPage:    int64(getEnvAsInt("ITEMS_PER_PAGE", 80)),
		OverdueSchedule: os.Getenv("OVERDUE_SCHEDULE"),
		MQTT: MQTTConfig{
			Broker:      getEnv("MQTT_BROKER", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "maintd"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "maintenance"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@localhost"),
		},
		SentryDSN: getEnv("SENTRY_DSN", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:5000"), "/"),
	}
	if _, set := os.LookupEnv("OVERDUE_SCHEDULE"); !set {
		cfg.OverdueSchedule = "@hourly"
	}

	expiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}
	cfg.JWTExpiry = expiry

	switch cfg.Store {
	case StoreMongo, StoreMemory:
	default:
		return Config{}, fmt.Errorf("invalid STORE %q: want %s or %s", cfg.Store, StoreMongo, StoreMemory)
	}
	if cfg.ItemsPerPage <= 0 {
		return Config{}, fmt.Errorf("ITEMS_PER_PAGE must be positive")
	}
	return cfg, nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logger.
func (c Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	switch c.LogFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}
