/*
Package config loads service configuration from the environment.

PURPOSE:
  One place for every tunable. Environment variables take precedence
  over defaults; command-line flags in cmd/server override both.

VARIABLES:
  SERVER_PORT            HTTP port (default 8080)
  SERVER_HOST            Bind host (default all interfaces)
  ALLOWED_ORIGINS        Comma-separated CORS origins
  DATABASE_PATH          SQLite path, ":memory:" for in-memory
  REWARDS_CONFIG_FILE    Optional JSON tier table overriding the built-in one
  REDIS_ENABLED          "true" to publish ledger events to Redis
  REDIS_ADDR             host:port (default localhost:6379)
  REDIS_PASSWORD         Optional password
  REDIS_DB               Database number (default 0)
  REDIS_CHANNEL          Pub/sub channel (default rewards.ledger)
*/
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Rewards RewardsConfig
	Redis   RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path string
}

// RewardsConfig points at an optional tier table override.
type RewardsConfig struct {
	ConfigFile string
}

// RedisConfig holds the optional event-publishing settings.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", ""),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		},
		Storage: StorageConfig{
			Path: getEnv("DATABASE_PATH", "rewards.db"),
		},
		Rewards: RewardsConfig{
			ConfigFile: getEnv("REWARDS_CONFIG_FILE", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_CHANNEL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
