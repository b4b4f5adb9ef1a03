// Package config collects the service configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Turso/libsql connection. When DatabaseURL is empty the service runs
	// on the in-memory store.
	DatabaseURL string
	AuthToken   string

	// Authority identity and the bearer token protecting the admin routes.
	Authority      string
	AuthorityToken string

	// Telegram operator notifications; disabled when the token is empty.
	TelegramToken  string
	TelegramChatID int64

	// Oracle reveal polling.
	OracleRevealAttempts int
	OracleRevealDelay    time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          os.Getenv("TURSO_DATABASE_URL"),
		AuthToken:            os.Getenv("TURSO_AUTH_TOKEN"),
		Authority:            getEnv("LOTTO_AUTHORITY", "authority"),
		AuthorityToken:       os.Getenv("AUTHORITY_TOKEN"),
		TelegramToken:        os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:       getEnvInt64("TELEGRAM_CHAT_ID", 0),
		OracleRevealAttempts: int(getEnvInt64("ORACLE_REVEAL_ATTEMPTS", 10)),
		OracleRevealDelay:    getEnvDuration("ORACLE_REVEAL_DELAY", time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
