// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
}

type ServerConfig struct {
	Port int
	// SignRPS caps sign attempts per client IP per second.
	SignRPS   int
	SignBurst int
}

type DBConfig struct {
	// URL is a full postgres connection string (DATABASE_URL).
	URL string
}

type AuthConfig struct {
	JWTSecret string
	// OAuth code-exchange provider.
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
	// QR ticket-exchange provider.
	QRExchangeURL string
	QRAppID       string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:      getEnvInt("SERVER_PORT", 8080),
			SignRPS:   getEnvInt("SIGN_RATE_LIMIT_RPS", 5),
			SignBurst: getEnvInt("SIGN_RATE_LIMIT_BURST", 10),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
			OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
			QRExchangeURL:     getEnv("QR_EXCHANGE_URL", ""),
			QRAppID:           getEnv("QR_APP_ID", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
