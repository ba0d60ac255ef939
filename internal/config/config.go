// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI     string
	DatabaseName string
	JWT          JWTConfig
	Port          string
	RateLimitRPM  int
	MailRelayURL  string
	MailRelayPort string
	SMTP          SMTPConfig
}

type JWTConfig struct {
	Secret   string
	Duration time.Duration
}

// SMTPConfig is only used by the mail relay binary; the API talks to the
// relay over HTTP and never touches SMTP directly.
type SMTPConfig struct {
	Host     string
	Port     int
	Email    string
	Password string
}

func New() *Config {
	return &Config{
		MongoURI:     os.Getenv("MONGODB_URI"),
		DatabaseName: getEnv("MONGODB_DATABASE", "waste2worth"),
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			Duration: getDuration("JWT_DURATION", 24*time.Hour),
		},
		Port:          getEnv("PORT", "8080"),
		RateLimitRPM:  getInt("RATE_LIMIT_RPM", 10),
		MailRelayURL:  getEnv("MAIL_RELAY_URL", "http://localhost:5174"),
		MailRelayPort: getEnv("MAIL_RELAY_PORT", "5174"),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getInt("SMTP_PORT", 587),
			Email:    os.Getenv("SMTP_EMAIL"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
