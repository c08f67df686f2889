package config

import (
	"os"
	"strconv"
)

type Postgres struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

type Config struct {
	Port             string
	LogLevel         string
	Postgres         Postgres
	RedisAddr        string
	RedisPassword    string
	EventRetention   int // days
	RetentionCron    string
	PushoverToken    string
	PushoverUserKey  string
	PushcutAPIKey    string
	PushcutNotifName string
}

func Load() Config {
	return Config{
		Port:             getenv("FUSION_BRIDGE_PORT", "8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		RedisAddr:        getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		EventRetention:   getenvInt("EVENT_RETENTION_DAYS", 90),
		RetentionCron:    getenv("EVENT_RETENTION_CRON", "0 3 * * *"),
		PushoverToken:    getenv("PUSHOVER_TOKEN", ""),
		PushoverUserKey:  getenv("PUSHOVER_USER_KEY", ""),
		PushcutAPIKey:    getenv("PUSHCUT_API_KEY", ""),
		PushcutNotifName: getenv("PUSHCUT_NOTIFICATION", ""),
		Postgres: Postgres{
			User:     getenv("POSTGRES_USER", "postgres"),
			Password: getenv("POSTGRES_PASSWORD", ""),
			DBName:   getenv("POSTGRES_DB", "fusion"),
			Host:     getenv("POSTGRES_HOST", "postgres"),
			Port:     getenv("POSTGRES_PORT", "5432"),
			SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
