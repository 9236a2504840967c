package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getduration(key string, def time.Duration) time.Duration {
	if v := getenv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Server configures forumd.
type Server struct {
	Addr        string
	Driver      string
	DatabaseURL string
	// StrictSessions rejects mutations whose userId is not the logged-in user.
	StrictSessions bool
	// AdminTokenHash is a bcrypt hash; empty disables /moderators.
	AdminTokenHash    string
	SessionCookieName string
	SessionTTL        time.Duration
	Seed              bool
	LogLevel          slog.Level
}

func LoadServer() Server {
	driver := getenv("DB_DRIVER", "sqlite3")
	def := "file:forum.db?_foreign_keys=on"
	if driver == "pgx" {
		def = "postgres://postgres:postgres@db:5432/forum?sslmode=disable"
	}
	return Server{
		Addr:              getenv("ADDR", ":8080"),
		Driver:            driver,
		DatabaseURL:       getenv("DATABASE_URL", def),
		StrictSessions:    getbool("STRICT_SESSIONS", false),
		AdminTokenHash:    getenv("ADMIN_TOKEN_HASH", ""),
		SessionCookieName: getenv("SESSION_COOKIE_NAME", "forum_sess"),
		SessionTTL:        getduration("SESSION_TTL", 14*24*time.Hour),
		Seed:              getbool("SEED", true),
		LogLevel:          level(getenv("LOG_LEVEL", "info")),
	}
}

// Client configures forumctl.
type Client struct {
	BaseURL string
	// Timeout bounds every request; zero means no timeout.
	Timeout  time.Duration
	LogLevel slog.Level
}

func LoadClient() Client {
	return Client{
		BaseURL:  strings.TrimRight(getenv("FORUM_URL", "http://localhost:8080"), "/"),
		Timeout:  getduration("FORUM_TIMEOUT", 30*time.Second),
		LogLevel: level(getenv("LOG_LEVEL", "warn")),
	}
}

func level(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
