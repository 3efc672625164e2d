// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the server configuration, read from the environment.
type Config struct {
	ListenAddr string
	JWTSecret  string

	DBDialect    string // postgres | sqlite | "" (disabled)
	DatabaseURL  string
	SQLitePath   string
	RedisURL     string // "" disables the historian and snapshot cache
	AllowOrigins []string

	TurnTimer time.Duration // 0 disables turn timeouts
	GameSeed  uint64        // 0 picks a time-derived seed per game

	ReconnectMaxAttempts    int
	ReconnectDelay          time.Duration
	ReconnectAttemptTimeout time.Duration

	LogLevel  string
	LogFormat string // text | json
}

// Load reads an optional .env file (files earlier in the list win) and then
// the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		DBDialect:    strings.ToLower(strings.TrimSpace(os.Getenv("DB_DIALECT"))),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   os.Getenv("DB_SQLITE_PATH"),
		RedisURL:     os.Getenv("REDIS_URL"),
		AllowOrigins: splitList(os.Getenv("ALLOW_ORIGINS")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	var err error
	var turnSec, delayMs, attemptMs int
	if turnSec, err = getInt("TURN_TIMER_SEC", 60); err != nil {
		return nil, err
	}
	if cfg.ReconnectMaxAttempts, err = getInt("RECONNECT_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if delayMs, err = getInt("RECONNECT_DELAY_MS", 2000); err != nil {
		return nil, err
	}
	if attemptMs, err = getInt("RECONNECT_ATTEMPT_TIMEOUT_MS", 5000); err != nil {
		return nil, err
	}
	if turnSec < 0 || cfg.ReconnectMaxAttempts < 0 || delayMs < 0 || attemptMs < 0 {
		return nil, errors.New("timer and retry settings must not be negative")
	}
	cfg.TurnTimer = time.Duration(turnSec) * time.Second
	cfg.ReconnectDelay = time.Duration(delayMs) * time.Millisecond
	cfg.ReconnectAttemptTimeout = time.Duration(attemptMs) * time.Millisecond

	if s := os.Getenv("GAME_SEED"); s != "" {
		if cfg.GameSeed, err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, fmt.Errorf("GAME_SEED: %w", err)
		}
	}

	switch cfg.DBDialect {
	case "", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", cfg.DBDialect)
	}
	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is not set; using an insecure development secret")
		cfg.JWTSecret = "dev-secret"
	}
	return cfg, nil
}

// DSN returns the data source for the configured dialect.
func (c *Config) DSN() string {
	if c.DBDialect == "sqlite" {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

// ConfigureLogging applies LogLevel and LogFormat to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid LOG_LEVEL; using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
