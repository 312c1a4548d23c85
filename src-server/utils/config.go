package utils

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	port         string
	databasePath string

	jwtSecret string
	jwtExpire time.Duration

	tokenMaxAttempts         int
	metricCollectionInterval time.Duration
	corsAllowedOrigins       []string
	logLevel                 slog.Level
}

// NewConfig reads the process environment and exits on invalid values.
func NewConfig() *Config {
	config, err := ParseConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	return config
}

// ParseConfig builds a Config from getenv, applying defaults for unset keys.
func ParseConfig(getenv func(string) string) (*Config, error) {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	c := &Config{
		port: func() string {
			port := getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		databasePath: func() string {
			path := getenv("DATABASE_PATH")
			if path == "" {
				path = "./sqlite.db"
			}
			slog.Debug("env", "DATABASE_PATH", path)
			return path
		}(),

		jwtSecret: func() string {
			secret := getenv("JWT_SECRET")
			if secret == "" {
				slog.Warn("JWT_SECRET is not set")
				secret = "secret"
			}
			return secret
		}(),
		jwtExpire: func() time.Duration {
			jwtExpire := getenv("JWT_EXPIRE")
			if jwtExpire == "" {
				jwtExpire = "168h" // 1 week
			}
			duration, err := time.ParseDuration(jwtExpire)
			if err != nil || duration <= 0 {
				fail("JWT_EXPIRE", fmt.Errorf("invalid duration %q", jwtExpire))
			}
			slog.Debug("env", "JWT_EXPIRE", jwtExpire, "duration", duration)
			return duration
		}(),

		tokenMaxAttempts: func() int {
			raw := getenv("TOKEN_MAX_ATTEMPTS")
			if raw == "" {
				return 5
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				fail("TOKEN_MAX_ATTEMPTS", fmt.Errorf("must be a positive integer, got %q", raw))
			}
			slog.Debug("env", "TOKEN_MAX_ATTEMPTS", n)
			return n
		}(),
		metricCollectionInterval: func() time.Duration {
			raw := getenv("METRIC_COLLECTION_INTERVAL")
			if raw == "" {
				raw = "15s"
			}
			duration, err := time.ParseDuration(raw)
			if err != nil || duration <= 0 {
				fail("METRIC_COLLECTION_INTERVAL", fmt.Errorf("invalid duration %q", raw))
			}
			slog.Debug("env", "METRIC_COLLECTION_INTERVAL", duration)
			return duration
		}(),
		corsAllowedOrigins: func() []string {
			raw := getenv("CORS_ALLOWED_ORIGINS")
			if raw == "" {
				return []string{"*"}
			}
			origins := make([]string, 0)
			for _, origin := range strings.Split(raw, ",") {
				if origin = strings.TrimSpace(origin); origin != "" {
					origins = append(origins, origin)
				}
			}
			slog.Debug("env", "CORS_ALLOWED_ORIGINS", origins)
			return origins
		}(),
		logLevel: func() slog.Level {
			var level slog.Level
			raw := getenv("LOG_LEVEL")
			if raw == "" {
				return slog.LevelDebug
			}
			if err := level.UnmarshalText([]byte(raw)); err != nil {
				fail("LOG_LEVEL", err)
			}
			return level
		}(),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("ParseConfig: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get DATABASE_PATH env, default to ./sqlite.db
func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// Get JWT_SECRET env
func (c *Config) GetJWTSecret() string {
	return c.jwtSecret
}

// Get JWT_EXPIRE env
func (c *Config) GetJWTExpire() time.Duration {
	return c.jwtExpire
}

// Get TOKEN_MAX_ATTEMPTS env, default to 5
func (c *Config) GetTokenMaxAttempts() int {
	return c.tokenMaxAttempts
}

// Get METRIC_COLLECTION_INTERVAL env, default to 15s
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get CORS_ALLOWED_ORIGINS env
func (c *Config) GetCorsAllowedOrigins() []string {
	return c.corsAllowedOrigins
}

// Get LOG_LEVEL env
func (c *Config) GetLogLevel() slog.Level {
	return c.logLevel
}
