package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Auth
	JWTSecret      string
	AccessTokenTTL time.Duration

	// AMQP (alert notifications)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Assistant / external classifier
	AIProvider    string // "openai" or "none"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AIModel       string
	AITimeout     time.Duration

	// Email
	GmailCredentialsJSON string
	GmailCredentialsFile string
	EmailFrom            string
	FrontendURL          string

	// Rate limiting
	RateLimitPerMinute int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expensevista.db"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 30*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensevista"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_alerts"),

		AIProvider:    getEnv("AI_PROVIDER", "none"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AIModel:       getEnv("AI_MODEL", "gpt-4o-mini"),
		AITimeout:     getEnvDuration("AI_TIMEOUT", 8*time.Second),

		GmailCredentialsJSON: getEnv("GMAIL_CREDENTIALS_JSON", ""),
		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", ""),
		EmailFrom:            getEnv("EMAIL_FROM", ""),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:3000"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET must be set")
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, "JWT_SECRET too short: need at least 16 bytes")
	}

	if c.AccessTokenTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid access token TTL %v: must be at least 1 minute", c.AccessTokenTTL))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.AIProvider {
	case "none":
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, "OPENAI_API_KEY must be set when AI_PROVIDER is 'openai'")
		}
		if c.AITimeout < time.Second || c.AITimeout > time.Minute {
			errs = append(errs, fmt.Sprintf("invalid AI timeout %v: must be between 1s and 1m", c.AITimeout))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid AI provider '%s': must be 'openai' or 'none'", c.AIProvider))
	}

	if c.GmailCredentialsFile != "" {
		if _, err := os.Stat(c.GmailCredentialsFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Gmail credentials file does not exist: %s", c.GmailCredentialsFile))
		}
	}
	if (c.GmailCredentialsJSON != "" || c.GmailCredentialsFile != "") && c.EmailFrom == "" {
		errs = append(errs, "EMAIL_FROM must be set when Gmail credentials are provided")
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// AIEnabled reports whether the external classifier should be wired in.
func (c *Config) AIEnabled() bool {
	return c.AIProvider == "openai" && c.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
