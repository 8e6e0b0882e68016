package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Persistence. Postgres wins when both are set; SQLite is the
	// development default.
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Transport bridge (chat-platform sidecar).
	BridgeURL string

	// Completion service.
	CompletionBaseURL string
	CompletionAPIKey  string
	CompletionModel   string
	PromptPath        string

	// Aggregation.
	QuietPeriod      time.Duration
	MaxUniqueSenders int
	MaxHistory       int
	ChatPattern      string
	ChatBlacklist    []string

	// Dispatch rate limiting (requires Redis).
	DispatchLimit  int
	DispatchWindow time.Duration

	// Review.
	ReviewerID      string
	ReviewChannelID string
	EditPrefix      string

	// Digest firing times, "HH:MM" local time.
	DigestTimes []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", "./data/tg-persona.db"),
		RedisURL:          os.Getenv("REDIS_URL"),
		BridgeURL:         os.Getenv("BRIDGE_URL"),
		CompletionBaseURL: getEnv("COMPLETION_BASE_URL", "https://api.openai.com/v1"),
		CompletionAPIKey:  os.Getenv("COMPLETION_API_KEY"),
		CompletionModel:   getEnv("COMPLETION_MODEL", "gpt-4o"),
		PromptPath:        os.Getenv("PROMPT_PATH"),
		QuietPeriod:       getDuration("QUIET_PERIOD", 45*time.Second),
		MaxUniqueSenders:  getInt("MAX_UNIQUE_SENDERS", 3),
		MaxHistory:        getInt("MAX_HISTORY", 25),
		ChatPattern:       getEnv("CHAT_PATTERN", ""),
		ChatBlacklist:     getList("CHAT_BLACKLIST"),
		DispatchLimit:     getInt("DISPATCH_LIMIT", 10),
		DispatchWindow:    getDuration("DISPATCH_WINDOW", time.Hour),
		ReviewerID:        os.Getenv("REVIEWER_ID"),
		ReviewChannelID:   os.Getenv("REVIEW_CHANNEL_ID"),
		EditPrefix:        getEnv("EDIT_PREFIX", "draft:"),
		DigestTimes:       getList("DIGEST_TIMES"),
	}
	if len(cfg.DigestTimes) == 0 {
		cfg.DigestTimes = []string{"09:00", "17:00"}
	}

	// In production, require everything the pipeline cannot run without.
	if cfg.Env == "production" {
		if cfg.BridgeURL == "" {
			panic("BRIDGE_URL is required in production")
		}
		if cfg.CompletionAPIKey == "" {
			panic("COMPLETION_API_KEY is required in production")
		}
		if cfg.ReviewerID == "" || cfg.ReviewChannelID == "" {
			panic("REVIEWER_ID and REVIEW_CHANNEL_ID are required in production")
		}
		if cfg.ChatPattern == "" {
			panic("CHAT_PATTERN is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getList parses a comma-separated environment variable, trimming
// whitespace and dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
