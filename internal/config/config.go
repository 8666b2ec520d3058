package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the service.
type Config struct {
	TelegramToken string
	NotifyChatID  string
	// AllowFrom lists Telegram user ids the bot answers. Defaults to NotifyChatID.
	AllowFrom []int64

	StorageDSN   string
	StorageToken string
	CacheTTL     time.Duration

	WorkerInterval time.Duration
	DigestTime     string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	WorkerModel   string

	CalendarCredentialsFile string
	CalendarID              string
	CalendarTimeZone        string
	CalendarEventDuration   time.Duration

	MCPStdio bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:           env("TELEGRAM_TOKEN"),
		NotifyChatID:            env("NOTIFY_CHAT_ID"),
		StorageDSN:              env("STORAGE_DSN"),
		StorageToken:            env("STORAGE_TOKEN"),
		CacheTTL:                parsePositive(env("CACHE_TTL_SECONDS"), time.Second),
		WorkerInterval:          parsePositive(env("WORKER_INTERVAL_MINUTES"), time.Minute),
		DigestTime:              env("DIGEST_TIME"),
		OpenAIAPIKey:            env("OPENAI_API_KEY"),
		OpenAIBaseURL:           env("OPENAI_BASE_URL"),
		WorkerModel:             env("WORKER_MODEL"),
		CalendarCredentialsFile: env("GCAL_CREDENTIALS_FILE"),
		CalendarID:              env("GCAL_CALENDAR_ID"),
		CalendarTimeZone:        env("GCAL_TIMEZONE"),
		CalendarEventDuration:   parsePositive(env("GCAL_EVENT_MINUTES"), time.Minute),
		MCPStdio:                parseBool(env("MCP_STDIO")),
	}

	if cfg.StorageDSN == "" {
		cfg.StorageDSN = "sqlite://taskledger.db"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 300 * time.Second
	}
	if cfg.WorkerInterval == 0 {
		cfg.WorkerInterval = 30 * time.Minute
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.CalendarEventDuration == 0 {
		cfg.CalendarEventDuration = 30 * time.Minute
	}
	if cfg.WorkerModel == "" && cfg.OpenAIAPIKey != "" {
		cfg.WorkerModel = "gpt-4o-mini"
	}

	if cfg.TelegramToken == "" && !cfg.MCPStdio {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required unless MCP_STDIO is set")
	}
	if cfg.TelegramToken != "" {
		if cfg.NotifyChatID == "" {
			return cfg, fmt.Errorf("NOTIFY_CHAT_ID is required with TELEGRAM_TOKEN")
		}
		chatID, err := strconv.ParseInt(cfg.NotifyChatID, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("NOTIFY_CHAT_ID must be a numeric chat id: %w", err)
		}
		allow, err := parseIDs(env("ALLOW_FROM"))
		if err != nil {
			return cfg, fmt.Errorf("ALLOW_FROM: %w", err)
		}
		if len(allow) == 0 {
			allow = []int64{chatID}
		}
		cfg.AllowFrom = allow
	}
	if cfg.DigestTime != "" {
		if _, err := time.Parse("15:04", cfg.DigestTime); err != nil {
			return cfg, fmt.Errorf("DIGEST_TIME must be HH:MM: %w", err)
		}
	}

	return cfg, nil
}

// LLMEnabled reports whether the worker's model phase is configured.
func (c Config) LLMEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// CalendarEnabled reports whether reminders are mirrored to Google Calendar.
func (c Config) CalendarEnabled() bool {
	return c.CalendarCredentialsFile != ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parsePositive(raw string, unit time.Duration) time.Duration {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * unit
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

// parseIDs reads a comma separated list of numeric ids.
func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
