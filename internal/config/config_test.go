package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "NOTIFY_CHAT_ID", "ALLOW_FROM", "STORAGE_DSN", "STORAGE_TOKEN", "CACHE_TTL_SECONDS",
		"WORKER_INTERVAL_MINUTES", "DIGEST_TIME", "OPENAI_API_KEY", "OPENAI_BASE_URL", "WORKER_MODEL",
		"GCAL_CREDENTIALS_FILE", "GCAL_CALENDAR_ID", "GCAL_TIMEZONE", "GCAL_EVENT_MINUTES", "MCP_STDIO",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("NOTIFY_CHAT_ID", "1001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageDSN != "sqlite://taskledger.db" {
		t.Errorf("StorageDSN = %q", cfg.StorageDSN)
	}
	if cfg.CacheTTL != 300*time.Second || cfg.WorkerInterval != 30*time.Minute {
		t.Errorf("CacheTTL = %s, WorkerInterval = %s", cfg.CacheTTL, cfg.WorkerInterval)
	}
	if cfg.CalendarID != "primary" || cfg.CalendarEventDuration != 30*time.Minute {
		t.Errorf("calendar = %q %s", cfg.CalendarID, cfg.CalendarEventDuration)
	}
	if cfg.LLMEnabled() || cfg.CalendarEnabled() || cfg.MCPStdio {
		t.Errorf("optional integrations enabled by default: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("NOTIFY_CHAT_ID", "1001")
	t.Setenv("STORAGE_DSN", "postgres://localhost/ledger")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("WORKER_INTERVAL_MINUTES", "5")
	t.Setenv("DIGEST_TIME", "08:30")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GCAL_EVENT_MINUTES", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageDSN != "postgres://localhost/ledger" || cfg.CacheTTL != time.Minute || cfg.WorkerInterval != 5*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.LLMEnabled() || cfg.WorkerModel != "gpt-4o-mini" {
		t.Errorf("llm = %v %q", cfg.LLMEnabled(), cfg.WorkerModel)
	}
	if cfg.CalendarEventDuration != 30*time.Minute {
		t.Errorf("invalid GCAL_EVENT_MINUTES not ignored: %s", cfg.CalendarEventDuration)
	}
}

func TestLoadRequiresTokenUnlessMCP(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatalf("Load without token succeeded")
	}
	t.Setenv("MCP_STDIO", "true")
	if _, err := Load(); err != nil {
		t.Fatalf("Load in MCP mode: %v", err)
	}
}

func TestLoadRejectsBadDigestTime(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("NOTIFY_CHAT_ID", "1001")
	t.Setenv("DIGEST_TIME", "8am")
	if _, err := Load(); err == nil {
		t.Fatalf("bad DIGEST_TIME accepted")
	}
}

func TestLoadRequiresNotifyChatWithToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	if _, err := Load(); err == nil {
		t.Fatalf("Load without NOTIFY_CHAT_ID succeeded")
	}
	t.Setenv("NOTIFY_CHAT_ID", "@me")
	if _, err := Load(); err == nil {
		t.Fatalf("non-numeric NOTIFY_CHAT_ID accepted")
	}
}

func TestLoadAllowFrom(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("NOTIFY_CHAT_ID", "1001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowFrom) != 1 || cfg.AllowFrom[0] != 1001 {
		t.Fatalf("AllowFrom = %v, want the notify chat", cfg.AllowFrom)
	}

	t.Setenv("ALLOW_FROM", "1001, 2002")
	if cfg, err = Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowFrom) != 2 || cfg.AllowFrom[1] != 2002 {
		t.Fatalf("AllowFrom = %v", cfg.AllowFrom)
	}

	t.Setenv("ALLOW_FROM", "1001,bob")
	if _, err := Load(); err == nil {
		t.Fatalf("invalid ALLOW_FROM accepted")
	}
}
