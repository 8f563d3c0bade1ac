package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "")
	t.Setenv("WATCHDOG_POLL_MILLIS", "")
	t.Setenv("REAPER_DELAY_MILLIS", "")
	t.Setenv("COLLECTION_SYMBOL", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Errorf("expected redis default, got %q", cfg.RedisURL)
	}
	if cfg.WatchdogPollMillis != 300 {
		t.Errorf("expected 300ms watchdog poll, got %d", cfg.WatchdogPollMillis)
	}
	if cfg.ReaperDelayMillis != 550 {
		t.Errorf("expected 550ms reaper delay, got %d", cfg.ReaperDelayMillis)
	}
	if cfg.StaleAfterHours != 24 || cfg.FreshWindowDays != 7 {
		t.Errorf("unexpected staleness defaults: %d %d", cfg.StaleAfterHours, cfg.FreshWindowDays)
	}
	if cfg.CollectionSymbol != "collector_crypt" {
		t.Errorf("unexpected collection: %q", cfg.CollectionSymbol)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WATCHDOG_POLL_MILLIS", "1000")
	t.Setenv("REAPER_DELAY_MILLIS", "250")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123456")

	cfg := Load()
	if cfg.WatchdogPollMillis != 1000 {
		t.Errorf("expected override 1000, got %d", cfg.WatchdogPollMillis)
	}
	if cfg.ReaperDelayMillis != 250 {
		t.Errorf("expected override 250, got %d", cfg.ReaperDelayMillis)
	}
	if cfg.TelegramChatID != -100123456 {
		t.Errorf("expected chat id parsed, got %d", cfg.TelegramChatID)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing valuation credentials")
	}
	cfg.AltAuthToken = "tok"
	cfg.AltCookie = "cookie"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
