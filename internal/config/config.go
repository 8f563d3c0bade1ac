package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	APIKey      string

	AltAuthToken string
	AltCookie    string

	TelegramBotToken string
	TelegramChatID   int64

	CollectionSymbol   string
	WatchdogPollMillis int
	ReaperDelayMillis  int
	StaleAfterHours    int
	FreshWindowDays    int
	InitialPopulation  int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
		AltAuthToken:     strings.TrimSpace(os.Getenv("ALT_AUTH_TOKEN")),
		AltCookie:        strings.TrimSpace(os.Getenv("ALT_COOKIE")),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, alerts will be logged only")
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		} else {
			log.Printf("Warning: invalid TELEGRAM_CHAT_ID %q, ignoring", v)
		}
	}

	cfg.CollectionSymbol = strings.TrimSpace(os.Getenv("COLLECTION_SYMBOL"))
	if cfg.CollectionSymbol == "" {
		cfg.CollectionSymbol = "collector_crypt"
	}

	cfg.WatchdogPollMillis = 300
	if v := os.Getenv("WATCHDOG_POLL_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WatchdogPollMillis = n
		}
	}

	cfg.ReaperDelayMillis = 550
	if v := os.Getenv("REAPER_DELAY_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReaperDelayMillis = n
		}
	}

	cfg.StaleAfterHours = 24
	if v := os.Getenv("STALE_AFTER_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StaleAfterHours = n
		}
	}

	cfg.FreshWindowDays = 7
	if v := os.Getenv("FRESH_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.FreshWindowDays = n
		}
	}

	cfg.InitialPopulation = 100
	if v := os.Getenv("INITIAL_POPULATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InitialPopulation = n
		}
	}

	return cfg
}

// Validate reports startup-fatal problems. The pipeline cannot run without
// valuation credentials, so main refuses to start rather than letting every
// enrichment fail at runtime.
func (c *Config) Validate() error {
	if c.AltAuthToken == "" || c.AltCookie == "" {
		return errors.New("ALT_AUTH_TOKEN and ALT_COOKIE must be set")
	}
	return nil
}
