package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the scanner
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Tracked symbols, exchange format (BTCUSDT)
	Symbols []string

	// Mode
	Debug bool

	// Binance API
	BinanceAPIURL string
	HTTPTimeout   time.Duration

	// HTTP query API
	HTTPAddr string

	// Backfill
	BackfillLimit int

	// Database: sqlite path or postgres:// URL
	DatabasePath string
}

// defaultSymbols are the pairs tracked when SYMBOLS is not set.
var defaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "LTCUSDT", "XRPUSDT",
	"DOGEUSDT", "LINKUSDT", "ADAUSDT",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		Debug: getEnvBool("DEBUG", false),

		BinanceAPIURL: getEnv("BINANCE_API_URL", "https://api.binance.com"),
		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		BackfillLimit: getEnvInt("BACKFILL_LIMIT", 1000),

		DatabasePath: getEnv("DATABASE_PATH", "data/levelwatch.db"),
	}

	// Parse symbol list
	if raw := os.Getenv("SYMBOLS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				cfg.Symbols = append(cfg.Symbols, s)
			}
		}
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = defaultSymbols
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// AlertsEnabled reports whether Telegram notifications are configured.
func (c *Config) AlertsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
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
