package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "SYMBOLS", "DEBUG",
		"BINANCE_API_URL", "HTTP_TIMEOUT", "HTTP_ADDR", "BACKFILL_LIMIT", "DATABASE_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultSymbols, cfg.Symbols)
	assert.Equal(t, "https://api.binance.com", cfg.BinanceAPIURL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 1000, cfg.BackfillLimit)
	assert.Equal(t, "data/levelwatch.db", cfg.DatabasePath)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.AlertsEnabled())
}

func TestLoadSymbolList(t *testing.T) {
	t.Setenv("SYMBOLS", " btcusdt, ETHUSDT ,, solusdt ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, cfg.Symbols)
}

func TestLoadChatID(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234567890")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), cfg.TelegramChatID)
	assert.True(t, cfg.AlertsEnabled())
}

func TestLoadInvalidChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}
