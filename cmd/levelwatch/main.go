// Levelwatch - multi-timeframe support/resistance fakeout scanner
//
// Ingests closed candles for a fixed set of pairs, keeps a filtered set of
// significant daily/weekly/monthly levels per pair, and alerts when a lower
// timeframe candle wicks through a level but closes back on the other side.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/levelwatch/internal/api"
	"github.com/web3guy0/levelwatch/internal/binance"
	"github.com/web3guy0/levelwatch/internal/bot"
	"github.com/web3guy0/levelwatch/internal/config"
	"github.com/web3guy0/levelwatch/internal/database"
	"github.com/web3guy0/levelwatch/internal/fakeout"
	"github.com/web3guy0/levelwatch/internal/levels"
	"github.com/web3guy0/levelwatch/internal/scanner"
	"github.com/web3guy0/levelwatch/internal/scheduler"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Strs("symbols", cfg.Symbols).
		Msg("Levelwatch starting...")

	// Stores
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Exchange feed
	feed := binance.NewClient(cfg.BinanceAPIURL, cfg.HTTPTimeout)
	ticker := binance.NewTicker(cfg.Symbols)
	ticker.Start()

	// Alert sink
	var telegramBot *bot.Bot
	var notifier fakeout.Notifier
	if cfg.AlertsEnabled() {
		telegramBot, err = bot.New(cfg, db, ticker)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
		}
		telegramBot.Start()
		notifier = telegramBot
	} else {
		log.Warn().Msg("Telegram not configured, alerts disabled")
	}

	// Core engines
	levelEngine := levels.NewEngine(db)
	detector := fakeout.NewDetector(db, db, notifier)
	sc := scanner.New(cfg.Symbols, feed, db, levelEngine, detector, cfg.BackfillLimit)

	// One-shot historical load
	if len(os.Args) > 1 && os.Args[1] == "--backfill" {
		if err := sc.Backfill(); err != nil {
			log.Fatal().Err(err).Msg("Backfill failed")
		}
		return
	}

	// Query API
	server := api.NewServer(cfg.HTTPAddr, db, cfg.Symbols)
	server.Start()

	// Schedule trigger
	sched := scheduler.New(sc)
	if err := sched.RegisterAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register schedules")
	}
	sched.Start()

	log.Info().Msg("All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Received shutdown signal")

	sched.Stop()
	server.Stop()
	if telegramBot != nil {
		telegramBot.Stop()
	}
	ticker.Stop()

	log.Info().Msg("Goodbye!")
}
