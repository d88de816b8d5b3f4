// Package bot provides the Telegram alert sink and command interface.
package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/levelwatch/internal/binance"
	"github.com/web3guy0/levelwatch/internal/config"
	"github.com/web3guy0/levelwatch/internal/database"
	"github.com/web3guy0/levelwatch/internal/market"
)

// Bot sends fakeout alerts and answers query commands.
type Bot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	db      *database.Database
	ticker  *binance.Ticker
	symbols []string
	stopCh  chan struct{}
}

// New creates the Telegram bot.
func New(cfg *config.Config, db *database.Database, ticker *binance.Ticker) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("Telegram bot connected")

	return &Bot{
		api:     api,
		chatID:  cfg.TelegramChatID,
		db:      db,
		ticker:  ticker,
		symbols: cfg.Symbols,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins the bot's command listener
func (b *Bot) Start() {
	go b.listenForCommands()
}

// Stop stops the bot
func (b *Bot) Stop() {
	close(b.stopCh)
}

// NotifyFakeout sends a fakeout alert. Fire-and-forget from the detector's
// perspective; an error here never touches the recorded annotation.
func (b *Bot) NotifyFakeout(symbol string, tf market.Timeframe, typ market.FakeoutType, level float64, candle market.Candle) error {
	emoji := "🟢"
	direction := "LOW"
	wicked := "below"
	closed := "above"
	if typ == market.LevelHigh {
		emoji = "🔴"
		direction = "HIGH"
		wicked = "above"
		closed = "below"
	}

	msg := fmt.Sprintf(`%s <b>FAKEOUT DETECTED</b> %s

<b>Symbol:</b> %s
<b>Timeframe:</b> %s
<b>Type:</b> %s Fakeout
<b>Level:</b> $%s

<b>Candle Data:</b>
• High: $%s
• Low: $%s
• Close: $%s
• Time: %s

The price wicked %s $%s but closed %s it.`,
		emoji, emoji,
		displaySymbol(symbol),
		tf,
		direction,
		formatPrice(level),
		formatPrice(candle.High),
		formatPrice(candle.Low),
		formatPrice(candle.Close),
		candle.Timestamp.Format("2006-01-02 15:04 MST"),
		wicked, formatPrice(level), closed,
	)

	return b.send(msg)
}

func (b *Bot) send(text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	var reply string
	switch msg.Command() {
	case "status":
		reply = b.statusMessage()
	case "price":
		reply = b.priceMessage()
	case "fakeouts":
		reply = b.fakeoutsMessage()
	case "levels":
		reply = b.levelsMessage(msg.CommandArguments())
	default:
		reply = "Commands:\n/status — scanner health\n/price — live prices\n/fakeouts — recent fakeouts\n/levels <symbol> — current levels"
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(out); err != nil {
		log.Error().Err(err).Msg("Failed to send reply")
	}
}

func (b *Bot) statusMessage() string {
	var sb strings.Builder
	sb.WriteString("<b>Scanner Status</b>\n\n")
	for _, symbol := range b.symbols {
		candle, err := b.db.LatestCandle(symbol, market.TF5m)
		if err != nil || candle == nil {
			sb.WriteString(fmt.Sprintf("%s: no data\n", displaySymbol(symbol)))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: last 5m close %s\n",
			displaySymbol(symbol), candle.Timestamp.Format("15:04 MST")))
	}
	return sb.String()
}

func (b *Bot) priceMessage() string {
	var sb strings.Builder
	sb.WriteString("<b>Live Prices</b>\n\n")
	for _, symbol := range b.symbols {
		price, ok := b.ticker.Price(symbol)
		if !ok {
			sb.WriteString(fmt.Sprintf("%s: —\n", displaySymbol(symbol)))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: $%s\n", displaySymbol(symbol), price.StringFixed(2)))
	}
	return sb.String()
}

func (b *Bot) fakeoutsMessage() string {
	fakeouts, err := b.db.RecentFakeouts("", "", "", 10)
	if err != nil {
		return "Failed to load fakeouts"
	}
	if len(fakeouts) == 0 {
		return "No fakeouts recorded yet"
	}

	var sb strings.Builder
	sb.WriteString("<b>Recent Fakeouts</b>\n\n")
	for _, c := range fakeouts {
		level := "?"
		if c.FakeoutLevel != nil {
			level = formatPrice(*c.FakeoutLevel)
		}
		sb.WriteString(fmt.Sprintf("%s %s %s @ $%s (%s)\n",
			displaySymbol(c.Symbol), c.Timeframe, strings.ToUpper(string(c.FakeoutType)),
			level, c.Timestamp.Format("Jan 2 15:04")))
	}
	return sb.String()
}

func (b *Bot) levelsMessage(arg string) string {
	symbol := strings.ToUpper(strings.TrimSpace(arg))
	if symbol == "" {
		return "Usage: /levels BTCUSDT"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Levels — %s</b>\n", displaySymbol(symbol)))
	for _, bucket := range []market.Bucket{market.BucketDaily, market.BucketWeekly, market.BucketMonthly} {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", bucket))
		for _, typ := range []market.LevelType{market.LevelHigh, market.LevelLow} {
			levels, err := b.db.LevelsByValue(symbol, bucket, typ)
			if err != nil {
				return "Failed to load levels"
			}
			vals := make([]string, 0, len(levels))
			for _, l := range levels {
				vals = append(vals, formatPrice(l.Value))
			}
			if len(vals) == 0 {
				vals = append(vals, "—")
			}
			sb.WriteString(fmt.Sprintf("%ss: %s\n", typ, strings.Join(vals, ", ")))
		}
	}
	return sb.String()
}

// displaySymbol formats BTCUSDT as BTC/USDT.
func displaySymbol(symbol string) string {
	if strings.HasSuffix(symbol, "USDT") {
		return strings.TrimSuffix(symbol, "USDT") + "/USDT"
	}
	return symbol
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
