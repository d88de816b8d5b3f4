package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ticker streams miniTicker updates for the tracked symbols and keeps the
// last seen price per symbol. Display only; detection never reads it.
type Ticker struct {
	wsURL   string
	symbols []string

	conn   *websocket.Conn
	prices map[string]decimal.Decimal

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

type miniTickerEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	} `json:"data"`
}

// NewTicker creates a combined-stream ticker for the given symbols.
func NewTicker(symbols []string) *Ticker {
	return &Ticker{
		wsURL:   "wss://stream.binance.com:9443/stream",
		symbols: symbols,
		prices:  make(map[string]decimal.Decimal),
		stopCh:  make(chan struct{}),
	}
}

// Start connects and begins streaming, reconnecting on failure.
func (t *Ticker) Start() {
	t.running = true
	go t.run()
	log.Info().Strs("symbols", t.symbols).Msg("Price ticker started")
}

// Stop closes the stream.
func (t *Ticker) Stop() {
	t.running = false
	close(t.stopCh)
	if t.conn != nil {
		t.conn.Close()
	}
}

// Price returns the last streamed price for a symbol.
func (t *Ticker) Price(symbol string) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.prices[strings.ToUpper(symbol)]
	return p, ok
}

func (t *Ticker) run() {
	for t.running {
		if err := t.connect(); err != nil {
			log.Error().Err(err).Msg("Ticker connection failed")
			time.Sleep(5 * time.Second)
			continue
		}

		t.readMessages()

		if t.running {
			log.Warn().Msg("Ticker disconnected, reconnecting...")
			time.Sleep(time.Second)
		}
	}
}

func (t *Ticker) connect() error {
	streams := make([]string, 0, len(t.symbols))
	for _, s := range t.symbols {
		streams = append(streams, strings.ToLower(s)+"@miniTicker")
	}
	url := fmt.Sprintf("%s?streams=%s", t.wsURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	t.conn = conn
	log.Info().Msg("Ticker stream connected")
	return nil
}

func (t *Ticker) readMessages() {
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			if t.running {
				log.Warn().Err(err).Msg("Ticker read error")
			}
			return
		}

		var ev miniTickerEvent
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Data.Symbol == "" {
			continue
		}

		price, err := decimal.NewFromString(ev.Data.Close)
		if err != nil {
			continue
		}

		t.mu.Lock()
		t.prices[ev.Data.Symbol] = price
		t.mu.Unlock()
	}
}
