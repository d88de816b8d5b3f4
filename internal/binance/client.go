// Package binance fetches closed candles over REST and streams live prices
// over WebSocket.
package binance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/levelwatch/internal/indicators"
	"github.com/web3guy0/levelwatch/internal/market"
)

// Client fetches kline data from the Binance REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a REST client against the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchClosed returns up to limit closed candles for the pair, oldest first,
// with the still-forming bar dropped and indicator columns filled where
// enough history exists.
func (c *Client) FetchClosed(symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(tf))
	// One extra so the forming candle can be dropped
	q.Set("limit", strconv.Itoa(limit+1))

	reqURL := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, q.Encode())
	resp, err := c.http.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, tf, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch klines %s %s: status %d", symbol, tf, resp.StatusCode)
	}

	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode klines %s %s: %w", symbol, tf, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// The last entry is the candle still forming; only closed bars count.
	raw = raw[:len(raw)-1]

	candles := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, tf, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	applyIndicators(candles)
	return candles, nil
}

// parseKline converts one raw kline array: open time, then O/H/L/C/V as
// decimal strings.
func parseKline(symbol string, tf market.Timeframe, k []interface{}) (market.Candle, error) {
	if len(k) < 6 {
		return market.Candle{}, fmt.Errorf("malformed kline for %s %s", symbol, tf)
	}

	openTime, ok := k[0].(float64)
	if !ok {
		return market.Candle{}, fmt.Errorf("malformed kline open time for %s %s", symbol, tf)
	}

	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		s, ok := k[i+1].(string)
		if !ok {
			return market.Candle{}, fmt.Errorf("malformed kline field %d for %s %s", i+1, symbol, tf)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return market.Candle{}, fmt.Errorf("parse kline field %d for %s %s: %w", i+1, symbol, tf, err)
		}
		vals[i], _ = d.Float64()
	}

	return market.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// applyIndicators fills RSI(8), EMA(20) and EMA(50) per candle over the
// closes up to and including it. Candles with fewer than MinHistory closes
// behind them keep null indicators.
func applyIndicators(candles []market.Candle) {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	for i := range candles {
		if i+1 < indicators.MinHistory {
			continue
		}
		window := closes[:i+1]
		if v, ok := indicators.RSI(window, 8); ok {
			rsi := v
			candles[i].RSI8 = &rsi
		}
		if v, ok := indicators.EMA(window, 20); ok {
			ema := v
			candles[i].EMA20 = &ema
		}
		if v, ok := indicators.EMA(window, 50); ok {
			ema := v
			candles[i].EMA50 = &ema
		}
	}
}
