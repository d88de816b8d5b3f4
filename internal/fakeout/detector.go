// Package fakeout evaluates the newest closed candle of a lower timeframe
// against the filtered levels of its mapped higher bucket and annotates
// wick-and-reject patterns at most once per candle.
package fakeout

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/levelwatch/internal/market"
)

// CandleStore is the candle persistence port used by the detector.
type CandleStore interface {
	LatestCandle(symbol string, tf market.Timeframe) (*market.Candle, error)
	// MarkFakeout must only apply when the candle's annotation is still
	// unset and report whether a row changed.
	MarkFakeout(symbol string, tf market.Timeframe, ts time.Time, typ market.FakeoutType, level float64) (bool, error)
}

// LevelStore reads the currently filtered levels.
type LevelStore interface {
	LevelsByValue(symbol string, bucket market.Bucket, typ market.LevelType) ([]market.Level, error)
}

// Notifier delivers fakeout alerts. Delivery failure never affects the
// recorded annotation.
type Notifier interface {
	NotifyFakeout(symbol string, tf market.Timeframe, typ market.FakeoutType, level float64, candle market.Candle) error
}

// Outcome of one CheckLatest call.
type Outcome int

const (
	// NoData means the pair has no candles yet; surfaced as a warning by
	// the driving loop, distinct from a clean no-match.
	NoData Outcome = iota
	NoMatch
	Fakeout
)

type Detector struct {
	candles  CandleStore
	levels   LevelStore
	notifier Notifier
}

func NewDetector(candles CandleStore, levels LevelStore, notifier Notifier) *Detector {
	return &Detector{candles: candles, levels: levels, notifier: notifier}
}

// CheckLatest tests the newest closed candle of a lower timeframe against
// the filtered levels of its mapped bucket and records a fakeout at most
// once. Re-running on an already annotated candle is a no-op.
func (d *Detector) CheckLatest(symbol string, tf market.Timeframe) (Outcome, error) {
	bucket, ok := market.BucketFor(tf)
	if !ok {
		return NoMatch, fmt.Errorf("timeframe %s is not checked for fakeouts", tf)
	}

	candle, err := d.candles.LatestCandle(symbol, tf)
	if err != nil {
		return NoMatch, fmt.Errorf("latest candle %s %s: %w", symbol, tf, err)
	}
	if candle == nil {
		return NoData, nil
	}
	if candle.IsFakeout {
		log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).
			Msg("Candle already annotated, skipping")
		return NoMatch, nil
	}

	// Highs first, ascending by value; the first pierced-and-rejected
	// level wins.
	highs, err := d.levels.LevelsByValue(symbol, bucket, market.LevelHigh)
	if err != nil {
		return NoMatch, fmt.Errorf("load high levels %s %s: %w", symbol, bucket, err)
	}
	for _, l := range highs {
		if candle.High > l.Value && candle.Close < l.Value {
			return d.record(symbol, tf, *candle, market.LevelHigh, l.Value)
		}
	}

	lows, err := d.levels.LevelsByValue(symbol, bucket, market.LevelLow)
	if err != nil {
		return NoMatch, fmt.Errorf("load low levels %s %s: %w", symbol, bucket, err)
	}
	for _, l := range lows {
		if candle.Low < l.Value && candle.Close > l.Value {
			return d.record(symbol, tf, *candle, market.LevelLow, l.Value)
		}
	}

	return NoMatch, nil
}

// record writes the annotation and then dispatches the alert. The annotation
// is the durable source of truth: when the guarded write reports the candle
// was annotated by someone else, no alert goes out; when the alert itself
// fails, the annotation stands.
func (d *Detector) record(symbol string, tf market.Timeframe, candle market.Candle, typ market.FakeoutType, level float64) (Outcome, error) {
	marked, err := d.candles.MarkFakeout(symbol, tf, candle.Timestamp, typ, level)
	if err != nil {
		return NoMatch, fmt.Errorf("mark fakeout %s %s: %w", symbol, tf, err)
	}
	if !marked {
		log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).
			Msg("Annotation raced by a concurrent check, skipping alert")
		return NoMatch, nil
	}

	log.Info().
		Str("symbol", symbol).
		Str("timeframe", string(tf)).
		Str("type", string(typ)).
		Float64("level", level).
		Float64("close", candle.Close).
		Msg("Fakeout detected")

	if d.notifier != nil {
		if err := d.notifier.NotifyFakeout(symbol, tf, typ, level, candle); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to send fakeout alert")
		}
	}
	return Fakeout, nil
}
