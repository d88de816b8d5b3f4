// Package levels extracts candidate support/resistance levels from closed
// bucket candles and filters them down to the significant frontier.
package levels

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/levelwatch/internal/market"
)

// Store is the level persistence port.
//
// PruneLevels must run the whole sequence in one storage transaction: load
// the key's levels ordered ascending by source timestamp, pass them to keep,
// and delete every level whose id was not returned. A failure partway must
// leave the store in its prior committed state.
type Store interface {
	InsertLevels(levels ...market.Level) error
	PruneLevels(symbol string, bucket market.Bucket, typ market.LevelType,
		keep func(ordered []market.Level) []uint) (kept, deleted int, err error)
}

// Engine owns level extraction and filtering. Filter calls for the same
// (symbol, bucket, type) are serialized; different keys may run in parallel.
type Engine struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Extract derives the two candidate levels from one closed bucket-native
// candle and appends them to the store. No filtering happens here.
func (e *Engine) Extract(c market.Candle) error {
	bucket, ok := market.NativeBucket(c.Timeframe)
	if !ok {
		return fmt.Errorf("timeframe %s does not seed a level bucket", c.Timeframe)
	}

	err := e.store.InsertLevels(
		market.Level{
			Symbol:          c.Symbol,
			Bucket:          bucket,
			Type:            market.LevelHigh,
			Value:           c.High,
			SourceTimestamp: c.Timestamp,
		},
		market.Level{
			Symbol:          c.Symbol,
			Bucket:          bucket,
			Type:            market.LevelLow,
			Value:           c.Low,
			SourceTimestamp: c.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("insert levels for %s %s: %w", c.Symbol, bucket, err)
	}

	log.Debug().
		Str("symbol", c.Symbol).
		Str("bucket", string(bucket)).
		Float64("high", c.High).
		Float64("low", c.Low).
		Msg("Levels extracted")
	return nil
}

// Filter reduces the stored levels for a key to the monotonic frontier and
// deletes the rest. Re-invoking immediately reports (kept, 0) and leaves the
// store unchanged.
func (e *Engine) Filter(symbol string, bucket market.Bucket, typ market.LevelType) (kept, deleted int, err error) {
	lock := e.keyLock(symbol, bucket, typ)
	lock.Lock()
	defer lock.Unlock()

	kept, deleted, err = e.store.PruneLevels(symbol, bucket, typ, func(ordered []market.Level) []uint {
		return Survivors(ordered, typ)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("filter %s %s %s: %w", symbol, bucket, typ, err)
	}

	log.Info().
		Str("symbol", symbol).
		Str("bucket", string(bucket)).
		Str("type", string(typ)).
		Int("kept", kept).
		Int("deleted", deleted).
		Msg("Levels filtered")
	return kept, deleted, nil
}

// FilterBoth filters highs and lows for one (symbol, bucket).
func (e *Engine) FilterBoth(symbol string, bucket market.Bucket) error {
	if _, _, err := e.Filter(symbol, bucket, market.LevelHigh); err != nil {
		return err
	}
	if _, _, err := e.Filter(symbol, bucket, market.LevelLow); err != nil {
		return err
	}
	return nil
}

// Survivors performs the backward monotonic reduction over levels ordered
// ascending by source timestamp and returns the ids to keep.
//
// Walking from the most recent level back in time, the most recent is always
// kept; an older high survives only when strictly above every high kept so
// far, an older low only when strictly below every low kept so far. Equal
// values are dropped. Highs [3 9 4 7 2 3 6 2 4] (oldest first) reduce to
// [9 7 6 4].
func Survivors(ordered []market.Level, typ market.LevelType) []uint {
	if len(ordered) == 0 {
		return nil
	}

	newest := ordered[len(ordered)-1]
	keep := []uint{newest.ID}
	extreme := newest.Value

	for i := len(ordered) - 2; i >= 0; i-- {
		l := ordered[i]
		switch typ {
		case market.LevelHigh:
			if l.Value > extreme {
				keep = append(keep, l.ID)
				extreme = l.Value
			}
		case market.LevelLow:
			if l.Value < extreme {
				keep = append(keep, l.ID)
				extreme = l.Value
			}
		}
	}
	return keep
}

func (e *Engine) keyLock(symbol string, bucket market.Bucket, typ market.LevelType) *sync.Mutex {
	key := symbol + "|" + string(bucket) + "|" + string(typ)

	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}
