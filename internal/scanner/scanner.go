// Package scanner runs the schedule-triggered batch passes: ingest the
// newest closed candles, seed and filter levels, then check for fakeouts.
package scanner

import (
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/levelwatch/internal/fakeout"
	"github.com/web3guy0/levelwatch/internal/levels"
	"github.com/web3guy0/levelwatch/internal/market"
)

// fetchLimit is the incremental window: enough closes for the indicator
// columns of the newest candle.
const fetchLimit = 60

// Feed fetches closed candles from the exchange.
type Feed interface {
	FetchClosed(symbol string, tf market.Timeframe, limit int) ([]market.Candle, error)
}

// CandleStore persists ingested candles.
type CandleStore interface {
	UpsertCandles(candles ...market.Candle) error
}

// Scanner drives the per-timeframe passes over all tracked symbols.
// Symbols are independent: one failure is logged and the pass continues.
type Scanner struct {
	symbols       []string
	feed          Feed
	store         CandleStore
	levels        *levels.Engine
	detector      *fakeout.Detector
	backfillLimit int
}

func New(symbols []string, feed Feed, store CandleStore, lv *levels.Engine, det *fakeout.Detector, backfillLimit int) *Scanner {
	return &Scanner{
		symbols:       symbols,
		feed:          feed,
		store:         store,
		levels:        lv,
		detector:      det,
		backfillLimit: backfillLimit,
	}
}

// RunTimeframe executes one full pass for a timeframe: ingest for every
// symbol, then fakeout detection when the timeframe maps to a bucket.
func (s *Scanner) RunTimeframe(tf market.Timeframe) {
	s.IngestTimeframe(tf)
	if _, ok := market.BucketFor(tf); ok {
		s.DetectTimeframe(tf)
	}
}

// IngestTimeframe upserts the newest closed candle per symbol and, for
// bucket-native timeframes, extracts its levels and re-filters the bucket.
func (s *Scanner) IngestTimeframe(tf market.Timeframe) (ok, failed int) {
	log.Info().Str("timeframe", string(tf)).Msg("Ingesting candles")

	for _, symbol := range s.symbols {
		if err := s.ingestSymbol(symbol, tf); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("Ingest failed")
			failed++
			continue
		}
		ok++
	}

	log.Info().Str("timeframe", string(tf)).Int("ok", ok).Int("failed", failed).
		Msg("Ingest pass complete")
	return ok, failed
}

func (s *Scanner) ingestSymbol(symbol string, tf market.Timeframe) error {
	candles, err := s.feed.FetchClosed(symbol, tf, fetchLimit)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		log.Warn().Str("symbol", symbol).Str("timeframe", string(tf)).
			Msg("Feed returned no closed candles")
		return nil
	}

	newest := candles[len(candles)-1]
	if err := s.store.UpsertCandles(newest); err != nil {
		return err
	}

	bucket, native := market.NativeBucket(tf)
	if !native {
		return nil
	}
	if err := s.levels.Extract(newest); err != nil {
		return err
	}
	return s.levels.FilterBoth(symbol, bucket)
}

// DetectTimeframe runs the fakeout check for every symbol and returns the
// number of new fakeouts recorded.
func (s *Scanner) DetectTimeframe(tf market.Timeframe) (found int) {
	log.Info().Str("timeframe", string(tf)).Msg("Checking fakeouts")

	for _, symbol := range s.symbols {
		outcome, err := s.detector.CheckLatest(symbol, tf)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("Fakeout check failed")
			continue
		}
		switch outcome {
		case fakeout.NoData:
			log.Warn().Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("No candle data yet")
		case fakeout.Fakeout:
			found++
		}
	}

	log.Info().Str("timeframe", string(tf)).Int("fakeouts", found).
		Msg("Fakeout pass complete")
	return found
}

// Backfill performs the initial historical load: full candle history per
// symbol and timeframe, level extraction for every bucket-native candle,
// then one filter pass per bucket.
func (s *Scanner) Backfill() error {
	log.Info().Int("limit", s.backfillLimit).Int("symbols", len(s.symbols)).
		Msg("Starting backfill")

	for _, symbol := range s.symbols {
		for _, tf := range market.AllTimeframes {
			candles, err := s.feed.FetchClosed(symbol, tf, s.backfillLimit)
			if err != nil {
				log.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("Backfill fetch failed")
				continue
			}
			if err := s.store.UpsertCandles(candles...); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("Backfill insert failed")
				continue
			}

			bucket, native := market.NativeBucket(tf)
			if !native {
				continue
			}
			for _, c := range candles {
				if err := s.levels.Extract(c); err != nil {
					log.Error().Err(err).Str("symbol", symbol).Msg("Backfill level extract failed")
					break
				}
			}
			if err := s.levels.FilterBoth(symbol, bucket); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Str("bucket", string(bucket)).
					Msg("Backfill filter failed")
			}

			log.Info().Str("symbol", symbol).Str("timeframe", string(tf)).
				Int("candles", len(candles)).Msg("Backfilled")
		}
	}

	log.Info().Msg("Backfill complete")
	return nil
}
