// Package scheduler triggers the batch passes on each timeframe's cadence.
// The scanner itself stays purely reactive; a missed or failed tick is
// simply retried by the next one.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/levelwatch/internal/market"
	"github.com/web3guy0/levelwatch/internal/scanner"
)

// Scheduler manages the per-timeframe cron entries.
type Scheduler struct {
	cron    *cron.Cron
	scanner *scanner.Scanner
}

// Cron specs run a few seconds after each close so the exchange has the
// closed bar available.
var timeframeSpecs = map[market.Timeframe]string{
	market.TF5m: "5 */5 * * * *",
	market.TF1h: "10 0 * * * *",
	market.TF4h: "15 0 */4 * * *",
	market.TF1d: "20 0 0 * * *",
	market.TF1w: "30 0 0 * * 1",
	market.TF1M: "45 0 0 1 * *",
}

func New(sc *scanner.Scanner) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		scanner: sc,
	}
}

// RegisterAll registers one entry per tracked timeframe.
func (s *Scheduler) RegisterAll() error {
	for _, tf := range market.AllTimeframes {
		tf := tf
		spec, ok := timeframeSpecs[tf]
		if !ok {
			return fmt.Errorf("no cron spec for timeframe %s", tf)
		}
		if _, err := s.cron.AddFunc(spec, func() {
			s.scanner.RunTimeframe(tf)
		}); err != nil {
			return fmt.Errorf("register %s task: %w", tf, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("Scheduler stopped")
}
