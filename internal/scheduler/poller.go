// Package scheduler runs the engine's timer-driven triggers. Each poller is
// an independent ticker loop; ticks are stateless and all cross-tick memory
// lives in the idempotency ledger, which is what makes overlapping or
// repeated polling safe. A failed tick is logged and the loop keeps going.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is one poll iteration.
type TickFunc func(ctx context.Context) error

// Poller invokes a TickFunc on a fixed cadence until its context is
// cancelled.
type Poller struct {
	name     string
	interval time.Duration
	tick     TickFunc
	log      zerolog.Logger
}

// New constructs a Poller with a sane minimum interval.
func New(name string, interval time.Duration, tick TickFunc, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		name:     name,
		interval: interval,
		tick:     tick,
		log:      log.With().Str("poller", name).Logger(),
	}
}

// Run executes the poll loop until context cancellation. The first tick
// runs immediately so a restart does not wait a full interval to catch up;
// the ledger keeps the extra tick harmless.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.tick(ctx); err != nil && ctx.Err() == nil {
			p.log.Error().Err(err).Msg("poll tick failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
