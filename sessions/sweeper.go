package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = time.Hour

// Sweeper deletes expired and stale-revoked sessions on a fixed interval,
// independent of request handling. Sweep failures are logged and retried on
// the next tick; they are never fatal.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a Sweeper over the given store. A zero interval uses
// DefaultSweepInterval.
func NewSweeper(store *Store, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (w *Sweeper) Start() {
	go w.run()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (w *Sweeper) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Sweeper) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Sweeper) sweep() {
	count, err := w.store.SweepExpired(context.Background())
	if err != nil {
		w.logger.Error().Err(err).Msg("session sweep failed")
		return
	}
	if count > 0 {
		w.logger.Info().Int("deleted", count).Msg("session sweep completed")
	}
}
