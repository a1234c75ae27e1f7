package presence

import (
	"context"
	"expvar"
	"time"

	"playroom/internal/logging"
	"playroom/internal/store"
)

var metricSweptTotal = expvar.NewInt("presence_swept_total")

// Sweeper marks presence rows disconnected once their heartbeat is older
// than staleAfter. It is off unless the server enables it; without it peers
// learn about a disconnect only from the leaving client's own write.
type Sweeper struct {
	store      store.Backend
	staleAfter time.Duration
	now        func() time.Time
}

func NewSweeper(st store.Backend, staleAfter time.Duration) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 6 * DefaultInterval
	}
	return &Sweeper{store: st, staleAfter: staleAfter, now: time.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.MarkStalePresence(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	metricSweptTotal.Add(int64(n))
	return n, nil
}

func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := logging.Component("presence_sweeper")
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn().Err(err).Msg("presence sweep failed")
					}
					continue
				}
				if n > 0 {
					logger.Info().Int("count", n).Msg("marked stale presence disconnected")
				}
			}
		}
	}()
}
