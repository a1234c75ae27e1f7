package store

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// changeChannel is the NOTIFY channel the row triggers in
// migrations/000001_init.up.sql publish to.
const changeChannel = "playroom_changes"

const listenRetryDelay = time.Second

func (s *Store) listen(ctx context.Context) {
	defer close(s.listenDone)
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(s.listenReady) }) }
	defer markReady()

	for {
		err := s.listenSession(ctx, markReady)
		if ctx.Err() != nil {
			return
		}
		metricListenerRestarts.Add(1)
		log.Warn().Err(err).Msg("change listener stopped; restarting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *Store) listenSession(ctx context.Context, ready func()) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// A connection left in LISTEN state must not go back to the pool.
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{changeChannel}.Sanitize()); err != nil {
		return err
	}
	ready()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		change, err := ParseChange([]byte(n.Payload))
		if err != nil {
			metricFeedBadPayload.Add(1)
			log.Warn().Err(err).Str("channel", n.Channel).Msg("drop malformed change")
			continue
		}
		s.hub.Publish(change)
	}
}
