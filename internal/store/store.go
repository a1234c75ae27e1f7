package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Store is the Postgres session substrate.
type Store struct {
	Pool *pgxpool.Pool
	hub  *Hub

	listenCtx    context.Context
	listenCancel context.CancelFunc
	listenOnce   sync.Once
	listenReady  chan struct{}
	listenDone   chan struct{}
}

var _ Backend = (*Store)(nil)

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		Pool:         pool,
		hub:          NewHub(),
		listenCtx:    ctx,
		listenCancel: cancel,
		listenReady:  make(chan struct{}),
		listenDone:   make(chan struct{}),
	}, nil
}

func (s *Store) Close() {
	s.listenCancel()
	// Never started: mark done so Subscribe fails instead of starting a listener.
	s.listenOnce.Do(func() { close(s.listenDone) })
	<-s.listenDone
	s.hub.Close()
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// Subscribe makes sure the notification listener is running before handing
// out a hub subscription, so changes committed after Subscribe returns are seen.
func (s *Store) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	s.listenOnce.Do(func() {
		go s.listen(s.listenCtx)
	})
	select {
	case <-s.listenReady:
	case <-s.listenDone:
		return nil, errors.New("store closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.hub.Subscribe(ctx, roomID), nil
}
