package session

import (
	"sync"
	"time"

	"playroom/internal/auth"
	"playroom/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handle is one client's session: the substrate, the verified identity and the
// resources started on its behalf. It is created at session start, passed to
// each component and closed exactly once.
type Handle struct {
	store    store.Backend
	identity auth.Identity
	now      func() time.Time
	log      zerolog.Logger
	sink     *FailureSink

	mu      sync.Mutex
	closers []func()
	closed  bool
}

type Option func(*Handle)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handle) { h.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handle) { h.log = l }
}

func Open(st store.Backend, id auth.Identity, opts ...Option) *Handle {
	h := &Handle{
		store:    st,
		identity: id,
		now:      time.Now,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With().Str("user_id", id.UserID).Logger()
	h.sink = NewFailureSink(h.log)
	return h
}

func (h *Handle) Store() store.Backend    { return h.store }
func (h *Handle) Identity() auth.Identity { return h.identity }
func (h *Handle) Now() time.Time          { return h.now() }
func (h *Handle) Logger() zerolog.Logger  { return h.log }
func (h *Handle) Failures() *FailureSink  { return h.sink }

// Authorize reports ErrUnauthorized unless userID is the handle's identity.
func (h *Handle) Authorize(userID string) error {
	if userID == "" || userID != h.identity.UserID {
		return ErrUnauthorized
	}
	return nil
}

// OnClose registers fn to run when the handle closes. On an already closed
// handle fn runs immediately.
func (h *Handle) OnClose(fn func()) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		fn()
		return
	}
	h.closers = append(h.closers, fn)
	h.mu.Unlock()
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close runs registered closers in reverse order. Later calls are no-ops.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
