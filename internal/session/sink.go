package session

import (
	"expvar"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var metricBackgroundFailures = expvar.NewMap("session_background_failures_total")

// Failure is a swallowed error from a background write (heartbeat, score).
type Failure struct {
	Op     string
	RoomID string
	UserID string
	Err    error
	At     time.Time
}

// FailureSink records background failures instead of propagating them: the
// write is soft state that the next attempt supersedes.
type FailureSink struct {
	log zerolog.Logger

	mu     sync.Mutex
	counts map[string]int
	ch     chan Failure
}

func NewFailureSink(log zerolog.Logger) *FailureSink {
	return &FailureSink{
		log:    log,
		counts: map[string]int{},
		ch:     make(chan Failure, 32),
	}
}

func (s *FailureSink) Report(f Failure) {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	s.mu.Lock()
	s.counts[f.Op]++
	s.mu.Unlock()
	metricBackgroundFailures.Add(f.Op, 1)
	s.log.Warn().Err(f.Err).Str("op", f.Op).Str("room_id", f.RoomID).Str("user_id", f.UserID).Msg("background write failed")
	select {
	case s.ch <- f:
	default:
	}
}

func (s *FailureSink) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

func (s *FailureSink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// Failures is a lossy stream of recent failures for observers.
func (s *FailureSink) Failures() <-chan Failure {
	return s.ch
}
