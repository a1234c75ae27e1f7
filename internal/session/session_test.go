package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"playroom/internal/auth"
	"playroom/internal/store/memstore"

	"github.com/rs/zerolog"
)

func TestCodeMapsDomainErrors(t *testing.T) {
	cases := map[error]string{
		ErrRoomFull:                           "room_full",
		fmt.Errorf("join: %w", ErrRoomFull):   "room_full",
		ErrCapabilityExpired:                  "capability_expired",
		Unavailable(errors.New("conn reset")): "store_unavailable",
		errors.New("something else"):          "store_unavailable",
	}
	for err, want := range cases {
		if got := Code(err); got != want {
			t.Fatalf("Code(%v) = %q, want %q", err, got, want)
		}
	}
	if Code(nil) != "" {
		t.Fatal("Code(nil) should be empty")
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable(cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
	if Unavailable(err) != err {
		t.Fatal("double wrap")
	}
	if Unavailable(nil) != nil {
		t.Fatal("nil should stay nil")
	}
}

func TestHandleCloseRunsOnceInReverse(t *testing.T) {
	h := Open(memstore.New(), auth.Identity{UserID: "a"}, WithLogger(zerolog.Nop()))
	var order []int
	h.OnClose(func() { order = append(order, 1) })
	h.OnClose(func() { order = append(order, 2) })
	h.Close()
	h.Close()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("order = %v", order)
	}
	ran := false
	h.OnClose(func() { ran = true })
	if !ran || !h.Closed() {
		t.Fatal("closer registered after close should run immediately")
	}
}

func TestHandleAuthorizeAndClock(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := Open(memstore.New(), auth.Identity{UserID: "a"}, WithClock(func() time.Time { return fixed }), WithLogger(zerolog.Nop()))
	if err := h.Authorize("a"); err != nil {
		t.Fatalf("authorize self: %v", err)
	}
	if err := h.Authorize("b"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("authorize other: %v", err)
	}
	if err := h.Authorize(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("authorize empty: %v", err)
	}
	if !h.Now().Equal(fixed) {
		t.Fatalf("Now() = %v", h.Now())
	}
}

func TestFailureSinkCounts(t *testing.T) {
	s := NewFailureSink(zerolog.Nop())
	s.Report(Failure{Op: "heartbeat", Err: errors.New("x")})
	s.Report(Failure{Op: "heartbeat", Err: errors.New("y")})
	s.Report(Failure{Op: "score", Err: errors.New("z")})
	if s.Count("heartbeat") != 2 || s.Count("score") != 1 || s.Total() != 3 {
		t.Fatalf("counts heartbeat=%d score=%d total=%d", s.Count("heartbeat"), s.Count("score"), s.Total())
	}
	f := <-s.Failures()
	if f.Op != "heartbeat" || f.At.IsZero() {
		t.Fatalf("unexpected failure: %+v", f)
	}
}

func TestFromCodeRoundTrips(t *testing.T) {
	for _, k := range known {
		if got := FromCode(Code(k)); got != k {
			t.Fatalf("FromCode(%q) = %v", Code(k), got)
		}
	}
	if FromCode("teapot") != nil {
		t.Fatal("unknown code should map to nil")
	}
}
