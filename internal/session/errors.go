package session

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRoomNotFound      = errors.New("room_not_found")
	ErrRoomFull          = errors.New("room_full")
	ErrRoomFinished      = errors.New("room_finished")
	ErrTokenMismatch     = errors.New("token_mismatch")
	ErrCapabilityExpired = errors.New("capability_expired")
	ErrStoreUnavailable  = errors.New("store_unavailable")
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrClosed            = errors.New("session_closed")
)

var known = []error{
	ErrUnauthorized,
	ErrRoomNotFound,
	ErrRoomFull,
	ErrRoomFinished,
	ErrTokenMismatch,
	ErrCapabilityExpired,
	ErrStoreUnavailable,
	ErrInvalidRequest,
	ErrClosed,
}

// Unavailable wraps a substrate failure so callers can tell it apart from a
// domain outcome while keeping the cause.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Code maps an error to its wire code. Unknown errors are reported as
// store_unavailable since every non-domain failure comes from the substrate.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return ErrStoreUnavailable.Error()
}

// FromCode returns the sentinel for a wire code, or nil for codes this
// package does not define.
func FromCode(code string) error {
	for _, k := range known {
		if k.Error() == code {
			return k
		}
	}
	return nil
}
