package auth

import (
	"context"
	"errors"
)

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
)

// Identity is the verified caller. Every read and write a session performs is
// scoped to it.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type identityContextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.UserID != ""
}
