package store

import (
	"context"
	"errors"
)

// Reason is the machine-readable explanation attached to a forced trip
// back to the login entry point. ReasonNoToken only ever appears in a
// session verdict; it is never parked in the transient channel.
type Reason string

const (
	ReasonNoToken          Reason = "no_token"
	ReasonInvalidToken     Reason = "invalid_token"
	ReasonSessionExpired   Reason = "session_expired"
	ReasonUnauthorizedRole Reason = "unauthorized_role"
)

// ErrNotFound is returned when a browser context has no token slot or
// no pending logout reason.
var ErrNotFound = errors.New("not found")

// TokenStore owns the session token's lifetime for each browser
// context. The token slot is single-slot, last-write-wins. The logout
// reason lives on a separate transient channel with pop semantics:
// TakeLogoutReason clears what it reads, so a reason is observed at
// most once. Clear removes both the token slot and any pending reason;
// clearing an absent slot is a no-op.
type TokenStore interface {
	Get(ctx context.Context, contextID string) (string, error)
	Set(ctx context.Context, contextID, token string) error
	Clear(ctx context.Context, contextID string) error
	SetLogoutReason(ctx context.Context, contextID string, reason Reason) error
	TakeLogoutReason(ctx context.Context, contextID string) (Reason, error)
}
