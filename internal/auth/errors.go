package auth

import "errors"

var (
	// ErrMissingToken: the backend answered 2xx but sent no token.
	ErrMissingToken = errors.New("authentication response missing token")
	// ErrInvalidOrExpired: the token failed decode or was already past
	// expiry at receipt time. Never persisted.
	ErrInvalidOrExpired = errors.New("token invalid or expired")
	// ErrForbiddenRole: decoded fine but the account's role is not
	// allowed into the console at all. Distinct from a guard-time
	// rejection; never persisted either.
	ErrForbiddenRole = errors.New("role not permitted")
)
