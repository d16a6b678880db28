package browserctx

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName carries the opaque browser-context ID every TokenStore
// operation is scoped by. One cookie, one token slot.
const CookieName = "sofra_ctx"

type ctxKey struct{}

// Middleware assigns a browser-context ID on first touch and makes it
// available via FromContext. The cookie identifies a browser, not a
// session; it never carries credentials itself.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
				id = c.Value
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int((365 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		})
	}
}

// FromContext returns the browser-context ID, or "" outside Middleware.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithID injects a context ID directly; used by tests that bypass the
// cookie round-trip.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}
