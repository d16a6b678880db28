package guard

import (
	"context"
	"net/http"

	"github.com/sofrago/admin-gateway/internal/browserctx"
	"github.com/sofrago/admin-gateway/internal/session"
	"github.com/sofrago/admin-gateway/internal/token"
	"go.uber.org/zap"
)

// Evaluator is the slice of session.Evaluator the guard needs; tests
// substitute their own.
type Evaluator interface {
	Evaluate(ctx context.Context, contextID string, allow token.AllowList) session.Verdict
}

type claimsKey struct{}

// Require guards a route subtree with a role allow-list. Each request
// gets a fresh verdict; a denial answers with a replacing redirect to
// the login entry point, with the denial reason already parked in the
// transient channel by the evaluator where applicable. Guard denials
// never surface as errors to the client beyond the redirect.
func Require(eval Evaluator, allow token.AllowList, loginPath string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contextID := browserctx.FromContext(r.Context())
			verdict := eval.Evaluate(r.Context(), contextID, allow)
			if !verdict.Authenticated() {
				logger.Info("access denied",
					zap.String("path", r.URL.Path),
					zap.String("reason", string(verdict.Reason)),
				)
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, verdict.Claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims Require injected for the
// current request, or nil on an unguarded route.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	c, _ := ctx.Value(claimsKey{}).(*token.Claims)
	return c
}
