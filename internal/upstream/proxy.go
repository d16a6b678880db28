package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/sofrago/admin-gateway/internal/browserctx"
	"github.com/sofrago/admin-gateway/internal/store"
	"go.uber.org/zap"
)

type bearerKey struct{}

// Proxy forwards guarded console API calls to the marketplace backend
// with the browser context's bearer token attached. An upstream 401 is
// the transport-level revocation signal: it triggers the same clear +
// reason + redirect effect as a guard-detected expiry, and is a no-op
// on an already-clear slot.
type Proxy struct {
	tokens    store.TokenStore
	loginPath string
	logger    *zap.Logger
	rp        *httputil.ReverseProxy
}

func NewProxy(base *url.URL, tokens store.TokenStore, loginPath string, logger *zap.Logger) *Proxy {
	p := &Proxy{
		tokens:    tokens,
		loginPath: loginPath,
		logger:    logger,
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(base)
			pr.SetXForwarded()
			if tok, ok := pr.In.Context().Value(bearerKey{}).(string); ok {
				pr.Out.Header.Set("Authorization", "Bearer "+tok)
			}
		},
		ModifyResponse: p.interceptUnauthorized,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream proxy error", zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return p
}

// Handler re-reads the token from the store on every forwarded call;
// the proxy never trusts a token captured at guard time.
func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID := browserctx.FromContext(r.Context())
		tok, err := p.tokens.Get(r.Context(), contextID)
		if err != nil {
			// The guard let the request through but the slot is gone,
			// e.g. a logout raced this call. Send them back to login.
			http.Redirect(w, r, p.loginPath, http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), bearerKey{}, tok)
		p.rp.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (p *Proxy) interceptUnauthorized(resp *http.Response) error {
	if resp.StatusCode != http.StatusUnauthorized {
		return nil
	}

	ctx := resp.Request.Context()
	contextID := browserctx.FromContext(ctx)
	if err := p.tokens.Clear(ctx, contextID); err != nil {
		p.logger.Error("failed to clear token slot after upstream 401",
			zap.String("context_id", contextID), zap.Error(err))
	}
	if err := p.tokens.SetLogoutReason(ctx, contextID, store.ReasonSessionExpired); err != nil {
		p.logger.Error("failed to park logout reason after upstream 401",
			zap.String("context_id", contextID), zap.Error(err))
	}

	// Rewrite the upstream response into the same replacing redirect a
	// guard denial produces.
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	resp.StatusCode = http.StatusSeeOther
	resp.Status = http.StatusText(http.StatusSeeOther)
	resp.Header = http.Header{}
	resp.Header.Set("Location", p.loginPath)
	resp.Body = io.NopCloser(strings.NewReader(""))
	resp.ContentLength = 0
	return nil
}
