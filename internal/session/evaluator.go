package session

import (
	"context"
	"errors"
	"time"

	"github.com/sofrago/admin-gateway/internal/store"
	"github.com/sofrago/admin-gateway/internal/token"
	"go.uber.org/zap"
)

// Verdict is the outcome of evaluating one browser context against one
// allow-list. Claims is non-nil exactly when the session is authenticated.
type Verdict struct {
	Claims *token.Claims
	Reason store.Reason
}

func (v Verdict) Authenticated() bool { return v.Claims != nil }

// Evaluator computes session verdicts. Every call re-reads and
// re-decodes the token from the store; nothing is cached between calls,
// so a verdict can never outlive the slot state it was derived from.
type Evaluator struct {
	tokens store.TokenStore
	logger *zap.Logger
	now    func() time.Time
}

func NewEvaluator(tokens store.TokenStore, logger *zap.Logger) *Evaluator {
	return &Evaluator{tokens: tokens, logger: logger, now: time.Now}
}

// Evaluate runs the verdict table for one request. Decode failures and
// expiry clear the slot and park a reason; a role rejection parks a
// reason but keeps the token, since it may still satisfy a
// less-restricted route. Expiry is checked strictly before role.
func (e *Evaluator) Evaluate(ctx context.Context, contextID string, allow token.AllowList) Verdict {
	raw, err := e.tokens.Get(ctx, contextID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Error("token slot read failed", zap.String("context_id", contextID), zap.Error(err))
		}
		return Verdict{Reason: store.ReasonNoToken}
	}

	claims, err := token.Decode(raw)
	if err != nil {
		e.invalidate(ctx, contextID, store.ReasonInvalidToken)
		return Verdict{Reason: store.ReasonInvalidToken}
	}

	if claims.Expired(e.now()) {
		e.invalidate(ctx, contextID, store.ReasonSessionExpired)
		return Verdict{Reason: store.ReasonSessionExpired}
	}

	if !allow.Permits(claims) {
		if err := e.tokens.SetLogoutReason(ctx, contextID, store.ReasonUnauthorizedRole); err != nil {
			e.logger.Error("failed to park logout reason", zap.String("context_id", contextID), zap.Error(err))
		}
		return Verdict{Reason: store.ReasonUnauthorizedRole}
	}

	return Verdict{Claims: claims}
}

// Probe is the quiet variant used by the login flow's pre-check: decode
// and expiry only, no role gate, and no reason is parked. Dead tokens
// are still cleared so the slot never holds something untrusted.
func (e *Evaluator) Probe(ctx context.Context, contextID string) (*token.Claims, bool) {
	raw, err := e.tokens.Get(ctx, contextID)
	if err != nil {
		return nil, false
	}
	claims, err := token.Decode(raw)
	if err != nil || claims.Expired(e.now()) {
		if clearErr := e.tokens.Clear(ctx, contextID); clearErr != nil {
			e.logger.Error("failed to clear dead token", zap.String("context_id", contextID), zap.Error(clearErr))
		}
		return nil, false
	}
	return claims, true
}

// invalidate clears the slot first, then parks the reason: Clear wipes
// the reason channel too, so the order matters.
func (e *Evaluator) invalidate(ctx context.Context, contextID string, reason store.Reason) {
	if err := e.tokens.Clear(ctx, contextID); err != nil {
		e.logger.Error("failed to clear token slot", zap.String("context_id", contextID), zap.Error(err))
	}
	if err := e.tokens.SetLogoutReason(ctx, contextID, reason); err != nil {
		e.logger.Error("failed to park logout reason", zap.String("context_id", contextID), zap.Error(err))
	}
}
