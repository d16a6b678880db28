package auth

import (
	"context"
	"time"

	"github.com/sofrago/admin-gateway/internal/session"
	"github.com/sofrago/admin-gateway/internal/store"
	"github.com/sofrago/admin-gateway/internal/token"
	"github.com/sofrago/admin-gateway/internal/upstream"
	"go.uber.org/zap"
)

// loginAllowList gates who may enter the console at all: admin or
// m_admin roles, or the legacy is_admin flag, all via the standard
// alias rule.
var loginAllowList = token.AllowList{token.RoleAdmin}

type AuthService interface {
	Attempt(ctx context.Context, contextID string, creds upstream.Credentials) (*token.Claims, error)
	Probe(ctx context.Context, contextID string) (*token.Claims, bool)
	ConsumeLogoutReason(ctx context.Context, contextID string) (store.Reason, bool)
	Logout(ctx context.Context, contextID string) error
}

type authService struct {
	authenticator upstream.Authenticator
	tokens        store.TokenStore
	sessions      *session.Evaluator
	logger        *zap.Logger
	now           func() time.Time
}

func NewAuthService(authenticator upstream.Authenticator, tokens store.TokenStore, sessions *session.Evaluator, logger *zap.Logger) AuthService {
	return &authService{
		authenticator: authenticator,
		tokens:        tokens,
		sessions:      sessions,
		logger:        logger,
		now:           time.Now,
	}
}

// Attempt runs the login flow. The token is validated in full (decode,
// expiry, role) strictly before it is persisted; a token that fails any
// check never reaches the store.
func (s *authService) Attempt(ctx context.Context, contextID string, creds upstream.Credentials) (*token.Claims, error) {
	result, err := s.authenticator.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, ErrMissingToken
	}

	claims, err := token.Decode(result.Token)
	if err != nil {
		s.logger.Warn("authentication endpoint returned undecodable token", zap.Error(err))
		return nil, ErrInvalidOrExpired
	}
	if claims.Expired(s.now()) {
		s.logger.Warn("authentication endpoint returned expired token",
			zap.Time("expires_at", claims.ExpiresAt))
		return nil, ErrInvalidOrExpired
	}
	if !loginAllowList.Permits(claims) {
		s.logger.Info("login rejected for non-admin role",
			zap.String("subject_id", claims.SubjectID),
			zap.String("role", string(claims.Role)),
		)
		return nil, ErrForbiddenRole
	}

	if err := s.tokens.Set(ctx, contextID, result.Token); err != nil {
		return nil, err
	}
	return claims, nil
}

// Probe reports an already-valid persisted session (decode + expiry
// only; the role gate does not apply to a session that already exists).
func (s *authService) Probe(ctx context.Context, contextID string) (*token.Claims, bool) {
	return s.sessions.Probe(ctx, contextID)
}

// ConsumeLogoutReason pops the transient reason for the advisory
// banner. Each reason is observed at most once.
func (s *authService) ConsumeLogoutReason(ctx context.Context, contextID string) (store.Reason, bool) {
	reason, err := s.tokens.TakeLogoutReason(ctx, contextID)
	if err != nil {
		return "", false
	}
	return reason, true
}

// Logout clears the slot. Idempotent; no upstream call, bearer tokens
// are invalidated client-side only.
func (s *authService) Logout(ctx context.Context, contextID string) error {
	return s.tokens.Clear(ctx, contextID)
}
