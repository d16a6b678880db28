package devauth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sofrago/admin-gateway/internal/config"
	"github.com/sofrago/admin-gateway/internal/token"
	"github.com/sofrago/admin-gateway/internal/upstream"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Provider is a config-driven local authenticator for development: one
// account, bcrypt-checked password, HS256-minted token shaped like the
// marketplace backend's. It implements upstream.Authenticator so the
// rest of the gateway cannot tell it apart from the real backend.
type Provider struct {
	username     string
	passwordHash []byte
	role         token.Role
	secret       []byte
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewProvider(cfg *config.DevAuthConfig, logger *zap.Logger) (*Provider, error) {
	if cfg.Username == "" {
		return nil, errors.New("dev auth: username is required")
	}
	if cfg.PasswordHash == "" {
		return nil, errors.New("dev auth: password hash is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("dev auth: signing secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	return &Provider{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
		role:         token.Role(cfg.Role),
		secret:       []byte(cfg.Secret),
		ttl:          ttl,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (p *Provider) Authenticate(_ context.Context, creds upstream.Credentials) (*upstream.AuthResult, error) {
	if creds.Username != p.username {
		return nil, &upstream.StatusError{Status: 401, Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(p.passwordHash, []byte(creds.Password)); err != nil {
		p.logger.Debug("dev auth password mismatch", zap.String("username", creds.Username))
		return nil, &upstream.StatusError{Status: 401, Message: "invalid credentials"}
	}

	issuedAt := p.now().UTC()
	claims := jwt.MapClaims{
		"id":       1,
		"username": p.username,
		"role":     string(p.role),
		"is_admin": p.role == token.RoleAdmin || p.role == token.RoleMasterAdmin,
		"iat":      issuedAt.Unix(),
		"exp":      issuedAt.Add(p.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		p.logger.Error("dev auth failed to sign token", zap.Error(err))
		return nil, err
	}
	return &upstream.AuthResult{Token: signed}, nil
}
