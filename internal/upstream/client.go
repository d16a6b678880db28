package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sofrago/admin-gateway/internal/config"
	"go.uber.org/zap"
)

// Credentials is the shape the marketplace backend's authentication
// endpoint accepts.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult carries the opaque session token issued by the backend.
type AuthResult struct {
	Token string `json:"token"`
}

// Authenticator exchanges credentials for a session token. The HTTP
// client below talks to the real backend; devauth provides a local one.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error)
}

// StatusError is a non-2xx answer from the authentication endpoint,
// carrying the backend's human-readable message when it sent one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream returned %d", e.Status)
}

// Client talks to the remote marketplace backend.
type Client struct {
	loginURL string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(cfg *config.UpstreamConfig, logger *zap.Logger) *Client {
	return &Client{
		loginURL: cfg.BaseURL + cfg.LoginEndpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("authentication request failed", zap.Error(err))
		return nil, fmt.Errorf("authentication request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Best effort: the backend usually sends {"message": "..."}.
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		c.logger.Warn("authentication rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", payload.Message),
		)
		return nil, &StatusError{Status: resp.StatusCode, Message: payload.Message}
	}

	var result AuthResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("failed to decode authentication response", zap.Error(err))
		return nil, fmt.Errorf("decode authentication response: %w", err)
	}
	return &result, nil
}
