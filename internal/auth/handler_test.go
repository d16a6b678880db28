package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sofrago/admin-gateway/internal/browserctx"
	"github.com/sofrago/admin-gateway/internal/config"
	"github.com/sofrago/admin-gateway/internal/session"
	"github.com/sofrago/admin-gateway/internal/store"
	"github.com/sofrago/admin-gateway/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testRoutes = &config.RoutesConfig{LoginPath: "/login", DashboardPath: "/dashboard"}

func newHandler(authenticator upstream.Authenticator, tokens store.TokenStore) AuthenticationHandler {
	svc := NewAuthService(authenticator, tokens, session.NewEvaluator(tokens, zap.NewNop()), zap.NewNop())
	return NewAuthenticationHandler(svc, testRoutes, zap.NewNop())
}

func doRequest(h AuthenticationHandler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(browserctx.WithID(req.Context(), "ctx-1"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder, field string) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	raw := env.Data
	if field == "error" {
		raw = env.Error
	}
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLogin_Success(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": 9, "username": "zeynep", "role": "m_admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tokens := store.NewMemoryStore()
	h := newHandler(&stubAuthenticator{result: &upstream.AuthResult{Token: raw}}, tokens)

	rec := doRequest(h, http.MethodPost, "/login", `{"username":"zeynep","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[loginResponse](t, rec, "data")
	assert.Equal(t, "9", resp.SubjectID)
	assert.Equal(t, "m_admin", resp.Role)
	assert.Equal(t, "/dashboard", resp.Redirect)

	stored, err := tokens.Get(context.Background(), "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
}

func TestLogin_UpstreamMessageSurfacesInline(t *testing.T) {
	h := newHandler(&stubAuthenticator{err: &upstream.StatusError{Status: 401, Message: "wrong password"}}, store.NewMemoryStore())

	rec := doRequest(h, http.MethodPost, "/login", `{"username":"u","password":"p"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeBody[map[string]any](t, rec, "error")
	assert.Equal(t, "unauthorized", errBody["code"])
	assert.Equal(t, "wrong password", errBody["message"])
}

func TestLogin_ForbiddenRole(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": 9, "role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tokens := store.NewMemoryStore()
	h := newHandler(&stubAuthenticator{result: &upstream.AuthResult{Token: raw}}, tokens)

	rec := doRequest(h, http.MethodPost, "/login", `{"username":"u","password":"p"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	_, err = tokens.Get(context.Background(), "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "forbidden token must not be persisted")
	// Login failures never park a guard reason.
	_, err = tokens.TakeLogoutReason(context.Background(), "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogin_ValidationFailure(t *testing.T) {
	h := newHandler(&stubAuthenticator{}, store.NewMemoryStore())

	rec := doRequest(h, http.MethodPost, "/login", `{"username":"u"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLogin_RejectsUnknownFields(t *testing.T) {
	h := newHandler(&stubAuthenticator{}, store.NewMemoryStore())

	rec := doRequest(h, http.MethodPost, "/login", `{"username":"u","password":"p","extra":1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RequiresJSONContentType(t *testing.T) {
	h := newHandler(&stubAuthenticator{}, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=u"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(browserctx.WithID(req.Context(), "ctx-1"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestLoginState_ConsumesReasonOnce(t *testing.T) {
	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.SetLogoutReason(context.Background(), "ctx-1", store.ReasonSessionExpired))
	h := newHandler(&stubAuthenticator{}, tokens)

	rec := doRequest(h, http.MethodGet, "/login/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[loginStateResponse](t, rec, "data")
	assert.Equal(t, "session_expired", state.Reason)
	assert.False(t, state.Authenticated)

	rec = doRequest(h, http.MethodGet, "/login/state", "")
	state = decodeBody[loginStateResponse](t, rec, "data")
	assert.Empty(t, state.Reason, "reason must be consumed by the first read")
}

func TestLoginState_ExistingSessionSkipsForm(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": 9, "role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.Set(context.Background(), "ctx-1", raw))
	h := newHandler(&stubAuthenticator{}, tokens)

	rec := doRequest(h, http.MethodGet, "/login/state", "")
	state := decodeBody[loginStateResponse](t, rec, "data")
	assert.True(t, state.Authenticated, "pre-check ignores role")
	assert.Equal(t, "/dashboard", state.Redirect)
}

func TestLogout_RedirectsAndClears(t *testing.T) {
	tokens := store.NewMemoryStore()
	require.NoError(t, tokens.Set(context.Background(), "ctx-1", "tok"))
	h := newHandler(&stubAuthenticator{}, tokens)

	rec := doRequest(h, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	_, err := tokens.Get(context.Background(), "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Logging out twice is fine.
	rec = doRequest(h, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
