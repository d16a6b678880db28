package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sofrago/admin-gateway/internal/store"
	"github.com/sofrago/admin-gateway/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mint(t *testing.T, role string, expiresAt time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   7,
		"role": role,
		"exp":  expiresAt.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newEvaluator(tokens store.TokenStore, now time.Time) *Evaluator {
	e := NewEvaluator(tokens, zap.NewNop())
	e.now = func() time.Time { return now }
	return e
}

func TestEvaluate_AbsentToken(t *testing.T) {
	tokens := store.NewMemoryStore()
	e := newEvaluator(tokens, time.Now())

	v := e.Evaluate(context.Background(), "ctx-1", token.AllowList{})

	assert.False(t, v.Authenticated())
	assert.Equal(t, store.ReasonNoToken, v.Reason)
	// No reason is parked for a missing token.
	_, err := tokens.TakeLogoutReason(context.Background(), "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEvaluate_MalformedToken(t *testing.T) {
	tokens := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, tokens.Set(ctx, "ctx-1", "not-a-token"))
	e := newEvaluator(tokens, time.Now())

	v := e.Evaluate(ctx, "ctx-1", token.AllowList{})

	assert.False(t, v.Authenticated())
	assert.Equal(t, store.ReasonInvalidToken, v.Reason)

	_, err := tokens.Get(ctx, "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "slot must be cleared")

	reason, err := tokens.TakeLogoutReason(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, store.ReasonInvalidToken, reason)
}

func TestEvaluate_ExpiredToken(t *testing.T) {
	tokens := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, tokens.Set(ctx, "ctx-1", mint(t, "admin", now.Add(-time.Hour))))
	e := newEvaluator(tokens, now)

	v := e.Evaluate(ctx, "ctx-1", token.AllowList{})

	assert.Equal(t, store.ReasonSessionExpired, v.Reason)
	_, err := tokens.Get(ctx, "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "slot must be cleared")

	reason, err := tokens.TakeLogoutReason(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, store.ReasonSessionExpired, reason)
}

func TestEvaluate_ExpiryPrecedesRoleCheck(t *testing.T) {
	// An expired token held by the wrong role must report expiry, not
	// an authorization problem.
	tokens := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, tokens.Set(ctx, "ctx-1", mint(t, "user", now.Add(-time.Minute))))
	e := newEvaluator(tokens, now)

	v := e.Evaluate(ctx, "ctx-1", token.AllowList{token.RoleMasterAdmin})

	assert.Equal(t, store.ReasonSessionExpired, v.Reason)
}

func TestEvaluate_RoleRejectionKeepsToken(t *testing.T) {
	tokens := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	raw := mint(t, "admin", now.Add(time.Hour))
	require.NoError(t, tokens.Set(ctx, "ctx-1", raw))
	e := newEvaluator(tokens, now)

	v := e.Evaluate(ctx, "ctx-1", token.AllowList{token.RoleMasterAdmin})

	assert.Equal(t, store.ReasonUnauthorizedRole, v.Reason)

	// The session may still be valid for less-restricted routes.
	got, err := tokens.Get(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	reason, err := tokens.TakeLogoutReason(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, store.ReasonUnauthorizedRole, reason)
}

func TestEvaluate_Authenticated(t *testing.T) {
	tokens := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, tokens.Set(ctx, "ctx-1", mint(t, "admin", now.Add(time.Hour))))
	e := newEvaluator(tokens, now)

	v := e.Evaluate(ctx, "ctx-1", token.AllowList{token.RoleMasterAdmin, token.RoleAdmin})

	require.True(t, v.Authenticated())
	assert.Equal(t, token.RoleAdmin, v.Claims.Role)
	assert.Equal(t, "7", v.Claims.SubjectID)

	// Success leaves no reason behind.
	_, err := tokens.TakeLogoutReason(ctx, "ctx-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEvaluate_FreshVerdictPerCall(t *testing.T) {
	tokens := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, tokens.Set(ctx, "ctx-1", mint(t, "admin", now.Add(time.Hour))))
	e := newEvaluator(tokens, now)

	require.True(t, e.Evaluate(ctx, "ctx-1", token.AllowList{}).Authenticated())

	// A logout between evaluations must be seen immediately.
	require.NoError(t, tokens.Clear(ctx, "ctx-1"))
	v := e.Evaluate(ctx, "ctx-1", token.AllowList{})
	assert.Equal(t, store.ReasonNoToken, v.Reason)
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("valid session", func(t *testing.T) {
		tokens := store.NewMemoryStore()
		require.NoError(t, tokens.Set(ctx, "ctx-1", mint(t, "user", now.Add(time.Hour))))
		e := newEvaluator(tokens, now)

		claims, ok := e.Probe(ctx, "ctx-1")
		require.True(t, ok, "probe applies no role gate")
		assert.Equal(t, token.RoleUser, claims.Role)
	})

	t.Run("expired session cleared quietly", func(t *testing.T) {
		tokens := store.NewMemoryStore()
		require.NoError(t, tokens.Set(ctx, "ctx-1", mint(t, "admin", now.Add(-time.Hour))))
		e := newEvaluator(tokens, now)

		_, ok := e.Probe(ctx, "ctx-1")
		assert.False(t, ok)

		_, err := tokens.Get(ctx, "ctx-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tokens.TakeLogoutReason(ctx, "ctx-1")
		assert.ErrorIs(t, err, store.ErrNotFound, "probe must not park a reason")
	})

	t.Run("absent session", func(t *testing.T) {
		e := newEvaluator(store.NewMemoryStore(), now)
		_, ok := e.Probe(ctx, "ctx-1")
		assert.False(t, ok)
	})
}
