package token

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

var parser = jwt.NewParser()

// Decode structurally decodes a session token into normalized Claims.
// The signature is the backend's concern and is not verified here; a
// token that does not decode, or that lacks a subject or expiry claim,
// fails with ErrInvalidToken. Expiry itself is NOT checked here.
func Decode(raw string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, ok := subjectOf(mc)
	if !ok {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing or malformed exp", ErrInvalidToken)
	}

	isAdmin, _ := mc["is_admin"].(bool)

	c := &Claims{
		SubjectID: sub,
		Role:      roleOf(mc, isAdmin),
		IsAdmin:   isAdmin,
		ExpiresAt: exp.Time,
	}
	if u, ok := mc["username"].(string); ok {
		c.Username = u
	}
	return c, nil
}

// subjectOf accepts the backend's two historical shapes: a string or
// numeric "id" claim, falling back to the registered "sub" claim.
func subjectOf(mc jwt.MapClaims) (string, bool) {
	for _, key := range []string{"id", "sub"} {
		switch v := mc[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatInt(int64(v), 10), true
		case int64:
			return strconv.FormatInt(v, 10), true
		}
	}
	return "", false
}

func roleOf(mc jwt.MapClaims, isAdmin bool) Role {
	if r, ok := mc["role"].(string); ok && r != "" {
		return Role(r)
	}
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}
