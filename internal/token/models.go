package token

import "time"

type Role string

const (
	RoleMasterAdmin Role = "m_admin"
	RoleAdmin       Role = "admin"
	RoleUser        Role = "user"
)

// Claims is the normalized view of a decoded session token. The role
// fallback (absent role -> admin/user depending on is_admin) is applied
// exactly once, in Decode; callers never re-derive it.
type Claims struct {
	SubjectID string
	Username  string
	Role      Role
	IsAdmin   bool
	ExpiresAt time.Time
}

// Expired reports whether the claims are past their expiry at the given
// instant. A token whose expires_at equals now is already expired.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// AllowList is the set of roles a guarded route accepts. An empty list
// accepts any authenticated session.
type AllowList []Role

// Permits reports whether the claims satisfy the allow-list. Listing
// RoleAdmin also admits RoleMasterAdmin and the legacy is_admin flag.
func (a AllowList) Permits(c *Claims) bool {
	if len(a) == 0 {
		return true
	}
	admin := false
	for _, r := range a {
		if r == c.Role {
			return true
		}
		if r == RoleAdmin {
			admin = true
		}
	}
	if admin && (c.Role == RoleMasterAdmin || c.IsAdmin) {
		return true
	}
	return false
}
