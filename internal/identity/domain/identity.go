package domain

import "time"

// Principal is the authenticated caller behind an access token.
type Principal struct {
	AccountID string
	Name      string
	Email     string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the principal carries the Admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// RoleAdmin mirrors the account Admin role as carried in the role claim.
const RoleAdmin = "Admin"
