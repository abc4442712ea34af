package service

import "github.com/openlearn/lms-api/internal/models"

// Permissions is the capability view of a caller's claims. Super admins
// bypass role and ownership checks everywhere.
type Permissions struct {
	UserID       string
	Role         models.UserRole
	IsSuperAdmin bool
}

// ResolvePermissions builds a Permissions capability from JWT claims.
func ResolvePermissions(claims *models.JWTClaims) Permissions {
	if claims == nil {
		return Permissions{}
	}
	return Permissions{
		UserID:       claims.UserID,
		Role:         claims.Role,
		IsSuperAdmin: claims.IsSuperAdmin,
	}
}

// HasRole reports whether the caller holds any of the given roles.
func (p Permissions) HasRole(roles ...models.UserRole) bool {
	if p.IsSuperAdmin {
		return true
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// Owns reports whether the caller owns the resource or can override
// ownership (admin or super admin).
func (p Permissions) Owns(resourceOwnerID string) bool {
	if p.IsSuperAdmin || p.Role == models.RoleAdmin {
		return true
	}
	return p.UserID != "" && p.UserID == resourceOwnerID
}

// Authenticated reports whether the caller presented valid claims.
func (p Permissions) Authenticated() bool {
	return p.UserID != ""
}
