// Package principal is the identity and scope model: the closed set of roles
// a credential can carry, the capability scopes grantable to tenant users,
// and the capability checks every authorized operation goes through.
package principal

import (
	"fmt"

	"github.com/tamilselvan8428/person-tracking/internal/apperr"
)

// Role identifies the principal variant. The set is closed: platform admins
// are tenant-less and may act on any tenant, tenant admins hold every
// capability inside their own tenant, tenant users hold only their granted
// scopes inside their own tenant.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleTenantUser    Role = "tenant_user"
)

// ParseRole validates a role tag coming off the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePlatformAdmin, RoleTenantAdmin, RoleTenantUser:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", apperr.ErrUnauthorized, s)
}

// Scope is a named capability grantable to a tenant user.
type Scope string

const (
	// ScopeTracking allows reading current locations.
	ScopeTracking Scope = "tracking"
	// ScopeConfig allows registering and listing devices.
	ScopeConfig Scope = "config"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeTracking, ScopeConfig:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", apperr.ErrInvalidPayload, s)
}

// ParseScopes validates a scope list, rejecting empty lists and unknown names.
func ParseScopes(names []string) ([]Scope, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: missing scopes", apperr.ErrInvalidPayload)
	}
	scopes := make([]Scope, 0, len(names))
	for _, name := range names {
		scope, err := ParseScope(name)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

// Strings returns the scope names for serialization into a session token.
func Strings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

// Principal is an authenticated caller. TenantID is nil exactly for platform
// admins; Scopes is populated only for tenant users.
type Principal struct {
	UserID   uint
	Email    string
	Role     Role
	TenantID *uint
	Scopes   []Scope
}

// HasRole reports whether the principal's role is in the required set.
func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Allows reports whether the principal may exercise the given scope.
// Admin-tier roles pass unconditionally; tenant users need the grant.
func (p *Principal) Allows(scope Scope) bool {
	switch p.Role {
	case RolePlatformAdmin, RoleTenantAdmin:
		return true
	case RoleTenantUser:
		for _, s := range p.Scopes {
			if s == scope {
				return true
			}
		}
	}
	return false
}

// ResolveTenant pins the operation to a tenant. Platform admins must name the
// tenant they act on; every other role is bound to its own tenant and any
// requested override is ignored.
func (p *Principal) ResolveTenant(requested *uint) (uint, error) {
	if p.Role == RolePlatformAdmin {
		if requested == nil {
			return 0, fmt.Errorf("%w: tenant_id is required for platform admins", apperr.ErrInvalidPayload)
		}
		return *requested, nil
	}
	if p.TenantID == nil {
		return 0, fmt.Errorf("%w: principal has no tenant", apperr.ErrForbidden)
	}
	return *p.TenantID, nil
}
