package enums

import "fmt"

// ActorRole is the role claim carried on access tokens.
type ActorRole string

const (
	ActorRoleAdmin   ActorRole = "admin"
	ActorRoleManager ActorRole = "manager"
	ActorRoleStaff   ActorRole = "staff"
	ActorRoleService ActorRole = "service"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleManager,
	ActorRoleStaff,
	ActorRoleService,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CrossTenant reports whether the role may address tenants other than the one
// on its token. Only service principals can.
func (r ActorRole) CrossTenant() bool {
	return r == ActorRoleService
}

// TenantOptional reports whether a token with this role may omit its tenant.
// Platform admins manage tenants without belonging to one.
func (r ActorRole) TenantOptional() bool {
	return r == ActorRoleService || r == ActorRoleAdmin
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
