package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

var (
	ErrMissingActor  = errors.New("token has no actor")
	ErrInvalidRole   = errors.New("token role is not recognised")
	ErrMissingTenant = errors.New("token has no tenant for a tenant-scoped role")
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID  uuid.UUID
	TenantID *uuid.UUID
	Role     enums.ActorRole
	JTI      string
}

// AccessTokenClaims is the JWT body. TenantID is the tenant the principal
// belongs to. Service and admin principals may omit it; only service principals
// may act on another tenant.
type AccessTokenClaims struct {
	ActorID  uuid.UUID       `json:"actor_id"`
	TenantID *uuid.UUID      `json:"tenant_id,omitempty"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing, and before
// signing when minting.
func (c AccessTokenClaims) Validate() error {
	if c.ActorID == uuid.Nil {
		return ErrMissingActor
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, c.Role)
	}
	if !c.Role.TenantOptional() && (c.TenantID == nil || *c.TenantID == uuid.Nil) {
		return fmt.Errorf("%w: role %q", ErrMissingTenant, c.Role)
	}
	return nil
}

// CrossTenant reports whether the principal may name a tenant other than its own.
func (c AccessTokenClaims) CrossTenant() bool {
	return c.Role.CrossTenant()
}
