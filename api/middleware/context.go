package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// Principal is the authenticated caller. TenantID is the tenant the token was
// issued for and may be nil for service principals.
type Principal struct {
	ActorID  uuid.UUID
	Role     enums.ActorRole
	TenantID *uuid.UUID
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	if !ok || p.ActorID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}

// ActorIDFromContext returns the caller's id, or nil when unauthenticated.
func ActorIDFromContext(ctx context.Context) *uuid.UUID {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	id := p.ActorID
	return &id
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}
