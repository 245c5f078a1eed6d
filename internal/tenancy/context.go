package tenancy

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

type ctxKey struct{}

// WithTenant binds the resolved tenant to ctx. The binding ends with the request context.
func WithTenant(ctx context.Context, tenant models.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenant)
}

// FromContext returns the tenant bound to ctx, if any.
func FromContext(ctx context.Context) (models.Tenant, bool) {
	if ctx == nil {
		return models.Tenant{}, false
	}
	tenant, ok := ctx.Value(ctxKey{}).(models.Tenant)
	if !ok || tenant.ID == uuid.Nil {
		return models.Tenant{}, false
	}
	return tenant, true
}

// Require returns the bound tenant or TENANT_NOT_RESOLVED.
func Require(ctx context.Context) (models.Tenant, error) {
	tenant, ok := FromContext(ctx)
	if !ok {
		return models.Tenant{}, pkgerrors.New(pkgerrors.CodeTenantNotResolved, "no tenant bound to request")
	}
	return tenant, nil
}
