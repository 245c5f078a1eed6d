package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/internal/tenancy"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

// TenantHeader lets service principals address a tenant explicitly.
const TenantHeader = "X-Tenant-ID"

// TenantResolver maps a request origin onto an active tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, origin tenancy.Origin) (models.Tenant, error)
}

// Tenant resolves the owning tenant of the request and binds it to the context.
// A non-service principal may only act inside the tenant its token names, so one
// without a tenant is refused before resolution.
func Tenant(resolver TenantResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())
			if !p.Role.CrossTenant() && (p.TenantID == nil || *p.TenantID == uuid.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeTenantNotResolved, "principal has no tenant"))
				return
			}
			origin := tenancy.Origin{Host: r.Host, PrincipalTenantID: p.TenantID}
			if p.Role.CrossTenant() {
				origin.ExplicitTenantID = r.Header.Get(TenantHeader)
			}

			tenant, err := resolver.Resolve(r.Context(), origin)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !p.Role.CrossTenant() && *p.TenantID != tenant.ID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "principal does not belong to tenant"))
				return
			}

			ctx := tenancy.WithTenant(r.Context(), tenant)
			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenant.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
