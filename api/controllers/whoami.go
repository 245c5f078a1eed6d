package controllers

import (
	"net/http"

	"github.com/angelmondragon/stockledger-backend/api/middleware"
	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/internal/tenancy"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type whoamiResponse struct {
	ActorID     string  `json:"actor_id"`
	Role        string  `json:"role"`
	CrossTenant bool    `json:"cross_tenant"`
	TokenTenant *string `json:"token_tenant_id,omitempty"`
	TenantID    string  `json:"tenant_id,omitempty"`
	TenantSlug  string  `json:"tenant_slug,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// Whoami reports the authenticated principal and, on tenant routes, the tenant
// the request resolved to. Useful for checking host and header routing.
func Whoami(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}
		resp := whoamiResponse{
			ActorID:     principal.ActorID.String(),
			Role:        principal.Role.String(),
			CrossTenant: principal.Role.CrossTenant(),
		}
		if principal.TenantID != nil {
			id := principal.TenantID.String()
			resp.TokenTenant = &id
		}
		if tenant, ok := tenancy.FromContext(r.Context()); ok {
			resp.TenantID = tenant.ID.String()
			resp.TenantSlug = tenant.Slug
			resp.Currency = tenant.Currency
		}
		responses.WriteSuccess(w, resp)
	}
}
