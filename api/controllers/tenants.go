package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	"github.com/angelmondragon/stockledger-backend/internal/tenancy"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type TenantAdmin interface {
	CreateTenant(ctx context.Context, input tenancy.CreateTenantInput) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	AddDomain(ctx context.Context, tenantID uuid.UUID, input tenancy.AddDomainInput) (*models.TenantDomain, error)
	VerifyDomain(ctx context.Context, tenantID, domainID uuid.UUID) (*models.TenantDomain, error)
	SetPrimaryDomain(ctx context.Context, tenantID, domainID uuid.UUID) error
	Deactivate(ctx context.Context, tenantID uuid.UUID) error
}

type tenantResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	IsActive  bool             `json:"is_active"`
	Currency  string           `json:"currency"`
	Timezone  string           `json:"timezone"`
	Domains   []domainResponse `json:"domains,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type domainResponse struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Domain     string    `json:"domain"`
	IsPrimary  bool      `json:"is_primary"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func newTenantResponse(t *models.Tenant) tenantResponse {
	out := tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		IsActive:  t.IsActive,
		Currency:  t.Currency,
		Timezone:  t.Timezone,
		CreatedAt: t.CreatedAt,
	}
	for i := range t.Domains {
		out.Domains = append(out.Domains, newDomainResponse(&t.Domains[i]))
	}
	return out
}

func newDomainResponse(d *models.TenantDomain) domainResponse {
	return domainResponse{
		ID:         d.ID,
		TenantID:   d.TenantID,
		Domain:     d.Domain,
		IsPrimary:  d.IsPrimary,
		IsVerified: d.IsVerified,
		CreatedAt:  d.CreatedAt,
	}
}

type createTenantRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Slug     string `json:"slug" validate:"required,max=63"`
	Currency string `json:"currency" validate:"omitempty,currency"`
	Timezone string `json:"timezone" validate:"omitempty,max=64"`
}

type addDomainRequest struct {
	Domain    string `json:"domain" validate:"required,hostname"`
	IsPrimary bool   `json:"is_primary"`
}

// AdminCreateTenant registers a tenant. Slug doubles as its subdomain.
func AdminCreateTenant(svc TenantAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createTenantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenant, err := svc.CreateTenant(r.Context(), tenancy.CreateTenantInput{
			Name:     strings.TrimSpace(payload.Name),
			Slug:     strings.ToLower(strings.TrimSpace(payload.Slug)),
			Currency: strings.ToUpper(strings.TrimSpace(payload.Currency)),
			Timezone: strings.TrimSpace(payload.Timezone),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newTenantResponse(tenant))
	}
}

func AdminGetTenant(svc TenantAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenant, err := svc.GetTenant(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTenantResponse(tenant))
	}
}

func AdminDeactivateTenant(svc TenantAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "is_active": false})
	}
}

func AdminAddDomain(svc TenantAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseURLUUID(r, "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addDomainRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		domain, err := svc.AddDomain(r.Context(), tenantID, tenancy.AddDomainInput{
			Domain:    strings.ToLower(strings.TrimSpace(payload.Domain)),
			IsPrimary: payload.IsPrimary,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newDomainResponse(domain))
	}
}

func AdminVerifyDomain(svc TenantAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, domainID, err := parseDomainPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		domain, err := svc.VerifyDomain(r.Context(), tenantID, domainID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDomainResponse(domain))
	}
}

func AdminSetPrimaryDomain(svc TenantAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, domainID, err := parseDomainPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetPrimaryDomain(r.Context(), tenantID, domainID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tenant_id": tenantID, "domain_id": domainID, "is_primary": true})
	}
}

func parseDomainPath(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := validators.ParseURLUUID(r, "tenantID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	domainID, err := validators.ParseURLUUID(r, "domainID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, domainID, nil
}
