package tenancy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

var nowFunc = func() time.Time { return time.Now().UTC() }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type hostForgetter interface {
	Forget(ctx context.Context, host string)
}

// CreateTenantInput carries the fields for a new tenant.
type CreateTenantInput struct {
	Name     string
	Slug     string
	Currency string
	Timezone string
}

// AddDomainInput attaches a custom host to a tenant.
type AddDomainInput struct {
	Domain    string
	IsPrimary bool
}

// Service administers the tenant registry.
type Service struct {
	store    *Store
	tx       txRunner
	resolver hostForgetter
	logg     *logger.Logger
}

func NewService(store *Store, tx txRunner, resolver hostForgetter, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("tenant store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{store: store, tx: tx, resolver: resolver, logg: logg}, nil
}

func (s *Service) CreateTenant(ctx context.Context, input CreateTenantInput) (*models.Tenant, error) {
	name := strings.TrimSpace(input.Name)
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must match ^[a-z0-9-]+$")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	timezone := strings.TrimSpace(input.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}

	tenant := &models.Tenant{
		Name:     name,
		Slug:     slug,
		IsActive: true,
		Currency: currency,
		Timezone: timezone,
	}
	if err := s.store.CreateTenant(ctx, tenant); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_tenants_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"tenant_id": tenant.ID.String(), "slug": slug}), "tenant created")
	return tenant, nil
}

func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	return tenant, nil
}

// AddDomain attaches a host to the tenant. A primary domain replaces the previous
// primary inside the same transaction.
func (s *Service) AddDomain(ctx context.Context, tenantID uuid.UUID, input AddDomainInput) (*models.TenantDomain, error) {
	host := normalizeHost(input.Domain)
	if host == "" || !strings.Contains(host, ".") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain must be a fully qualified host")
	}

	var created *models.TenantDomain
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		if _, err := store.FindByID(ctx, tenantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
		}
		if input.IsPrimary {
			if err := store.ClearPrimary(ctx, tenantID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear primary domain")
			}
		}
		domain := &models.TenantDomain{
			TenantID:  tenantID,
			Domain:    host,
			IsPrimary: input.IsPrimary,
		}
		if err := store.CreateDomain(ctx, domain); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_tenant_domains_domain") {
				return pkgerrors.New(pkgerrors.CodeConflict, "domain already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create domain")
		}
		created = domain
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// VerifyDomain marks the domain verified so it takes part in resolution.
func (s *Service) VerifyDomain(ctx context.Context, tenantID, domainID uuid.UUID) (*models.TenantDomain, error) {
	domain, err := s.store.FindDomain(ctx, tenantID, domainID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "domain not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load domain")
	}
	if _, err := s.store.MarkVerified(ctx, tenantID, domainID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify domain")
	}
	domain.IsVerified = true
	if s.resolver != nil {
		s.resolver.Forget(ctx, domain.Domain)
	}
	return domain, nil
}

// SetPrimaryDomain flips the primary flag to domainID in a single write.
func (s *Service) SetPrimaryDomain(ctx context.Context, tenantID, domainID uuid.UUID) error {
	if _, err := s.store.FindDomain(ctx, tenantID, domainID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "domain not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load domain")
	}
	if _, err := s.store.MarkPrimary(ctx, tenantID, domainID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set primary domain")
	}
	return nil
}

// Deactivate stops the tenant from resolving.
func (s *Service) Deactivate(ctx context.Context, tenantID uuid.UUID) error {
	rows, err := s.store.SetActive(ctx, tenantID, false)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate tenant")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	s.logg.Warn(s.logg.WithField(ctx, "tenant_id", tenantID.String()), "tenant deactivated")
	return nil
}
