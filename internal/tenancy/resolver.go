package tenancy

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/redis"
)

var reservedSubdomains = map[string]struct{}{
	"www": {},
	"api": {},
	"app": {},
}

// Origin carries the request attributes a tenant can be resolved from.
type Origin struct {
	// ExplicitTenantID is only populated for service principals.
	ExplicitTenantID  string
	Host              string
	PrincipalTenantID *uuid.UUID
}

type tenantLookup interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	FindActiveByVerifiedDomain(ctx context.Context, host string) (*models.Tenant, error)
}

type hostCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	TenantHostKey(host string) string
}

// ResolverParams configure a Resolver.
type ResolverParams struct {
	Store      tenantLookup
	Cache      hostCache
	BaseDomain string
	CacheTTL   time.Duration
	Logger     *logger.Logger
}

// Resolver determines the single owning tenant of a request.
type Resolver struct {
	store      tenantLookup
	cache      hostCache
	baseDomain string
	cacheTTL   time.Duration
	logg       *logger.Logger
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Store == nil {
		return nil, errors.New("tenant store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Resolver{
		store:      params.Store,
		cache:      params.Cache,
		baseDomain: normalizeHost(params.BaseDomain),
		cacheTTL:   params.CacheTTL,
		logg:       params.Logger,
	}, nil
}

// Resolve applies, in order: explicit tenant id, verified custom domain, subdomain
// slug under the base domain, then the principal's tenant. It fails closed.
func (r *Resolver) Resolve(ctx context.Context, origin Origin) (models.Tenant, error) {
	if raw := strings.TrimSpace(origin.ExplicitTenantID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return models.Tenant{}, pkgerrors.New(pkgerrors.CodeTenantNotResolved, "explicit tenant id is malformed")
		}
		tenant, err := r.store.FindActiveByID(ctx, id)
		if err != nil {
			return models.Tenant{}, r.lookupErr(err, "explicit tenant not found")
		}
		return *tenant, nil
	}

	if host := normalizeHost(origin.Host); host != "" {
		tenant, err := r.resolveHost(ctx, host)
		if err != nil {
			return models.Tenant{}, err
		}
		if tenant != nil {
			return *tenant, nil
		}
	}

	if origin.PrincipalTenantID != nil && *origin.PrincipalTenantID != uuid.Nil {
		tenant, err := r.store.FindActiveByID(ctx, *origin.PrincipalTenantID)
		if err != nil {
			return models.Tenant{}, r.lookupErr(err, "principal tenant not found")
		}
		return *tenant, nil
	}

	return models.Tenant{}, pkgerrors.New(pkgerrors.CodeTenantNotResolved, "no tenant matches request")
}

// resolveHost returns nil, nil when the host maps to no tenant so resolution can fall through.
func (r *Resolver) resolveHost(ctx context.Context, host string) (*models.Tenant, error) {
	if tenant := r.fromCache(ctx, host); tenant != nil {
		return tenant, nil
	}

	tenant, err := r.store.FindActiveByVerifiedDomain(ctx, host)
	switch {
	case err == nil:
		r.remember(ctx, host, tenant.ID)
		return tenant, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant domain")
	}

	slug := r.subdomainSlug(host)
	if slug == "" {
		return nil, nil
	}
	tenant, err = r.store.FindActiveBySlug(ctx, slug)
	switch {
	case err == nil:
		r.remember(ctx, host, tenant.ID)
		return tenant, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant slug")
	}
}

func (r *Resolver) fromCache(ctx context.Context, host string) *models.Tenant {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, r.cache.TenantHostKey(host))
	if err != nil {
		if !redis.IsNil(err) {
			r.logg.Warn(r.logg.WithField(ctx, "host", host), "tenant host cache read failed")
		}
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	// the cached id is re-read so deactivated tenants stop resolving immediately
	tenant, err := r.store.FindActiveByID(ctx, id)
	if err != nil {
		return nil
	}
	return tenant
}

func (r *Resolver) remember(ctx context.Context, host string, tenantID uuid.UUID) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	if err := r.cache.Set(ctx, r.cache.TenantHostKey(host), tenantID.String(), r.cacheTTL); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "host", host), "tenant host cache write failed")
	}
}

// Forget evicts a cached host mapping.
func (r *Resolver) Forget(ctx context.Context, host string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, r.cache.TenantHostKey(normalizeHost(host))); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "host", host), "tenant host cache evict failed")
	}
}

func (r *Resolver) subdomainSlug(host string) string {
	if r.baseDomain == "" {
		return ""
	}
	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	prefix := strings.TrimSuffix(host, suffix)
	label := prefix
	if idx := strings.Index(prefix, "."); idx >= 0 {
		label = prefix[:idx]
	}
	if _, reserved := reservedSubdomains[label]; reserved {
		return ""
	}
	return label
}

func (r *Resolver) lookupErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeTenantNotResolved, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}
