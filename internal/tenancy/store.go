package tenancy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
)

// Store reads and writes the tenant registry. Tenants are global rows, so these
// queries are intentionally not tenant-scoped.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{db: tx}
}

func (s *Store) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) FindActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindActiveByVerifiedDomain matches the exact host against verified custom domains.
func (s *Store) FindActiveByVerifiedDomain(ctx context.Context, host string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Joins("JOIN tenant_domains ON tenant_domains.tenant_id = tenants.id").
		Where("tenant_domains.domain = ? AND tenant_domains.is_verified = ? AND tenants.is_active = ?", host, true, true).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Preload("Domains").First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	return s.db.WithContext(ctx).Create(tenant).Error
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("is_active", active)
	return res.RowsAffected, res.Error
}

func (s *Store) CreateDomain(ctx context.Context, domain *models.TenantDomain) error {
	return s.db.WithContext(ctx).Create(domain).Error
}

func (s *Store) FindDomain(ctx context.Context, tenantID, domainID uuid.UUID) (*models.TenantDomain, error) {
	var domain models.TenantDomain
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", domainID, tenantID).
		First(&domain).Error
	if err != nil {
		return nil, err
	}
	return &domain, nil
}

// ClearPrimary unsets the primary flag on every domain of the tenant.
func (s *Store) ClearPrimary(ctx context.Context, tenantID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.TenantDomain{}).
		Where("tenant_id = ? AND is_primary = ?", tenantID, true).
		Update("is_primary", false).Error
}

// MarkPrimary flags domainID as primary and clears the rest in a single statement.
func (s *Store) MarkPrimary(ctx context.Context, tenantID, domainID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		"UPDATE tenant_domains SET is_primary = (id = ?), updated_at = ? WHERE tenant_id = ? AND (is_primary OR id = ?)",
		domainID, nowFunc(), tenantID, domainID,
	)
	return res.RowsAffected, res.Error
}

func (s *Store) MarkVerified(ctx context.Context, tenantID, domainID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.TenantDomain{}).
		Where("id = ? AND tenant_id = ?", domainID, tenantID).
		Update("is_verified", true)
	return res.RowsAffected, res.Error
}
