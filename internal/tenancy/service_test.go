package tenancy

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type recordingForgetter struct {
	hosts []string
}

func (r *recordingForgetter) Forget(ctx context.Context, host string) {
	r.hosts = append(r.hosts, host)
}

func newTestService(t *testing.T) (*Service, *Store, *recordingForgetter) {
	t.Helper()
	conn := dbtest.SQLite(t)
	store := NewStore(conn)
	forgetter := &recordingForgetter{}
	svc, err := NewService(store, dbpkg.FromGorm(conn), forgetter, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, store, forgetter
}

func TestCreateTenantValidatesSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTenant(ctx, CreateTenantInput{Name: "Acme", Slug: "Acme Corp!"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	tenant, err := svc.CreateTenant(ctx, CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "USD", tenant.Currency)
	assert.True(t, tenant.IsActive)

	_, err = svc.CreateTenant(ctx, CreateTenantInput{Name: "Other", Slug: "acme"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestAddDomainKeepsSinglePrimary(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	first, err := svc.AddDomain(ctx, tenant.ID, AddDomainInput{Domain: "shop.acme.com", IsPrimary: true})
	require.NoError(t, err)
	second, err := svc.AddDomain(ctx, tenant.ID, AddDomainInput{Domain: "Store.Acme.com", IsPrimary: true})
	require.NoError(t, err)
	assert.Equal(t, "store.acme.com", second.Domain)

	var primaries []models.TenantDomain
	require.NoError(t, store.db.Where("tenant_id = ? AND is_primary = ?", tenant.ID, true).Find(&primaries).Error)
	require.Len(t, primaries, 1)
	assert.Equal(t, second.ID, primaries[0].ID)

	require.NoError(t, svc.SetPrimaryDomain(ctx, tenant.ID, first.ID))
	primaries = nil
	require.NoError(t, store.db.Where("tenant_id = ? AND is_primary = ?", tenant.ID, true).Find(&primaries).Error)
	require.Len(t, primaries, 1)
	assert.Equal(t, first.ID, primaries[0].ID)

	_, err = svc.AddDomain(ctx, tenant.ID, AddDomainInput{Domain: "shop.acme.com"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestVerifiedDomainResolvesThroughStore(t *testing.T) {
	svc, store, forgetter := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, CreateTenantInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	domain, err := svc.AddDomain(ctx, tenant.ID, AddDomainInput{Domain: "shop.acme.com"})
	require.NoError(t, err)

	_, err = store.FindActiveByVerifiedDomain(ctx, "shop.acme.com")
	require.Error(t, err, "unverified domains must not resolve")

	_, err = svc.VerifyDomain(ctx, tenant.ID, domain.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.acme.com"}, forgetter.hosts)

	found, err := store.FindActiveByVerifiedDomain(ctx, "shop.acme.com")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, found.ID)

	require.NoError(t, svc.Deactivate(ctx, tenant.ID))
	_, err = store.FindActiveByVerifiedDomain(ctx, "shop.acme.com")
	require.Error(t, err, "inactive tenants must not resolve")
}
