package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/internal/tenancy"
	"github.com/angelmondragon/stockledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

func TestScopeFromContextRequiresTenant(t *testing.T) {
	db := dbtest.SQLite(t)

	_, err := ScopeFromContext(context.Background(), db)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeTenantNotResolved))

	tenant := dbtest.SeedTenant(t, db, "acme")
	scope, err := ScopeFromContext(tenancy.WithTenant(context.Background(), tenant), db)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, scope.TenantID())
}

func TestZeroScopeFailsClosed(t *testing.T) {
	var scope Scope
	_, err := scope.DB(context.Background())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeTenantNotResolved))

	_, err = For[models.Warehouse](scope).Find(context.Background())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeTenantNotResolved))
}

func TestRepositoryIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SQLite(t)
	a := dbtest.SeedTenant(t, db, "alpha")
	b := dbtest.SeedTenant(t, db, "beta")

	whA := dbtest.SeedWarehouse(t, db, a.ID, "MAIN", true)
	dbtest.SeedWarehouse(t, db, b.ID, "MAIN", true)
	dbtest.SeedWarehouse(t, db, b.ID, "OVERFLOW", false)

	repoA := For[models.Warehouse](NewScope(db, a.ID))
	repoB := For[models.Warehouse](NewScope(db, b.ID))

	rows, err := repoA.Find(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, whA.ID, rows[0].ID)

	count, err := repoB.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = repoB.Get(ctx, whA.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	affected, err := repoB.Update(ctx, whA.ID, map[string]any{"name": "stolen"})
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = repoB.Delete(ctx, whA.ID)
	require.NoError(t, err)
	assert.Zero(t, affected)

	got, err := repoA.Get(ctx, whA.ID)
	require.NoError(t, err)
	assert.Equal(t, "MAIN", got.Name)
}

func TestRepositoryCreateStampsTenant(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SQLite(t)
	a := dbtest.SeedTenant(t, db, "alpha")
	b := dbtest.SeedTenant(t, db, "beta")

	repoA := For[models.Warehouse](NewScope(db, a.ID))

	wh := &models.Warehouse{Code: "NEW", Name: "New", IsActive: true}
	require.NoError(t, repoA.Create(ctx, wh))
	assert.Equal(t, a.ID, wh.TenantID)
	assert.NotEqual(t, uuid.Nil, wh.ID)

	foreign := &models.Warehouse{TenantID: b.ID, Code: "X", Name: "X", IsActive: true}
	err := repoA.Create(ctx, foreign)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))
}

func TestRepositoryRejectsTenantRewrite(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SQLite(t)
	a := dbtest.SeedTenant(t, db, "alpha")
	b := dbtest.SeedTenant(t, db, "beta")
	wh := dbtest.SeedWarehouse(t, db, a.ID, "MAIN", true)

	_, err := For[models.Warehouse](NewScope(db, a.ID)).Update(ctx, wh.ID, map[string]any{"tenant_id": b.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))
}

func TestRepositoryFiltersAndTx(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SQLite(t)
	a := dbtest.SeedTenant(t, db, "alpha")
	dbtest.SeedWarehouse(t, db, a.ID, "MAIN", true)
	dbtest.SeedWarehouse(t, db, a.ID, "SIDE", false)

	scope := NewScope(db, a.ID)
	err := db.Transaction(func(tx *gorm.DB) error {
		r := For[models.Warehouse](scope.WithTx(tx))
		def, err := r.First(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("is_default = ?", true) })
		if err != nil {
			return err
		}
		assert.Equal(t, "MAIN", def.Code)
		_, err = r.UpdateWhere(ctx, map[string]any{"is_active": false}, func(q *gorm.DB) *gorm.DB {
			return q.Where("code = ?", "SIDE")
		})
		return err
	})
	require.NoError(t, err)

	active, err := For[models.Warehouse](scope).Count(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("is_active = ?", true) })
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)
}
