package repo

import (
	"context"
	"testing"

	"github.com/angelmondragon/stockledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
)

type ctxKey struct{}

func TestAllTenantsDB_BindsContext(t *testing.T) {
	db := dbtest.SQLite(t)
	all := AllTenants(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := all.DB(ctx)
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	var noCtx context.Context
	if all.DB(noCtx) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestAllTenantsSeesEveryTenant(t *testing.T) {
	db := dbtest.SQLite(t)
	a := dbtest.SeedTenant(t, db, "alpha")
	b := dbtest.SeedTenant(t, db, "beta")
	dbtest.SeedWarehouse(t, db, a.ID, "MAIN", true)
	dbtest.SeedWarehouse(t, db, b.ID, "MAIN", true)

	var count int64
	if err := AllTenants(db).DB(context.Background()).Model(&models.Warehouse{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 warehouses across tenants, got %d", count)
	}
}

func TestActiveTenantIDsSkipsInactive(t *testing.T) {
	db := dbtest.SQLite(t)
	a := dbtest.SeedTenant(t, db, "alpha")
	b := dbtest.SeedTenant(t, db, "beta")
	if err := db.Model(&models.Tenant{}).Where("id = ?", b.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	ids, err := AllTenants(db).ActiveTenantIDs(context.Background())
	if err != nil {
		t.Fatalf("active tenants: %v", err)
	}
	if len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("expected only %s, got %v", a.ID, ids)
	}
	if AllTenants(db).Scope(a.ID).TenantID() != a.ID {
		t.Fatal("scope should carry the tenant")
	}
}
