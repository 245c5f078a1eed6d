// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
)

// SQLite opens a private in-memory database with every model migrated. The pool
// is pinned to one connection so concurrent goroutines serialize on it.
func SQLite(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

// Postgres connects to the database named by STOCKLEDGER_TEST_DB_DSN, skipping the
// test when it is unset. The schema is expected to be migrated already.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(config.EnvTestDBDSN)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres test", config.EnvTestDBDSN)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// SeedTenant inserts an active tenant with the given slug.
func SeedTenant(t *testing.T, conn *gorm.DB, slug string) models.Tenant {
	t.Helper()
	tenant := models.Tenant{Name: slug, Slug: slug + "-" + uuid.NewString()[:8], IsActive: true}
	if err := conn.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}

// SeedWarehouse inserts a warehouse for the tenant.
func SeedWarehouse(t *testing.T, conn *gorm.DB, tenantID uuid.UUID, code string, isDefault bool) models.Warehouse {
	t.Helper()
	wh := models.Warehouse{TenantID: tenantID, Code: code, Name: code, IsDefault: isDefault, IsActive: true}
	if err := conn.Create(&wh).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return wh
}

// SeedProduct inserts a tracked product with the given reorder point.
func SeedProduct(t *testing.T, conn *gorm.DB, tenantID uuid.UUID, sku string, reorderPoint int) models.Product {
	t.Helper()
	product := models.Product{
		TenantID:        tenantID,
		SKU:             sku,
		Name:            sku,
		ReorderPoint:    reorderPoint,
		ReorderQuantity: 50,
		IsActive:        true,
		IsTracked:       true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}
