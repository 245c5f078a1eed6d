package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpLiftsCorrelationRefs(t *testing.T) {
	err := New(CodeInsufficientStock, "not enough").WithDetails(map[string]any{
		"stock_item_id": "item-1",
		"requested":     5,
	})

	d := Dump(fmt.Errorf("reserve: %w", err))

	if d.Code != CodeInsufficientStock {
		t.Fatalf("expected code %s, got %s", CodeInsufficientStock, d.Code)
	}
	if d.Refs["stock_item_id"] != "item-1" {
		t.Fatalf("expected stock_item_id ref, got %v", d.Refs)
	}
	if _, ok := d.Refs["requested"]; ok {
		t.Fatal("non-correlation detail leaked into refs")
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", d.Chain)
	}
}

func TestDumpClassifiesPostgresErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access", TableName: "stock_items"}

	d := Dump(Wrap(CodeDependency, pgErr, "apply movement"))

	if d.PGClass != "transaction_rollback" || d.PGTable != "stock_items" {
		t.Fatalf("unexpected pg fields: %+v", d)
	}
	if !d.Retryable {
		t.Fatal("dependency errors should dump as retryable")
	}
	fields := d.Fields()
	if fields["pg_code"] != "40001" {
		t.Fatalf("expected pg_code field, got %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatal("empty pg fields should be omitted")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Fields()["error"] != "" {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
