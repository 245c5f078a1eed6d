package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockledger-backend/internal/tenancy"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

// Scope binds data access to exactly one tenant. The zero Scope fails every call.
type Scope struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewScope builds a scope for tenantID on db.
func NewScope(db *gorm.DB, tenantID uuid.UUID) Scope {
	return Scope{db: db, tenantID: tenantID}
}

// ScopeFromContext builds a scope for the tenant resolved onto ctx.
func ScopeFromContext(ctx context.Context, db *gorm.DB) (Scope, error) {
	tenant, err := tenancy.Require(ctx)
	if err != nil {
		return Scope{}, err
	}
	return NewScope(db, tenant.ID), nil
}

func (s Scope) TenantID() uuid.UUID {
	return s.tenantID
}

// Valid reports whether the scope is bound to a tenant and a connection.
func (s Scope) Valid() bool {
	return s.db != nil && s.tenantID != uuid.Nil
}

// WithTx rebinds the scope onto a transaction.
func (s Scope) WithTx(tx *gorm.DB) Scope {
	if tx == nil {
		return s
	}
	return Scope{db: tx, tenantID: s.tenantID}
}

// Raw returns the bound connection without the tenant filter. Writers use it for
// inserts and statements that carry tenant_id themselves.
func (s Scope) Raw(ctx context.Context) (*gorm.DB, error) {
	if !s.Valid() {
		return nil, errNoTenant()
	}
	return s.db.WithContext(ctx), nil
}

// DB returns a fresh session filtered on tenant_id of the statement's table.
func (s Scope) DB(ctx context.Context) (*gorm.DB, error) {
	conn, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "tenant_id"},
		Value:  s.tenantID,
	}), nil
}

func errNoTenant() error {
	return pkgerrors.New(pkgerrors.CodeTenantNotResolved, "data access requires a resolved tenant")
}
