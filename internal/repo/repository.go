package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

// Filter narrows a scoped query.
type Filter func(*gorm.DB) *gorm.DB

// Repository is tenant-scoped CRUD over one model. Every statement it issues is
// filtered on the scope's tenant.
type Repository[T any, PT interface {
	*T
	models.Owned
}] struct {
	scope Scope
}

// For returns a repository for T bound to scope.
func For[T any, PT interface {
	*T
	models.Owned
}](scope Scope) Repository[T, PT] {
	return Repository[T, PT]{scope: scope}
}

func (r Repository[T, PT]) Scope() Scope {
	return r.scope
}

// Query returns a tenant-filtered session on T's table.
func (r Repository[T, PT]) Query(ctx context.Context) (*gorm.DB, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Model(PT(new(T))), nil
}

// Create stamps the scope's tenant on entity. A row already owned by another
// tenant is refused.
func (r Repository[T, PT]) Create(ctx context.Context, entity PT) error {
	conn, err := r.scope.Raw(ctx)
	if err != nil {
		return err
	}
	if err := r.claim(entity); err != nil {
		return err
	}
	return conn.Create(entity).Error
}

// CreateBatch stamps and inserts every entity in one statement.
func (r Repository[T, PT]) CreateBatch(ctx context.Context, entities []PT) error {
	if len(entities) == 0 {
		return nil
	}
	conn, err := r.scope.Raw(ctx)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		if err := r.claim(entity); err != nil {
			return err
		}
	}
	return conn.Create(entities).Error
}

func (r Repository[T, PT]) claim(entity PT) error {
	switch owner := entity.OwnerTenantID(); owner {
	case uuid.Nil:
		entity.AssignTenant(r.scope.tenantID)
	case r.scope.tenantID:
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "row belongs to another tenant")
	}
	return nil
}

// Get loads one row by id. Rows of other tenants read as gorm.ErrRecordNotFound.
func (r Repository[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}
	entity := PT(new(T))
	if err := conn.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: id}).First(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// GetForUpdate loads one row by id holding a row lock until the transaction ends.
// The lock clause is dropped by dialects without FOR UPDATE support.
func (r Repository[T, PT]) GetForUpdate(ctx context.Context, id uuid.UUID) (PT, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}
	entity := PT(new(T))
	err = conn.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: id}).
		First(entity).Error
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// First returns the first row matching filters.
func (r Repository[T, PT]) First(ctx context.Context, filters ...Filter) (PT, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}
	entity := PT(new(T))
	if err := apply(conn, filters).First(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// Find returns every row matching filters.
func (r Repository[T, PT]) Find(ctx context.Context, filters ...Filter) ([]T, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := apply(conn, filters).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of rows matching filters.
func (r Repository[T, PT]) Count(ctx context.Context, filters ...Filter) (int64, error) {
	query, err := r.Query(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := apply(query, filters).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Update applies updates to the row with id and any extra filters, returning the
// affected row count. Zero rows means the guard did not match.
func (r Repository[T, PT]) Update(ctx context.Context, id uuid.UUID, updates map[string]any, filters ...Filter) (int64, error) {
	query, err := r.Query(ctx)
	if err != nil {
		return 0, err
	}
	if _, ok := updates["tenant_id"]; ok {
		return 0, pkgerrors.New(pkgerrors.CodeForbidden, "tenant_id is immutable")
	}
	res := apply(query.Where("id = ?", id), filters).Updates(updates)
	return res.RowsAffected, res.Error
}

// UpdateWhere applies updates to every row matching filters.
func (r Repository[T, PT]) UpdateWhere(ctx context.Context, updates map[string]any, filters ...Filter) (int64, error) {
	query, err := r.Query(ctx)
	if err != nil {
		return 0, err
	}
	if _, ok := updates["tenant_id"]; ok {
		return 0, pkgerrors.New(pkgerrors.CodeForbidden, "tenant_id is immutable")
	}
	res := apply(query, filters).Updates(updates)
	return res.RowsAffected, res.Error
}

// Delete removes the row with id.
func (r Repository[T, PT]) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	conn, err := r.scope.DB(ctx)
	if err != nil {
		return 0, err
	}
	res := conn.Where("id = ?", id).Delete(PT(new(T)))
	return res.RowsAffected, res.Error
}

func apply(db *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		if f != nil {
			db = f(db)
		}
	}
	return db
}
