package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/api/middleware"
	"github.com/angelmondragon/stockledger-backend/internal/repo"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
)

// Scoper turns a request context into the tenant scope handlers pass to services.
type Scoper func(ctx context.Context) (repo.Scope, error)

// TenantScoper scopes db to the tenant bound by the tenant middleware.
func TenantScoper(db *gorm.DB) Scoper {
	return func(ctx context.Context) (repo.Scope, error) {
		return repo.ScopeFromContext(ctx, db)
	}
}

func requireActor(r *http.Request) (uuid.UUID, error) {
	id := middleware.ActorIDFromContext(r.Context())
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return *id, nil
}
