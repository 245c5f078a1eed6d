package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockledger-backend/api/controllers"
	"github.com/angelmondragon/stockledger-backend/api/middleware"
	"github.com/angelmondragon/stockledger-backend/internal/orders"
	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/metrics"
	"github.com/angelmondragon/stockledger-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface needs from cmd/api.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Outbox      controllers.BacklogCounter
	Idempotency redis.IdempotencyStore
	Resolver    middleware.TenantResolver
	Scopes      controllers.Scoper
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	Tenants     controllers.TenantAdmin
	Warehouses  controllers.WarehouseService
	Products    controllers.ProductService
	Stock       controllers.StockService
	Adjustments controllers.AdjustmentService
	Orders      orders.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis, deps.Outbox))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	scopes := deps.Scopes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Tenant(deps.Resolver, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/whoami", controllers.Whoami(logg))

		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", controllers.ListWarehouses(deps.Warehouses, scopes, logg))
			r.Get("/{warehouseID}", controllers.GetWarehouse(deps.Warehouses, scopes, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleManager, enums.ActorRoleService))
				r.Post("/", controllers.CreateWarehouse(deps.Warehouses, scopes, logg))
				r.Post("/{warehouseID}/default", controllers.SetDefaultWarehouse(deps.Warehouses, scopes, logg))
				r.Post("/{warehouseID}/deactivate", controllers.DeactivateWarehouse(deps.Warehouses, scopes, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Products, scopes, logg))
			r.Post("/", controllers.CreateProduct(deps.Products, scopes, logg))
			r.Get("/{productID}", controllers.GetProduct(deps.Products, scopes, logg))
			r.Post("/{productID}/variants", controllers.CreateVariant(deps.Products, scopes, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(deps.Products, scopes, logg))
			r.Post("/", controllers.CreateCategory(deps.Products, scopes, logg))
			r.Get("/{categoryID}", controllers.GetCategory(deps.Products, scopes, logg))
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.ListSuppliers(deps.Products, scopes, logg))
			r.Post("/", controllers.CreateSupplier(deps.Products, scopes, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/balance", controllers.GetStockBalance(deps.Stock, scopes, logg))
			r.Get("/balances", controllers.ListStockBalances(deps.Stock, scopes, logg))
			r.Get("/transactions", controllers.ListStockTransactions(deps.Stock, scopes, logg))
			r.Get("/reconcile", controllers.ReconcileStock(deps.Stock, scopes, logg))
			r.Post("/movements", controllers.RecordMovement(deps.Stock, scopes, logg))
			r.Post("/reservations", controllers.ReserveStock(deps.Stock, scopes, logg))
			r.Post("/releases", controllers.ReleaseStock(deps.Stock, scopes, logg))
			r.Post("/transfers", controllers.TransferStock(deps.Stock, scopes, logg))
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", controllers.ListStockAlerts(deps.Stock, scopes, logg))
				r.Post("/{alertID}/acknowledge", controllers.AcknowledgeStockAlert(deps.Stock, scopes, logg))
				r.Post("/{alertID}/resolve", controllers.ResolveStockAlert(deps.Stock, scopes, logg))
			})
		})

		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", controllers.ListAdjustments(deps.Adjustments, scopes, logg))
			r.Post("/", controllers.RequestAdjustment(deps.Adjustments, scopes, logg))
			r.Get("/{adjustmentID}", controllers.GetAdjustment(deps.Adjustments, scopes, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleManager))
				r.Post("/{adjustmentID}/approve", controllers.ApproveAdjustment(deps.Adjustments, scopes, logg))
				r.Post("/{adjustmentID}/reject", controllers.RejectAdjustment(deps.Adjustments, scopes, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, scopes, logg))
			r.Post("/", controllers.CreateOrder(deps.Orders, scopes, logg))
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(deps.Orders, scopes, logg))
				r.Get("/history", controllers.OrderHistory(deps.Orders, scopes, logg))
				r.Post("/lines", controllers.AddOrderLine(deps.Orders, scopes, logg))
				r.Delete("/lines/{lineID}", controllers.RemoveOrderLine(deps.Orders, scopes, logg))
				r.Patch("/charges", controllers.UpdateOrderCharges(deps.Orders, scopes, logg))
				r.Post("/transitions", controllers.TransitionOrder(deps.Orders, scopes, logg))
				r.Post("/fulfillments", controllers.FulfillOrder(deps.Orders, scopes, logg))
				r.Post("/cancel", controllers.CancelOrder(deps.Orders, scopes, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
		r.Get("/whoami", controllers.Whoami(logg))
		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateTenant(deps.Tenants, logg))
			r.Route("/{tenantID}", func(r chi.Router) {
				r.Get("/", controllers.AdminGetTenant(deps.Tenants, logg))
				r.Post("/deactivate", controllers.AdminDeactivateTenant(deps.Tenants, logg))
				r.Post("/domains", controllers.AdminAddDomain(deps.Tenants, logg))
				r.Post("/domains/{domainID}/verify", controllers.AdminVerifyDomain(deps.Tenants, logg))
				r.Post("/domains/{domainID}/primary", controllers.AdminSetPrimaryDomain(deps.Tenants, logg))
			})
		})
	})

	return r
}
