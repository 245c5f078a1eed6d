package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

const (
	envHeader    = "X-StockLedger-Env"
	readyTimeout = 2 * time.Second
)

type Pinger interface {
	Ping(context.Context) error
}

type BacklogCounter interface {
	Pending(ctx context.Context) (int64, error)
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

type readyResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	OutboxPending *int64            `json:"outbox_pending,omitempty"`
}

// HealthReady pings the database and redis concurrently. The outbox backlog is
// reported but never fails readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis Pinger, outbox BacklogCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks, err := pingAll(ctx, map[string]Pinger{"database": db, "redis": redis})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency unavailable").
				WithDetails(map[string]any{"checks": checks}))
			return
		}

		payload := readyResponse{Status: "ready", Checks: checks}
		if outbox != nil {
			if pending, err := outbox.Pending(ctx); err == nil {
				payload.OutboxPending = &pending
			} else if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "outbox backlog unavailable")
			}
		}
		responses.WriteSuccess(w, payload)
	}
}

// pingAll marks each dependency ok, down or skipped and returns the first
// failure once every ping has finished.
func pingAll(ctx context.Context, deps map[string]Pinger) (map[string]string, error) {
	var (
		mu     sync.Mutex
		g      errgroup.Group
		checks = make(map[string]string, len(deps))
	)
	for name, p := range deps {
		if p == nil {
			mu.Lock()
			checks[name] = "skipped"
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			err := p.Ping(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "down"
				return fmt.Errorf("%s: %w", name, err)
			}
			checks[name] = "ok"
			return nil
		})
	}
	err := g.Wait()
	return checks, err
}
