package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-cart/api/responses"
	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-cart/pkg/errors"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackFinderz-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency concurrently. Nil pingers are skipped, so
// backends that need no external store are always ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackFinderz-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			checks = map[string]string{}
			failed []string
			g      errgroup.Group
		)
		for name, p := range deps {
			if p == nil {
				continue
			}
			g.Go(func() error {
				err := p.Ping(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					checks[name] = "unavailable"
					failed = append(failed, name)
					if logg != nil {
						logg.Error(logg.WithField(ctx, "dependency", name), "health.dependency_failed", err)
					}
					return nil
				}
				checks[name] = "ok"
				return nil
			})
		}
		_ = g.Wait()

		if len(failed) > 0 {
			sort.Strings(failed)
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"failed": failed}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
