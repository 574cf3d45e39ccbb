package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/gomarketplace/api/responses"
	"github.com/angelmondragon/gomarketplace/internal/cart"
	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
	"github.com/angelmondragon/gomarketplace/pkg/config"
	"github.com/angelmondragon/gomarketplace/pkg/kv"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
)

const readyPingTimeout = 2 * time.Second

const envHeader = "X-GoMarketplace-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports 503 until the cart has loaded its persisted snapshot,
// and while the kv backend fails its ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, store *cart.Store, backend kv.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		if store == nil || store.Phase() != cart.PhaseReady {
			phase := cart.PhaseUninitialized
			if store != nil {
				phase = store.Phase()
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "cart not ready").
				WithDetails(map[string]string{"cart": phase.String()}))
			return
		}

		if backend != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
			defer cancel()
			if err := backend.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage ping failed").
					WithDetails(map[string]string{"storage": "unreachable"}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready", "cart": cart.PhaseReady.String()})
	}
}
