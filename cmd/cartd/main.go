package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gomarketplace/api/routes"
	"github.com/angelmondragon/gomarketplace/internal/cart"
	"github.com/angelmondragon/gomarketplace/internal/storage"
	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
	"github.com/angelmondragon/gomarketplace/pkg/config"
	"github.com/angelmondragon/gomarketplace/pkg/instance"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
	"github.com/angelmondragon/gomarketplace/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "cartd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "cartd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "storage", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(reg)

	store, err := cart.NewStore(cart.StoreParams{
		KV:             backend.Store,
		Key:            cfg.Cart.StorageKey,
		ClearOnLoad:    cfg.Cart.ClearOnLoad,
		PersistTimeout: cfg.Cart.PersistTimeout,
		Logger:         logg,
		Metrics:        cartMetrics,
	})
	requireResource(ctx, logg, "cart store", err)

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, store, backend, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"env":      cfg.App.Env,
			"addr":     addr,
			"backend":  backend.Kind,
			"instance": instance.GetID(),
		}), "starting cart server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-store.InitializeAsync(ctx):
		if err != nil {
			if ctx.Err() == nil {
				runErr = fmt.Errorf("initialize cart: %w", err)
			}
			break
		}
		logg.Info(logg.WithCartKey(ctx, store.Key()), "cart ready")
		runErr = wait(ctx, serveErr)
	case err := <-serveErr:
		runErr = err
	}

	if runErr != nil {
		if pkgerrors.IsCode(runErr, pkgerrors.CodeMalformedState) {
			logg.Error(ctx, "persisted cart is unreadable; refusing to start", runErr)
		} else {
			logg.Error(ctx, "cart server stopped unexpectedly", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx, server, store, backend); err != nil {
		logg.Error(shutdownCtx, "shutdown incomplete", err)
		runErr = multierr.Append(runErr, err)
	}

	if runErr != nil {
		os.Exit(1)
	}
	logg.Info(shutdownCtx, "cart server stopped")
}

// wait blocks until a shutdown signal arrives or the listener fails.
func wait(ctx context.Context, serveErr <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return err
	}
}

// shutdown stops accepting requests, writes the last cart snapshot and then
// releases the backend. Every step runs even if an earlier one fails.
func shutdown(ctx context.Context, server *http.Server, store *cart.Store, backend *storage.Backend) error {
	var err error
	if serr := server.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("http server: %w", serr))
	}
	if cerr := store.Close(ctx); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("cart store: %w", cerr))
	}
	if berr := backend.Close(); berr != nil {
		err = multierr.Append(err, fmt.Errorf("storage: %w", berr))
	}
	return err
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
