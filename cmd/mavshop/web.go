package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/cache"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/catalog"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/sitemap"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/snapshot"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

func newProvider(cfg *config.Config) (catalog.Provider, error) {
	if cfg.Mocks.Enable {
		slog.Info("Using mock Square catalog")
		return square.NewMock(), nil
	}
	client, err := square.NewClient(cfg.Square)
	if err != nil {
		return nil, fmt.Errorf("failed to create square client: %w", err)
	}
	return client, nil
}

// newMux wires every route. It is shared by runServer and the end to end tests.
func newMux(cfg *config.Config, provider catalog.Provider, store cache.ListCache) (*http.ServeMux, error) {
	resolver, err := categories.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	mux := http.NewServeMux()
	svc := catalog.NewService(provider, resolver, cfg)
	catalog.NewHandler(cfg.Catalog, svc, resolver).Register(mux)
	snapshots := snapshot.NewStore(store)
	snapshots.Register(mux)
	sitemap.New(cfg.Catalog.SiteURL, resolver, snapshots).Register(mux)

	ro := &readyOnce{}
	ro.Add(svc, readyFunc(func(ctx context.Context) error {
		return cache.Ready(ctx, store)
	}))
	mux.Handle("GET /ready", ro)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux, nil
}

func runServer(cfg *config.Config, addr string) error {
	store, err := cache.MakeCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	mux, err := newMux(cfg, provider, store)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           WithMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Serving mavshop", "address", addr, "mocks", cfg.Mocks.Enable)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)
		return gracefulShutdown(server)
	}
}

func gracefulShutdown(svr *http.Server) error {
	// Give outstanding requests 25 seconds to complete (kubernetes has 30 second grace period)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
		// Force close after timeout
		if closeErr := svr.Close(); closeErr != nil {
			slog.Error("Server close error", "error", closeErr)
		}
		return err
	}
	slog.Info("Server stopped")
	return nil
}
