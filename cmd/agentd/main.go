package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/routewise/fieldsync/internal/capture"
	"github.com/routewise/fieldsync/internal/identity"
	"github.com/routewise/fieldsync/internal/store"
	syncengine "github.com/routewise/fieldsync/internal/sync"
	"github.com/routewise/fieldsync/pkg/auth"
	"github.com/routewise/fieldsync/pkg/config"
	"github.com/routewise/fieldsync/pkg/crypto"
	"github.com/routewise/fieldsync/pkg/db"
	"github.com/routewise/fieldsync/pkg/env"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/logger"
	"github.com/routewise/fieldsync/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "agentd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "agentd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Identity and the unlock secret come from the host's session layer;
	// this standalone binary reads them from the environment.
	ident := event.Identity{
		ActorID:   env.Get("FIELDSYNC_ACTOR_ID", ""),
		DeviceID:  env.Get("FIELDSYNC_DEVICE_ID", ""),
		VehicleID: env.Get("FIELDSYNC_VEHICLE_ID", ""),
	}
	secret := env.Get("FIELDSYNC_DEVICE_SECRET", "")
	if secret == "" {
		logg.Error(ctx, "device secret is required", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to open device database", err)
		os.Exit(1)
	}
	if err := dbClient.Ping(ctx); err != nil {
		logg.Error(ctx, "device database unreachable", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing device database", err)
		}
	}()

	cipher := crypto.NewSession(cfg.Crypto)
	if err := cipher.Initialize(secret); err != nil {
		logg.Error(ctx, "failed to initialize cipher session", err)
		os.Exit(1)
	}

	eventStore := store.New(dbClient, cipher)

	pusher, err := syncengine.NewHTTPClient(cfg.Sync.EndpointURL, auth.NewCredential(cfg.Sync.Credential),
		syncengine.WithHTTPClient(&http.Client{Timeout: cfg.Sync.RequestTimeout}))
	if err != nil {
		logg.Error(ctx, "failed to build sync client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	syncService, err := syncengine.NewService(syncengine.ServiceParams{
		Logger:  logg,
		Store:   eventStore,
		Pusher:  pusher,
		Metrics: syncMetrics,
		Config:  cfg.Sync,
	})
	if err != nil {
		logg.Error(ctx, "failed to build sync engine", err)
		os.Exit(1)
	}

	captureService, err := capture.NewService(ident, eventStore, syncService.Notifier(), logg)
	if err != nil {
		logg.Error(ctx, "failed to build capture service", err)
		os.Exit(1)
	}

	observer := identity.NewObserver(dbClient, ident.DeviceID, captureService, logg)
	observer.ObserveLogin(ctx, ident.ActorID)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"device_id": ident.DeviceID,
	})
	logg.Info(ctx, "starting sync engine")

	// Drain whatever survived the last shutdown before settling into the
	// poll cadence.
	captureService.ForceSync()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return syncService.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync engine stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "agentd shutting down gracefully")
}
