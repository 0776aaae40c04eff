package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmcart-sync/api/controllers"
	"github.com/angelmondragon/farmcart-sync/api/routes"
	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/localstore"
	"github.com/angelmondragon/farmcart-sync/internal/readmodel"
	"github.com/angelmondragon/farmcart-sync/internal/reconcile"
	"github.com/angelmondragon/farmcart-sync/internal/remote"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/internal/session"
	"github.com/angelmondragon/farmcart-sync/pkg/config"
	"github.com/angelmondragon/farmcart-sync/pkg/db"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/angelmondragon/farmcart-sync/pkg/instance"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
	"github.com/angelmondragon/farmcart-sync/pkg/migrate"
	pkgredis "github.com/angelmondragon/farmcart-sync/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "farmcart-sync"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "farmcart-sync",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "farmcart-sync stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	pingers := map[string]controllers.Pinger{}
	var backends localstore.Backends

	switch cfg.Store.NormalizedDriver() {
	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		dbClient, err := db.New(ctx, cfg, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
		backends.DB = dbClient
		pingers["database"] = dbClient
	case config.StoreDriverRedis:
		redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		backends.Redis = redisClient
		pingers["redis"] = redisClient
	}

	store, err := localstore.FromConfig(cfg.Store, backends)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(reg)

	tracker := session.NewTracker(cfg.JWT, logg)
	client, err := remote.NewClient(cfg.Remote.BaseURL,
		remote.WithTimeout(cfg.Remote.Timeout),
		remote.WithTokenSource(tracker),
	)
	if err != nil {
		return err
	}

	mirror, err := cart.NewMirror(cart.MirrorParams{
		Store:      store,
		Logger:     logg,
		Metrics:    syncMetrics,
		GuestOwner: cfg.Session.GuestOwner,
	})
	if err != nil {
		return err
	}
	mirror.Load(ctx)

	cartGateway, err := cart.NewGateway(cart.GatewayParams{
		Mirror:  mirror,
		Remote:  client,
		Auth:    tracker,
		Logger:  logg,
		Metrics: syncMetrics,
	})
	if err != nil {
		return err
	}

	var (
		savedGateways = map[enums.SavedKind]controllers.SavedGateway{}
		savedFeatures []reconcile.SavedFeature
		savedSources  []readmodel.SavedSource
		clearOnLogout = []func(context.Context){mirror.Reset}
	)
	for _, kind := range []enums.SavedKind{enums.SavedKindListing, enums.SavedKindFarm} {
		set, err := saved.NewSet(saved.SetParams{Kind: kind, Store: store, Logger: logg, Metrics: syncMetrics})
		if err != nil {
			return err
		}
		set.Load(ctx)

		savedRemote := client.Saved(kind)
		gateway, err := saved.NewGateway(saved.GatewayParams{
			Set:     set,
			Remote:  savedRemote,
			Auth:    tracker,
			Logger:  logg,
			Metrics: syncMetrics,
		})
		if err != nil {
			return err
		}
		savedGateways[kind] = gateway
		savedFeatures = append(savedFeatures, reconcile.SavedFeature{Set: set, Remote: savedRemote})
		savedSources = append(savedSources, readmodel.SavedSource{Set: set, Remote: savedRemote})
		clearOnLogout = append(clearOnLogout, set.Clear)
	}

	locks := reconcile.LocalLocks()
	if backends.Redis != nil {
		locks, err = reconcile.RedisLocks(backends.Redis, instance.GetID(), cfg.Sync.LockTTL)
		if err != nil {
			return err
		}
	}

	orchestrator, err := reconcile.NewOrchestrator(reconcile.OrchestratorParams{
		Logger:          logg,
		Metrics:         syncMetrics,
		Cart:            mirror,
		CartRemote:      client,
		Auth:            tracker,
		Saved:           savedFeatures,
		Locks:           locks,
		PushConcurrency: cfg.Sync.PushConcurrency,
		PageSize:        cfg.Sync.PageSize,
	})
	if err != nil {
		return err
	}

	selector, err := readmodel.NewSelector(readmodel.Params{
		Session:    tracker,
		Cart:       mirror,
		CartRemote: client,
		Saved:      savedSources,
		Entities:   client,
		Logger:     logg,
		RemoteTTL:  cfg.ReadModel.RemoteTTL,
		PageSize:   cfg.ReadModel.PageSize,
	})
	if err != nil {
		return err
	}
	defer selector.Close()

	tracker.OnLogin(orchestrator.OnLogin())
	tracker.OnLogin(selector.SessionHook())
	tracker.OnLogout(session.ClearOnLogout(cfg.Session.ClearOnLogout, clearOnLogout...))
	tracker.OnLogout(selector.SessionHook())

	if p, ok := store.(localstore.Pinger); ok {
		pingers["store"] = p
	}

	server := &http.Server{
		Addr: cfg.App.Addr(),
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Session:       tracker,
			CartGateway:   cartGateway,
			CartViews:     selector,
			SavedGateways: savedGateways,
			SavedViews:    selector,
			Sync:          orchestrator,
			Pingers:       pingers,
			Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      server.Addr,
		"store":     cfg.Store.NormalizedDriver(),
		"device_id": instance.GetID(),
	})
	logg.Info(logCtx, "starting farmcart-sync companion api")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
