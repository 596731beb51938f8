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
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/bookworm-storefront/api/controllers"
	"github.com/angelmondragon/bookworm-storefront/api/routes"
	"github.com/angelmondragon/bookworm-storefront/internal/cart"
	"github.com/angelmondragon/bookworm-storefront/internal/localstore"
	"github.com/angelmondragon/bookworm-storefront/internal/session"
	"github.com/angelmondragon/bookworm-storefront/internal/storefront"
	"github.com/angelmondragon/bookworm-storefront/pkg/config"
	"github.com/angelmondragon/bookworm-storefront/pkg/db"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
	"github.com/angelmondragon/bookworm-storefront/pkg/metrics"
	"github.com/angelmondragon/bookworm-storefront/pkg/migrate"
	"github.com/angelmondragon/bookworm-storefront/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithProfileID(ctx, cfg.App.ProfileID)

	local, err := openLocalStore(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := local.Close(); err != nil {
			logg.Error(context.Background(), "error closing local store", err)
		}
	}()

	cartStore, err := localstore.NewCartStore(local.backend, cfg.App.ProfileID, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart store", err)
		os.Exit(1)
	}
	creds, err := localstore.NewCredentials(local.backend, cfg.App.ProfileID)
	if err != nil {
		logg.Error(ctx, "failed to create credential store", err)
		os.Exit(1)
	}

	client, err := storefront.NewClient(cfg.Storefront.BaseURL,
		storefront.WithTimeout(cfg.Storefront.RequestTimeout),
		storefront.WithRateLimit(cfg.Storefront.RatePerSecond, cfg.Storefront.RateBurst),
		storefront.WithTokenSource(creds),
	)
	if err != nil {
		logg.Error(ctx, "failed to create storefront client", err)
		os.Exit(1)
	}

	var (
		registry    *prometheus.Registry
		cartMetrics *metrics.CartMetrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		cartMetrics = metrics.NewCartMetrics(registry)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Local:        cartStore,
		Remote:       client,
		Logger:       logg,
		Metrics:      cartMetrics,
		WriteTimeout: cfg.LocalStore.WriteTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	binding, err := session.NewBinding(session.BindingParams{
		Engine:      cartService,
		Auth:        client,
		Credentials: creds,
		Logger:      logg,
		Metrics:     cartMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session binding", err)
		os.Exit(1)
	}
	if err := binding.Start(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "starting with an empty anonymous cart")
	}

	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Cart:     cartService,
		Sessions: binding,
		Ready:    local.pingers,
	}
	if registry != nil {
		deps.Gatherer = registry
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	state, _ := binding.State()
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"session_state": state.String(),
		"local_backend": cfg.LocalStore.Backend,
	})
	logg.Info(logCtx, "starting storefront cart server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if cfg.Cart.FlushOnShutdown {
			err = multierr.Append(err, flushCart(shutdownCtx, cartService, logg))
		}
		return err
	})

	if err := group.Wait(); err != nil {
		logg.Error(logCtx, "storefront cart server stopped with errors", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "storefront cart server stopped")
}

// flushCart waits for any in-flight session transition and persists the
// active tier where it belongs.
func flushCart(ctx context.Context, svc *cart.Service, logg *logger.Logger) error {
	if err := svc.Wait(ctx); err != nil {
		return err
	}
	ctx = logg.WithCartTier(ctx, svc.Tier().String())
	if err := svc.Save(ctx); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "skipping cart flush on shutdown")
			return nil
		}
		logg.Error(ctx, "cart flush on shutdown failed", err)
		return err
	}
	logg.Info(ctx, "cart flushed on shutdown")
	return nil
}

// localStore bundles the selected backend with what must be probed and closed.
type localStore struct {
	backend localstore.Backend
	pingers map[string]controllers.Pinger
	closers []func() error
}

func (l *localStore) Close() error {
	var err error
	for _, closeFn := range l.closers {
		err = multierr.Append(err, closeFn())
	}
	return err
}

func openLocalStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*localStore, error) {
	switch cfg.LocalStore.Backend {
	case config.LocalBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		backend, err := localstore.NewRedisBackend(client)
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		return &localStore{
			backend: backend,
			pingers: map[string]controllers.Pinger{"redis": client},
			closers: []func() error{client.Close},
		}, nil
	default:
		dbClient, err := db.New(ctx, *cfg, logg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := dbClient.DB().DB()
		if err == nil {
			err = migrate.Run(ctx, cfg, logg, sqlDB)
		}
		var backend *localstore.GormBackend
		if err == nil {
			backend, err = localstore.NewGormBackend(dbClient.DB())
		}
		if err != nil {
			return nil, multierr.Append(err, dbClient.Close())
		}
		return &localStore{
			backend: backend,
			pingers: map[string]controllers.Pinger{"db": dbClient},
			closers: []func() error{dbClient.Close},
		}, nil
	}
}
