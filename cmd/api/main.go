package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/younginnovators/internal/cache"
	"github.com/geocoder89/younginnovators/internal/config"
	"github.com/geocoder89/younginnovators/internal/db"
	httpx "github.com/geocoder89/younginnovators/internal/http"
	"github.com/geocoder89/younginnovators/internal/http/handlers"
	"github.com/geocoder89/younginnovators/internal/observability"
	"github.com/geocoder89/younginnovators/internal/repo/memory"
	"github.com/geocoder89/younginnovators/internal/repo/postgres"
	"github.com/geocoder89/younginnovators/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// userStore is what the API needs from either store driver.
type userStore interface {
	handlers.UserStore
	handlers.Pinger
}

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up
	cfg, err := config.Load()

	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.TracingEnabled, cfg.OTLPEndpoint)

	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	defer func() {
		tctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	store, closeStore, err := openStore(ctx, cfg, prom, log)

	if err != nil {
		return err
	}

	defer closeStore()

	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	err = db.EnsureStaffUser(ctx, store, hasher, cfg.SeedStaff, log)

	if err != nil {
		return fmt.Errorf("seed staff user: %w", err)
	}

	checks := map[string]handlers.Pinger{"store": store}

	var usersCache cache.Store

	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()

		redisCache := cache.NewBreaker(cache.NewRedis(rdb, cfg.CacheTTL), cache.BreakerConfig{})
		usersCache = redisCache
		checks["redis"] = redisCache

		log.Info("using redis cache", "addr", cfg.RedisAddr)
	} else {
		usersCache = cache.NewMemory(cfg.CacheTTL)
	}

	var draining atomic.Bool

	router := httpx.NewRouter(httpx.Deps{
		Config:       cfg,
		Log:          log,
		Store:        store,
		Hasher:       hasher,
		Cache:        usersCache,
		Prom:         prom,
		Gatherer:     reg,
		Checks:       checks,
		ShuttingDown: draining.Load,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	// readiness fails first so load balancers stop routing here
	draining.Store(true)

	sctx, cancel := config.WithTimeout(context.Background(), cfg.ShutdownTimeout)

	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")

	return nil
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (userStore, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory user store; data is lost on restart")
		return memory.NewUsersRepo(), func() {}, nil
	}

	pool, err := db.ConnectWithRetry(ctx, cfg.DBURL, cfg.DBMaxConns, 5, log)

	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DBURL); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	return postgres.NewUsersRepo(pool, prom), pool.Close, nil
}
