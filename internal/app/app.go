// Package app wires configuration into a running record service.
package app

import (
	"context"
	"errors"
	"fmt"
	stdslog "log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/reccache"
	"github.com/unkn0wn-root/reccache/codec"
	"github.com/unkn0wn-root/reccache/config"
	"github.com/unkn0wn-root/reccache/genstore"
	asynchook "github.com/unkn0wn-root/reccache/hooks/async"
	"github.com/unkn0wn-root/reccache/httpapi"
	logruslog "github.com/unkn0wn-root/reccache/log/logrus"
	sloglog "github.com/unkn0wn-root/reccache/log/slog"
	zaplog "github.com/unkn0wn-root/reccache/log/zap"
	"github.com/unkn0wn-root/reccache/metrics"
	pr "github.com/unkn0wn-root/reccache/provider"
	bcprovider "github.com/unkn0wn-root/reccache/provider/bigcache"
	rsprovider "github.com/unkn0wn-root/reccache/provider/ristretto"
	rdprovider "github.com/unkn0wn-root/reccache/provider/redis"
	"github.com/unkn0wn-root/reccache/runner"
	"github.com/unkn0wn-root/reccache/sloghooks"
	"github.com/unkn0wn-root/reccache/store"
	"github.com/unkn0wn-root/reccache/store/memory"
	"github.com/unkn0wn-root/reccache/store/postgres"
	"github.com/unkn0wn-root/reccache/store/sqlite"
)

// App holds every long-lived dependency of the process.
type App struct {
	Handler http.Handler
	Service *reccache.Service
	Logger  reccache.Logger

	cfg     config.Config
	store   store.Store
	cache   reccache.RecordCache
	runner  *runner.Runner
	rdb     *goredis.Client
	events  *asynchook.Hooks
	closers []func() error
}

// Build constructs the app. On error everything built so far is released.
func Build(ctx context.Context, cfg config.Config) (_ *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	log, slogger, flush, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a.Logger = log
	a.closers = append(a.closers, flush)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricHooks := metrics.New(reg)
	hooks := metrics.Fanout{metricHooks}
	if slogger != nil {
		a.events = asynchook.New(sloghooks.New(slogger, sloghooks.Options{SelfHealEvery: 10}), 1, 1024)
		hooks = append(hooks, a.events)
	}

	if cfg.NeedsRedis() {
		a.rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
	}

	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if a.cache, err = a.openCache(ctx, reg, log, hooks); err != nil {
		return nil, err
	}

	a.runner = runner.New(runner.Options{
		Workers: cfg.Workers,
		OnError: reccache.DetachedFailureReporter(log, hooks),
	})
	metrics.RegisterRunner(reg, a.runner)

	a.Service, err = reccache.NewService(reccache.ServiceOptions{
		Store:  a.store,
		Cache:  a.cache,
		Runner: a.runner,
		Logger: log,
		Hooks:  hooks,
	})
	if err != nil {
		return nil, err
	}

	a.Handler = httpapi.New(httpapi.Options{
		Service:        a.Service,
		Logger:         log,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Observer:       metricHooks,
	})
	return a, nil
}

// Close drains the runner first so accepted inserts reach the store, then
// releases the cache, the store and the shared clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.runner != nil {
		if err := a.runner.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain runner: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.events != nil {
		a.events.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	return errors.Join(errs...)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config) error {
	a, err := Build(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", reccache.Fields{"addr": cfg.HTTPAddr})
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down", reccache.Fields{"timeout": cfg.ShutdownTimeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, fmt.Errorf("http shutdown: %w", serr))
	}
	if cerr := a.Close(shutdownCtx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// newLogger returns the configured logger and, for the slog backend, the
// underlying *slog.Logger so event hooks can share it.
func newLogger(cfg config.Config) (reccache.Logger, *stdslog.Logger, func() error, error) {
	noop := func() error { return nil }
	switch cfg.LogBackend {
	case "logrus":
		l, err := logruslog.New(cfg.LogLevel)
		return l, nil, noop, err
	case "slog":
		l, err := sloglog.New(os.Stderr, cfg.LogLevel)
		return l, l.L, noop, err
	default:
		l, err := zaplog.New(cfg.LogLevel)
		if err != nil {
			return nil, nil, noop, err
		}
		return l, nil, func() error { return l.Sync() }, nil
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
}

func (a *App) openCache(ctx context.Context, reg prometheus.Registerer, log reccache.Logger, hooks reccache.Hooks) (reccache.RecordCache, error) {
	cfg := a.cfg
	var (
		prov pr.Provider
		err  error
	)
	switch cfg.CacheProvider {
	case "bigcache":
		prov, err = bcprovider.New(ctx, bcprovider.Config{LifeWindow: cfg.BigCacheLifeWindow})
	case "ristretto":
		var rp *rsprovider.Provider
		rp, err = rsprovider.New(rsprovider.Config{
			NumCounters: max(cfg.RistrettoMaxCost/10, 1000),
			MaxCost:     cfg.RistrettoMaxCost,
			BufferItems: 64,
			Metrics:     true,
		})
		if err == nil {
			m := rp.Metrics()
			metrics.RegisterProviderStats(reg, "ristretto", m.Hits, m.Misses)
			prov = rp
		}
	default:
		prov, err = rdprovider.New(rdprovider.Config{Client: a.rdb})
	}
	if err != nil {
		return nil, fmt.Errorf("cache provider %s: %w", cfg.CacheProvider, err)
	}

	rc, err := codec.ForRecords(cfg.CacheCodec, cfg.CacheMaxDecode)
	if err != nil {
		_ = prov.Close(ctx)
		return nil, err
	}

	var gens genstore.GenStore
	if cfg.GenStore == "redis" {
		gens, err = genstore.NewRedisGenStore(genstore.RedisConfig{Client: a.rdb, Namespace: cfg.CacheNamespace})
		if err != nil {
			_ = prov.Close(ctx)
			return nil, err
		}
	} else if cfg.CacheProvider == "redis" {
		log.Warn("local generations with a shared cache; run one replica or set GEN_STORE=redis", nil)
	}

	cache, err := reccache.NewCache(reccache.CacheOptions{
		Namespace: cfg.CacheNamespace,
		Provider:  prov,
		Codec:     rc,
		GenStore:  gens,
		Logger:    log,
		Hooks:     hooks,
		TTL:       cfg.CacheTTL,
	})
	if err != nil {
		_ = prov.Close(ctx)
		return nil, err
	}
	return cache, nil
}
