package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "evsync/backend/libs/db"
	libredis "evsync/backend/libs/redis"
	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/config"
	httpserver "evsync/backend/services/sync-agent/internal/http"
	"evsync/backend/services/sync-agent/internal/http/handlers"
	"evsync/backend/services/sync-agent/internal/http/middleware"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/metrics"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/translator"
)

const wsWriteTimeout = 10 * time.Second

// App wires sync agent dependencies.
type App struct {
	Stations     *repository.Stations
	Reservations *repository.Reservations
	Sessions     *repository.OperatorSessions
	Users        *repository.Users

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	version  string
	closers  []func() error
}

// New constructs application graph on the configured cache backend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, version string) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger, registry: registry, version: version}
	backend, err := a.openBackend(cfg)
	if err != nil {
		return nil, err
	}

	stationStore, err := openStore[models.Station](ctx, backend, cache.FamilyStations)
	if err != nil {
		a.Close()
		return nil, err
	}
	reservationStore, err := openStore[models.Reservation](ctx, backend, cache.FamilyReservations)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessionStore, err := openStore[models.OperatorSession](ctx, backend, cache.FamilyOperatorSession)
	if err != nil {
		a.Close()
		return nil, err
	}
	userStore, err := openStore[models.User](ctx, backend, cache.FamilyUsers)
	if err != nil {
		a.Close()
		return nil, err
	}

	httpClient := clients.NewDefaultHTTPClient(cfg.RemoteTimeout(), cfg.Remote.Token)
	deps := repository.Deps{
		Remote:     clients.NewBookingAPI(cfg.Remote.BaseURL, httpClient),
		Translator: translator.New(loc),
		Logger:     logger,
		Metrics:    recorder,
	}
	a.Stations = repository.NewStations(deps, stationStore)
	a.Reservations = repository.NewReservations(deps, reservationStore)
	a.Sessions = repository.NewOperatorSessions(deps, sessionStore, reservationStore)
	a.Users = repository.NewUsers(deps, userStore)

	logger.Info("sync agent ready",
		zap.String("cache", cfg.Cache.Driver),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("time_zone", loc.String()),
	)
	return a, nil
}

// backend is the opened cache connection shared by every entity family.
type backend struct {
	driver  string
	db      *sql.DB
	dialect cache.Dialect
	redis   *goredis.Client
	prefix  string
	logger  *zap.Logger
}

func (a *App) openBackend(cfg *config.Config) (backend, error) {
	b := backend{driver: cfg.Cache.Driver, logger: a.logger.Named("cache")}
	switch cfg.Cache.Driver {
	case config.DriverMemory:
	case config.DriverSQLite:
		db, err := libdb.NewSQLiteDB(cfg.Cache.SQLite.Path)
		if err != nil {
			return b, fmt.Errorf("open sqlite cache: %w", err)
		}
		b.db, b.dialect = db, cache.DialectSQLite
		a.closers = append(a.closers, db.Close)
	case config.DriverPostgres:
		db, err := libdb.NewPostgresDB(cfg.Cache.Postgres.DSN)
		if err != nil {
			return b, fmt.Errorf("open postgres cache: %w", err)
		}
		b.db, b.dialect = db, cache.DialectPostgres
		a.closers = append(a.closers, db.Close)
	case config.DriverRedis:
		client, err := libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return b, fmt.Errorf("open redis cache: %w", err)
		}
		b.redis, b.prefix = client, cfg.Cache.Redis.Prefix
		a.closers = append(a.closers, client.Close)
	default:
		return b, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
	return b, nil
}

func openStore[T cache.Entity](ctx context.Context, b backend, family string) (cache.Store[T], error) {
	switch b.driver {
	case config.DriverSQLite, config.DriverPostgres:
		store, err := cache.NewSQLStore[T](b.db, b.dialect, family, b.logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate %s cache: %w", family, err)
		}
		return store, nil
	case config.DriverRedis:
		store, err := cache.NewRedisStore[T](b.redis, b.prefix, family, b.logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return cache.NewMemoryStore[T](family, b.logger), nil
	}
}

// Handler builds the agent HTTP surface.
func (a *App) Handler() http.Handler {
	logger := a.logger.Named("http")
	remember := middleware.RememberFunc(func(ctx context.Context, id identity.Identity) error {
		_, err := a.Users.Remember(ctx, id)
		return err
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		StationsHandlers: handlers.NewStationsHandlers(a.Stations, logger),
		BookingsHandlers: handlers.NewBookingsHandlers(a.Reservations, logger),
		SessionsHandlers: handlers.NewSessionsHandlers(a.Sessions, logger),
		WatchHandler:     handlers.NewWatchHandler(a.Reservations, wsWriteTimeout, logger),
		HealthHandler:    handlers.NewHealthHandler(a.version, time.Now()),
		MetricsHandler:   promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
	}, middleware.AuthMiddleware(a.cfg.JWT.Secret, remember, logger))

	return middleware.Chain(router,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
}

// Run starts serving HTTP traffic until ctx ends.
func (a *App) Run(ctx context.Context) error {
	server := httpserver.NewServer(a.cfg.HTTPAddress(), a.Handler(), a.logger)
	return server.Run(ctx)
}

// Close releases cache connections.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("close failed", zap.Error(err))
	}
}
