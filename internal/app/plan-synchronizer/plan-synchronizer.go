package plansynchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/storeplan-sync/internal/cache"
	"github.com/magabrotheeeer/storeplan-sync/internal/config"
	"github.com/magabrotheeeer/storeplan-sync/internal/featureflag"
	grpcserver "github.com/magabrotheeeer/storeplan-sync/internal/grpc/server"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/health"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/jwt"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/observable"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/metrics"
	"github.com/magabrotheeeer/storeplan-sync/internal/migrations"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/planstate"
	"github.com/magabrotheeeer/storeplan-sync/internal/rabbitmq"
	"github.com/magabrotheeeer/storeplan-sync/internal/services/admin"
	"github.com/magabrotheeeer/storeplan-sync/internal/services/dispatcher"
	"github.com/magabrotheeeer/storeplan-sync/internal/services/session"
	"github.com/magabrotheeeer/storeplan-sync/internal/services/synchronizer"
	"github.com/magabrotheeeer/storeplan-sync/internal/storage/repository"
	"github.com/magabrotheeeer/storeplan-sync/internal/wpcom"
)

const (
	planStateTTL       = 7 * 24 * time.Hour
	healthPollInterval = 10 * time.Second
	shutdownTimeout    = 15 * time.Second
)

// App — приложение синхронизации тарифного плана.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	server     *http.Server
	db         *repository.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
	sync       *synchronizer.Service
	recorder   *session.Recorder
	dispatcher *dispatcher.Service
	health     *grpcserver.HealthServer
}

func waitForDB(ctx context.Context, dsn string, logger *slog.Logger) (*repository.Storage, error) {
	var lastErr error
	for range 10 {
		db, err := repository.New(ctx, dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("database is not ready, retrying", sl.Err(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, fmt.Errorf("database not ready after retries: %w", lastErr)
}

func planFetcher(cfg *config.Config, db *repository.Storage) synchronizer.PlanFetcher {
	if cfg.PlanSource == config.PlanSourceWPCom {
		return wpcom.FromConfig(cfg.WPCom)
	}
	return db
}

// New создаёт приложение: подключает хранилища и брокер, применяет миграции и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := waitForDB(ctx, cfg.StorageConnectionString, logger)
	if err != nil {
		return nil, err
	}
	version, err := migrations.Run(db.DB, cfg.MigrationsPath)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database schema is up to date", slog.Uint64("version", uint64(version)))
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	store := cache.NewReminderStore(cacheRedis)
	flags := featureflag.New(cacheRedis.Db, cfg.FeatureFlags, logger)
	recorder := session.NewRecorder(cacheRedis, planStateTTL, logger)

	sites := observable.New[*models.Site](nil)
	syncService := synchronizer.New(
		sites,
		planFetcher(cfg, db),
		store,
		flags,
		planstate.WPComChecker{},
		m,
		logger,
		synchronizer.WithNotificationTimeout(cfg.NotificationTimeout),
		synchronizer.WithOutcomeHook(recorder.Observe),
	)

	checks := map[string]health.Check{
		"postgres": db.DB.PingContext,
		"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Dependencies{
		Session:      session.New(db, sites, logger),
		Synchronizer: syncService,
		Admin:        admin.New(db, cacheRedis, flags, sites, syncService, logger),
		History:      recorder,
		Reminders:    store,
		Tokens:       jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Checks:       checks,
		Metrics:      promhttp.Handler(),
		RateLimit:    cfg.RateLimitRPS,
		RateBurst:    cfg.RateBurst,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	grpcChecks := make(map[string]grpcserver.Check, len(checks))
	for name, check := range checks {
		grpcChecks[name] = grpcserver.Check(check)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		server:     srv,
		db:         db,
		cache:      cacheRedis,
		conn:       conn,
		ch:         ch,
		sync:       syncService,
		recorder:   recorder,
		dispatcher: dispatcher.New(store, ch, m, logger, cfg.DispatchInterval, cfg.DispatchBatchSize),
		health:     grpcserver.NewHealthServer(grpcChecks, healthPollInterval, logger),
	}, nil
}

// Run запускает все компоненты и блокируется до отмены ctx или ошибки одного из них.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.GRPCHealthAddress)
	if err != nil {
		a.close()
		return fmt.Errorf("failed to listen grpc health: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	a.sync.Start(gctx)

	g.Go(func() error {
		a.recorder.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return a.health.Serve(gctx, lis)
	})
	g.Go(func() error {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})

	err = g.Wait()
	a.close()
	return err
}

func (a *App) close() {
	a.sync.Close()
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
