package main

// @title           Heka API
// @version         1.0
// @description     Health metrics sync and delivery. Heka pulls provider data, accepts device uploads and delivers normalised metrics to customer webhooks.

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Admin JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/auth"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors/fitbit"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors/googlefit"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors/strava"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/memory"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/notify"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/postgres"
	postgresqueue "github.com/Pulkit07/metric-health-backend/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/Pulkit07/metric-health-backend/internal/adapters/driven/queue/redis"
	redisadapter "github.com/Pulkit07/metric-health-backend/internal/adapters/driven/redis"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/webhook"
	"github.com/Pulkit07/metric-health-backend/internal/adapters/driving/http"
	"github.com/Pulkit07/metric-health-backend/internal/config"
	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/services"
	"github.com/Pulkit07/metric-health-backend/internal/normalisers"
	"github.com/Pulkit07/metric-health-backend/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.Load(getEnv("CONFIG_FILE", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Run mode from config (HEKA_RUNTIME__MODE) or command line arg
	mode := cfg.Runtime.Mode
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if mode == "token" {
		mintToken(cfg, logger)
		return
	}

	logger.Info("heka starting", "version", version, "mode", mode)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping")
		cancel()
	}()

	// ===== PostgreSQL =====
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		fatal(logger, "failed to initialize schema", err)
	}
	logger.Info("postgres connected and schema initialized")

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			fatal(logger, "failed to parse redis url", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fatal(logger, "failed to connect to redis", err)
		}
		defer redisClient.Close()
		logger.Info("redis connected")
	}

	// ===== PostgreSQL stores =====
	key, err := cfg.EncryptionKey()
	if err != nil {
		fatal(logger, "invalid encryption key", err)
	}
	var cipher *postgres.TokenCipher
	if key != nil {
		if cipher, err = postgres.NewTokenCipher(key); err != nil {
			fatal(logger, "failed to create token cipher", err)
		}
	} else {
		logger.Warn("auth.encryption_key not set, provider tokens are stored unencrypted")
	}

	accountStore := postgres.NewAccountStore(db)
	connectionStore := postgres.NewConnectionStore(db)
	linkStore := postgres.NewLinkStore(db, cipher)
	unprocessedStore := postgres.NewUnprocessedStore(db)
	metricStore := postgres.NewMetricStore(db)
	webhookLogStore := postgres.NewWebhookLogStore(db)
	healthDataStore := postgres.NewHealthDataStore(db)
	idempotencyStore := postgres.NewIdempotencyStore(db)
	schedulerStore := postgres.NewSchedulerStore(db)

	// ===== Task queue, locks and failure counters =====
	var (
		taskQueue driven.TaskQueue
		lock      driven.DistributedLock
		failures  driven.FailureCounter
		runtime   *domain.RuntimeConfig
	)
	switch {
	case redisClient != nil:
		taskQueue, err = redisqueue.NewQueue(redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			fatal(logger, "failed to create task queue", err)
		}
		lock = redisadapter.NewLock(redisClient)
		failures = redisadapter.NewFailureCounter(redisClient, cfg.Delivery.FailureTTL)
		runtime = domain.NewRuntimeConfig(mode, domain.BackendRedis, domain.BackendRedis, domain.BackendRedis)
	case mode == config.ModeAll:
		taskQueue = postgresqueue.NewQueue(db.DB)
		lock = memory.NewLock()
		failures = memory.NewFailureCounter(cfg.Delivery.FailureTTL)
		runtime = domain.NewRuntimeConfig(mode, domain.BackendPostgres, domain.BackendMemory, domain.BackendMemory)
	default:
		taskQueue = postgresqueue.NewQueue(db.DB)
		lock = postgres.NewLeaseLock(db)
		failures = memory.NewFailureCounter(cfg.Delivery.FailureTTL)
		runtime = domain.NewRuntimeConfig(mode, domain.BackendPostgres, domain.BackendPostgres, domain.BackendMemory)
	}
	if !runtime.SharedCounters() && mode != config.ModeAll {
		logger.Warn("no redis configured: webhook failure counts are per process", "mode", mode)
	}
	defer taskQueue.Close()

	// ===== Notifications =====
	var notifier driven.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notify.PubSubProject != "" {
		ps, err := notify.NewPubSubNotifier(ctx, cfg.Notify.PubSubProject, cfg.Notify.PubSubTopic, logger)
		if err != nil {
			logger.Error("pubsub unavailable, logging notifications instead", "error", err)
		} else {
			defer ps.Close()
			notifier = ps
			runtime.SetNotifierBackend(domain.BackendPubSub)
		}
	}

	logger.Info("runtime config",
		"queue", runtime.QueueBackend,
		"lock", runtime.LockBackend,
		"counter", runtime.CounterBackend,
		"notifier", runtime.NotifierBackend())

	// ===== Connectors =====
	registry := connectors.NewRegistry()
	tokens := auth.NewLinkTokenProvider(registry, linkStore, logger)

	googleFit := googlefit.New(googlefit.Config{
		ClientID:     cfg.Providers.GoogleFit.ClientID,
		ClientSecret: cfg.Providers.GoogleFit.ClientSecret,
		Timeout:      cfg.Providers.Timeout,
		Logger:       logger,
	})
	registry.Register(googleFit, googleFit)

	fitbitConnector := fitbit.New(fitbit.Config{
		ClientID:     cfg.Providers.Fitbit.ClientID,
		ClientSecret: cfg.Providers.Fitbit.ClientSecret,
		Timeout:      cfg.Providers.Timeout,
		Logger:       logger,
	})
	registry.Register(fitbitConnector, fitbitConnector)
	registry.RegisterHooks(domain.ProviderTypeFitbit, fitbit.NewHooks(fitbitConnector, tokens))

	stravaConnector := strava.New(strava.Config{
		ClientID:     cfg.Providers.Strava.ClientID,
		ClientSecret: cfg.Providers.Strava.ClientSecret,
		Timeout:      cfg.Providers.Timeout,
		Logger:       logger,
	})
	registry.Register(stravaConnector, stravaConnector)

	normaliserRegistry := normalisers.DefaultRegistry()

	// ===== Services =====
	delivery := services.NewDeliveryService(services.DeliveryServiceConfig{
		Accounts:         accountStore,
		Unprocessed:      unprocessedStore,
		Metrics:          metricStore,
		WebhookLogs:      webhookLogStore,
		HealthData:       healthDataStore,
		Sender:           webhook.NewSender(cfg.Delivery.Timeout, cfg.Delivery.SignatureHeader),
		Failures:         failures,
		Notifier:         notifier,
		ChunkSize:        cfg.Delivery.ChunkSize,
		FailureThreshold: cfg.Delivery.FailureThreshold,
		Logger:           logger,
	})

	guard := services.NewIdempotencyGuard(services.IdempotencyGuardConfig{
		Store:               idempotencyStore,
		WebhookLogs:         webhookLogStore,
		Retention:           cfg.Idempotency.Retention,
		WebhookLogRetention: cfg.Idempotency.WebhookLogRetention,
		Logger:              logger,
	})

	switch mode {
	case config.ModeAPI:
		runAPI(cfg, logger, apiDeps(cfg, logger, accountStore, connectionStore, linkStore, registry, guard, delivery, normaliserRegistry, taskQueue, db, redisClient, runtime))

	case config.ModeWorker:
		w, orchestrator := newWorker(cfg, logger, workerDeps{
			links: linkStore, connections: connectionStore, accounts: accountStore,
			unprocessed: unprocessedStore, scheduler: schedulerStore,
			registry: registry, tokens: tokens, normalisers: normaliserRegistry,
			delivery: delivery, guard: guard, lock: lock, queue: taskQueue,
		})
		defer orchestrator.Close()
		runWorker(ctx, logger, w)

	case config.ModeAll:
		w, orchestrator := newWorker(cfg, logger, workerDeps{
			links: linkStore, connections: connectionStore, accounts: accountStore,
			unprocessed: unprocessedStore, scheduler: schedulerStore,
			registry: registry, tokens: tokens, normalisers: normaliserRegistry,
			delivery: delivery, guard: guard, lock: lock, queue: taskQueue,
		})
		defer orchestrator.Close()
		go runWorker(ctx, logger, w)
		runAPI(cfg, logger, apiDeps(cfg, logger, accountStore, connectionStore, linkStore, registry, guard, delivery, normaliserRegistry, taskQueue, db, redisClient, runtime))

	default:
		fatal(logger, "unknown mode (use: api, worker, all or token)", fmt.Errorf("%q", mode))
	}
}

func apiDeps(
	cfg *config.Config,
	logger *slog.Logger,
	accounts driven.AccountStore,
	connections driven.ConnectionStore,
	links driven.LinkStore,
	registry driven.ConnectorRegistry,
	guard *services.IdempotencyGuard,
	delivery *services.DeliveryService,
	normaliserRegistry driven.NormaliserRegistry,
	taskQueue driven.TaskQueue,
	db *postgres.DB,
	redisClient *redis.Client,
	runtime *domain.RuntimeConfig,
) http.Deps {
	ingestion := services.NewIngestionService(services.IngestionServiceConfig{
		Accounts:               accounts,
		Connections:            connections,
		Links:                  links,
		Guard:                  guard,
		Delivery:               delivery,
		Normalisers:            normaliserRegistry,
		Queue:                  taskQueue,
		StravaVerifyToken:      cfg.Providers.Strava.VerifyToken,
		FitbitVerificationCode: cfg.Providers.Fitbit.VerificationCode,
		FitbitClientSecret:     cfg.Providers.Fitbit.ClientSecret,
		Logger:                 logger,
	})
	connectionService := services.NewConnectionService(services.ConnectionServiceConfig{
		Accounts:    accounts,
		Connections: connections,
		Links:       links,
		Registry:    registry,
		Queue:       taskQueue,
		Logger:      logger,
	})

	deps := http.Deps{
		Ingestion:   ingestion,
		Connections: connectionService,
		TaskQueue:   taskQueue,
		DB:          db,
		Runtime:     runtime,
		Logger:      logger,
	}
	if cfg.Auth.JWTSecret != "" {
		deps.Auth = auth.NewAdapter(cfg.Auth.JWTSecret)
	} else {
		logger.Warn("auth.jwt_secret not set, admin routes are disabled")
	}
	if redisClient != nil {
		deps.Redis = redisPinger{redisClient}
	}
	return deps
}

func runAPI(cfg *config.Config, logger *slog.Logger, deps http.Deps) {
	server := http.NewServer(http.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, deps)

	if err := server.Start(); err != nil {
		fatal(logger, "server error", err)
	}
}

type workerDeps struct {
	links       driven.LinkStore
	connections driven.ConnectionStore
	accounts    driven.AccountStore
	unprocessed driven.UnprocessedStore
	scheduler   driven.SchedulerStore
	registry    driven.ConnectorRegistry
	tokens      driven.TokenProvider
	normalisers driven.NormaliserRegistry
	delivery    *services.DeliveryService
	guard       *services.IdempotencyGuard
	lock        driven.DistributedLock
	queue       driven.TaskQueue
}

// newWorker also returns the orchestrator so its fan-out pool can be drained
// after the worker stops.
func newWorker(cfg *config.Config, logger *slog.Logger, d workerDeps) (*worker.Worker, *services.SyncOrchestrator) {
	orchestrator := services.NewSyncOrchestrator(services.SyncOrchestratorConfig{
		Links:         d.links,
		Connections:   d.connections,
		Accounts:      d.accounts,
		Registry:      d.registry,
		Tokens:        d.tokens,
		Normalisers:   d.normalisers,
		Delivery:      d.delivery,
		Lock:          d.lock,
		LockTTL:       cfg.Sync.LockTTL,
		FanoutSlice:   cfg.Sync.FanoutSlice,
		PoolSize:      cfg.Sync.PoolSize,
		PoolQueueSize: cfg.Sync.PoolQueueSize,
		Logger:        logger,
	})

	replay := services.NewReplayService(services.ReplayServiceConfig{
		Unprocessed:    d.unprocessed,
		Connections:    d.connections,
		Accounts:       d.accounts,
		Delivery:       d.delivery,
		Lock:           d.lock,
		LockTTL:        cfg.Replay.LockTTL,
		BatchSize:      cfg.Replay.BatchSize,
		MaxChunkPoints: cfg.Replay.MaxChunkPoints,
		Logger:         logger,
	})

	wcfg := worker.WorkerConfig{
		TaskQueue:      d.queue,
		Orchestrator:   orchestrator,
		Replay:         replay,
		Purge:          d.guard,
		Logger:         logger,
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
		TaskRetention:  cfg.Worker.TaskRetention,
	}

	if cfg.Scheduler.Enabled {
		scheduler := services.NewScheduler(services.SchedulerConfig{
			Store:        d.scheduler,
			TaskQueue:    d.queue,
			Lock:         d.lock,
			Logger:       logger,
			PollInterval: cfg.Scheduler.PollInterval,
		})
		if err := scheduler.Seed(context.Background(), domain.DefaultSchedulerConfig(cfg.ScheduleIntervals())); err != nil {
			logger.Error("failed to seed schedules", "error", err)
		}
		wcfg.Scheduler = scheduler
	} else {
		logger.Info("scheduler disabled")
	}

	return worker.NewWorker(wcfg), orchestrator
}

// runWorker starts the worker and blocks until ctx is cancelled.
func runWorker(ctx context.Context, logger *slog.Logger, w *worker.Worker) {
	if err := w.Start(ctx); err != nil {
		fatal(logger, "failed to start worker", err)
	}
	logger.Info("worker started",
		"handles", []domain.TaskType{
			domain.TaskTypeSyncLink,
			domain.TaskTypeSyncProvider,
			domain.TaskTypeReplayUnprocessed,
			domain.TaskTypePurgeIdempotency,
		})

	<-ctx.Done()

	logger.Info("stopping worker")
	w.Stop()
	logger.Info("worker stopped")
}

// mintToken prints an admin bearer token for the subject in os.Args[2].
func mintToken(cfg *config.Config, logger *slog.Logger) {
	if cfg.Auth.JWTSecret == "" {
		fatal(logger, "cannot mint token", fmt.Errorf("auth.jwt_secret is not set"))
	}
	subject := "admin"
	if len(os.Args) > 2 {
		subject = os.Args[2]
	}
	token, err := auth.NewAdapter(cfg.Auth.JWTSecret).GenerateToken(domain.NewAdminClaims(subject, domain.DefaultAdminTokenTTL))
	if err != nil {
		fatal(logger, "failed to mint token", err)
	}
	fmt.Println(token)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
