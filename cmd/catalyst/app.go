package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/timour/catalyst/pkg/api"
	"github.com/timour/catalyst/pkg/config"
	"github.com/timour/catalyst/pkg/eventbus"
	"github.com/timour/catalyst/pkg/handlers"
	"github.com/timour/catalyst/pkg/llm"
	"github.com/timour/catalyst/pkg/logging"
	"github.com/timour/catalyst/pkg/metrics"
	"github.com/timour/catalyst/pkg/orchestrator"
	"github.com/timour/catalyst/pkg/sandbox"
	"github.com/timour/catalyst/pkg/store"
	"github.com/timour/catalyst/pkg/tracing"
	"github.com/timour/catalyst/pkg/worker"
)

// App is catalyst's composition root: it owns every long-lived dependency
// and the two servers (REST API, worker manager) built on top of them.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pgStore     *store.PostgresStore
	taskCache   *store.TaskCache
	cachedStore *store.CachedStore

	brokerConn *eventBusConn

	sandboxRuntime sandbox.ContainerRuntime
	sandboxExec    *sandbox.Executor

	llmClient llm.Client

	deps         *handlers.Deps
	orchestrator *orchestrator.Orchestrator
	workerMgr    *worker.Manager

	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// eventBusConn bundles the broker connection/channel/publisher together so
// App can close them in the right order on shutdown.
type eventBusConn struct {
	ch        *amqp.Channel
	publisher *eventbus.Publisher
	close     func() error
}

// NewApp builds every dependency but starts nothing; call Start to run.
func NewApp(cfg *config.Config) (*App, error) {
	_ = godotenv.Load() // optional local .env; absence is not an error

	logger := logging.New("catalyst", cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting catalyst", slog.String("mode", string(cfg.Mode)))

	tracerShutdown, err := tracing.InitTracer("catalyst", cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgStore, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	if err := store.ApplyMigrations(pgStore.DB()); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	taskCache, err := store.NewTaskCache(cfg.RedisURL, 5*time.Minute, logger)
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}
	cachedStore := store.NewCachedStore(pgStore, taskCache)

	busMetrics := metrics.NewBusMetrics("catalyst")
	httpMetrics := metrics.NewHTTPMetrics("catalyst")
	sandboxMetrics := metrics.NewSandboxMetrics("catalyst")

	var seen handlers.EventSeenChecker = handlers.NoopSeenChecker{}
	if cfg.AuditDedupeEnabled {
		seen = &handlers.AuditSeenChecker{Store: pgStore}
	}

	var llmClient llm.Client
	if cfg.LLMProvider != "" {
		llmClient = llm.NewHTTPClient(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel)
	} else {
		llmClient = &llm.StubClient{Response: "no LLM provider configured"}
	}

	var sandboxRuntime sandbox.ContainerRuntime
	if rt, err := sandbox.NewContainerdRuntime(cfg.ContainerdAddress); err != nil {
		logger.Warn("containerd unavailable, sandbox execution will fail until it is", slog.Any("error", err))
	} else {
		sandboxRuntime = rt
	}
	sandboxExec := sandbox.NewExecutor(
		sandboxRuntime,
		cfg.SandboxImage,
		sandbox.Resources{CPUQuota: cfg.SandboxCPUQuota, MemoryLimit: cfg.SandboxMemoryLimit},
		time.Duration(cfg.SandboxDefaultTimeout)*time.Second,
		sandboxMetrics,
	)

	app := &App{
		cfg:            cfg,
		logger:         logger,
		pgStore:        pgStore,
		taskCache:      taskCache,
		cachedStore:    cachedStore,
		sandboxRuntime: sandboxRuntime,
		sandboxExec:    sandboxExec,
		llmClient:      llmClient,
		tracerShutdown: tracerShutdown,
	}

	if cfg.Mode == config.ModeEventDriven {
		if err := app.connectBroker(busMetrics); err != nil {
			return nil, err
		}
	}

	deps := &handlers.Deps{
		Store:         cachedStore,
		LLM:           llmClient,
		Sandbox:       sandboxExec,
		Logger:        logger,
		Seen:          seen,
		LLMConfigured: cfg.LLMProvider != "" && cfg.LLMAPIKey != "",
	}
	if app.brokerConn != nil {
		deps.Publisher = app.brokerConn.publisher
	}
	app.deps = deps

	app.orchestrator = orchestrator.New(cfg.Mode, deps, logger)

	if cfg.Mode == config.ModeEventDriven {
		app.workerMgr = buildWorkerManager(app.brokerConn, cfg, deps, busMetrics, logger)
	}

	apiServer := api.NewServer(app.orchestrator, deps, httpMetrics, logger)
	app.httpServer = &http.Server{Addr: cfg.HTTPAddr, Handler: apiServer.Engine()}

	return app, nil
}

// Start runs the worker manager (if event-driven) and blocks serving HTTP
// until the server stops.
func (a *App) Start(ctx context.Context) error {
	if a.workerMgr != nil {
		a.workerMgr.StartAll(ctx)
	}

	a.logger.Info("http server listening", slog.String("addr", a.cfg.HTTPAddr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the worker manager, stops the HTTP server, and closes
// every dependency connection, in the order that avoids publishing to or
// querying something already closed.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.workerMgr != nil {
		a.workerMgr.StopAll()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.Any("error", err))
	}

	if a.brokerConn != nil {
		if err := a.brokerConn.close(); err != nil {
			a.logger.Error("broker close error", slog.Any("error", err))
		}
	}

	if a.sandboxRuntime != nil {
		if err := a.sandboxRuntime.Close(); err != nil {
			a.logger.Error("sandbox runtime close error", slog.Any("error", err))
		}
	}

	if err := a.taskCache.Close(); err != nil {
		a.logger.Error("cache close error", slog.Any("error", err))
	}
	if err := a.pgStore.Close(); err != nil {
		a.logger.Error("store close error", slog.Any("error", err))
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.Any("error", err))
		}
	}

	return nil
}
