package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiostudio/conductor/internal/application/health"
	"github.com/audiostudio/conductor/internal/application/orchestrator"
	"github.com/audiostudio/conductor/internal/catalog"
	"github.com/audiostudio/conductor/internal/config"
	"github.com/audiostudio/conductor/internal/history"
	"github.com/audiostudio/conductor/internal/pipeline"
	eventsmemory "github.com/audiostudio/conductor/pkg/adapters/events/memory"
	eventsredis "github.com/audiostudio/conductor/pkg/adapters/events/redis"
	"github.com/audiostudio/conductor/pkg/adapters/metrics/prometheus"
	persistmemory "github.com/audiostudio/conductor/pkg/adapters/persistence/memory"
	persistredis "github.com/audiostudio/conductor/pkg/adapters/persistence/redis"
	"github.com/audiostudio/conductor/pkg/adapters/processing/pyannote"
	"github.com/audiostudio/conductor/pkg/api/http"
	"github.com/audiostudio/conductor/pkg/api/websocket"
	"github.com/audiostudio/conductor/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting conductor",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize backend adapters
	var (
		redisClient *goredis.Client
		eventBus    ports.EventBus
		persistence ports.Persistence
	)
	if cfg.Backend == "redis" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		ctx := context.Background()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		eventBus = eventsredis.NewStreamsBus(
			redisClient,
			"conductor-clients",
			fmt.Sprintf("conductor-%d", os.Getpid()),
			logger,
		)
		persistence = persistredis.NewGateway(redisClient, cfg.Redis.RecordTTL, logger)
	} else {
		eventBus = eventsmemory.NewBus(0)
		persistence = persistmemory.NewGateway()
		logger.Info("using in-memory backend")
	}

	processing, err := pyannote.NewClient(pyannote.Config{
		BaseURL:    cfg.Pyannote.BaseURL,
		APIKey:     cfg.Pyannote.APIKey,
		Timeout:    cfg.Pyannote.Timeout,
		MediaSpace: cfg.Pyannote.MediaSpace,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create pyannote client", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize application components
	moduleCatalog := catalog.Builtin()
	store := pipeline.NewStore(moduleCatalog, "Untitled pipeline")
	historyStore := history.NewStore()
	validator := orchestrator.NewValidator()
	recorder := orchestrator.NewRecorder(store, eventBus, persistence, metricsCollector, logger)

	orch := orchestrator.New(
		store,
		processing,
		persistence,
		historyStore,
		recorder,
		validator,
		metricsCollector,
		logger,
		orchestrator.Config{
			Mode:         orchestrator.ExecutionMode(cfg.Execution.Mode),
			PollInterval: cfg.Execution.PollInterval,
			MaxWait:      cfg.Execution.MaxWait,
			GraceDelay:   cfg.Execution.GraceDelay,
			FailureMode:  failureMode(cfg.Execution.FailureMode),
		},
	)

	monitor := health.NewMonitor(processing, cfg.Execution.HealthCheckInterval, logger)
	monitor.Start()

	// Initialize API server
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Store:        store,
		Orchestrator: orch,
		Catalog:      moduleCatalog,
		History:      historyStore,
		Processing:   processing,
		Persistence:  persistence,
		Events:       eventBus,
		Monitor:      monitor,
		Logger:       logger,
	})

	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("conductor started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("backend", cfg.Backend),
		zap.String("execution_mode", cfg.Execution.Mode))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	orch.StopExecution(shutdownCtx)
	monitor.Stop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("conductor shut down complete")
}

// failureMode maps the config value onto the store's projection mode.
func failureMode(v string) pipeline.FailureMode {
	if v == "module" {
		return pipeline.FailureModePerModule
	}
	return pipeline.FailureModePipelineWide
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
