package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/bimhub/bimhub/internal/api"
	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/internal/telemetry"
	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/config"
	"github.com/bimhub/bimhub/pkg/content"
	contentfs "github.com/bimhub/bimhub/pkg/content/fs"
	"github.com/bimhub/bimhub/pkg/content/memory"
	contents3 "github.com/bimhub/bimhub/pkg/content/s3"
	"github.com/bimhub/bimhub/pkg/metrics"
	"github.com/bimhub/bimhub/pkg/oauth"
	"github.com/bimhub/bimhub/pkg/processing"
	"github.com/bimhub/bimhub/pkg/processing/ifc"
	"github.com/bimhub/bimhub/pkg/store"
	"github.com/bimhub/bimhub/pkg/upload"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BimHub server",
	Long: `Start the BimHub API server and the background conversion workers.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/bimhub/config.yaml.

Examples:
  # Start with the default config location
  bimhub serve

  # Start with a custom config file
  bimhub serve --config /etc/bimhub/config.yaml

  # Start with environment variable overrides
  BIMHUB_LOGGING_LEVEL=DEBUG bimhub serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "bimhub",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "bimhub",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()

	contentStore, err := buildContentStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}
	logger.Info("Content store initialized", "type", cfg.Content.Type)

	queue, ledger, badgerDB, err := buildQueue(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize job queue: %w", err)
	}
	if badgerDB != nil {
		defer func() {
			if err := badgerDB.Close(); err != nil {
				logger.Error("queue database close error", "error", err)
			}
		}()
	}

	var (
		httpMetrics   *metrics.HTTPMetrics
		procMetrics   *processing.Metrics
		metricsServer *metrics.Server
	)
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		httpMetrics = metrics.NewHTTPMetrics(reg)
		procMetrics = processing.NewMetrics(reg, queue)
		metricsServer = metrics.NewServer(cfg.Metrics.Port, metrics.Handler(reg))
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	notifier := processing.NewLogNotifier(logger.With("component", "processing"))

	registry := processing.NewRegistry()
	orchestrator := ifc.NewOrchestrator(ifc.OrchestratorConfig{
		Store:    st,
		Content:  contentStore,
		Provider: string(cfg.Content.Type),
		Engine:   ifc.NewStubEngine(),
		Notifier: notifier,
		Logger:   logger.With("component", "ifc"),
	})
	orchestrator.Register(registry)

	pool := processing.NewWorkerPool(processing.WorkerConfig{
		Queue:      queue,
		Ledger:     ledger,
		Registry:   registry,
		Notifier:   notifier,
		Metrics:    procMetrics,
		Workers:    cfg.Processing.Workers,
		JobTimeout: cfg.Processing.JobTimeout,
		Logger:     logger.With("component", "workers"),
	})
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	logger.Info("Worker pool started", "workers", cfg.Processing.Workers)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               cfg.Auth.Issuer,
		Audience:             cfg.Auth.Audience,
		AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
		RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
		PATDuration:          cfg.Auth.PATDuration,
		AuthCodeDuration:     cfg.Auth.AuthCodeDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token signing: %w", err)
	}
	tokens := auth.NewTokenService(jwtService, st)

	coordinator := upload.New(upload.Config{
		Store:      st,
		Content:    contentStore,
		Provider:   string(cfg.Content.Type),
		SessionTTL: cfg.Upload.SessionTTL,
		Logger:     logger.With("component", "upload"),
	})
	sweeper := upload.NewSweeper(coordinator, cfg.Upload.SweepInterval, logger.With("component", "upload-sweeper"))
	go sweeper.Run(ctx)

	deps := api.Deps{
		Store:          st,
		Content:        contentStore,
		Tokens:         tokens,
		OAuth:          oauth.NewService(st, tokens),
		Checker:        authz.NewChecker(st),
		Uploads:        coordinator,
		Queue:          queue,
		HTTPMetrics:    httpMetrics,
		MaxUploadBytes: int64(cfg.Upload.MaxSize),
		DevMode:        cfg.Auth.DevMode,
	}
	apiServer := api.NewServer(cfg.API, deps)
	logger.Info("API server configured", "port", cfg.API.Port)
	if cfg.Auth.DevMode {
		logger.Warn("Dev mode enabled: unauthenticated token minting is exposed")
	}

	// Pick up logging changes without a restart.
	if GetConfigFile() != "" || config.DefaultConfigExists() {
		watchPath := GetConfigFile()
		if watchPath == "" {
			watchPath = config.GetDefaultConfigPath()
		}
		go func() {
			if err := config.Watch(ctx, watchPath, func(updated *config.Config) {
				logger.SetLevel(updated.Logging.Level)
				logger.SetFormat(updated.Logging.Format)
			}); err != nil {
				logger.Warn("config watch disabled", "error", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			runErr = err
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil {
			logger.Error("Server error", "error", err)
			runErr = err
		}
	}

	// Drain in-flight jobs before the queue and stores go away.
	if err := pool.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}
	if err := queue.Close(); err != nil {
		logger.Error("queue close error", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// buildContentStore creates the configured content store backend.
func buildContentStore(ctx context.Context, cfg *config.Config) (content.Store, error) {
	switch cfg.Content.Type {
	case config.ContentStoreFS, "":
		return contentfs.New(contentfs.DefaultConfig(cfg.Content.FS.Path))

	case config.ContentStoreS3:
		client, err := contents3.NewClientFromConfig(
			ctx,
			cfg.Content.S3.Endpoint,
			cfg.Content.S3.Region,
			cfg.Content.S3.AccessKeyID,
			cfg.Content.S3.SecretAccessKey,
			cfg.Content.S3.ForcePathStyle,
		)
		if err != nil {
			return nil, err
		}
		return contents3.New(ctx, contents3.Config{
			Client:    client,
			Bucket:    cfg.Content.S3.Bucket,
			KeyPrefix: cfg.Content.S3.KeyPrefix,
		})

	case config.ContentStoreMemory:
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown content store type: %s", cfg.Content.Type)
	}
}

// buildQueue creates the configured queue backend and its idempotency
// ledger. The returned badger handle is non-nil only for the badger
// backend; the caller owns closing it after the queue.
func buildQueue(cfg *config.Config) (processing.Queue, processing.Ledger, *badger.DB, error) {
	switch cfg.Processing.Queue.Type {
	case config.QueueTypeMemory, "":
		return processing.NewMemoryQueue(), processing.NewMemoryLedger(), nil, nil

	case config.QueueTypeBounded:
		return processing.NewBoundedQueue(cfg.Processing.Queue.Capacity), processing.NewMemoryLedger(), nil, nil

	case config.QueueTypeBadger:
		db, err := processing.OpenDB(cfg.Processing.Queue.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		queue, err := processing.NewBadgerQueue(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return queue, processing.NewBadgerLedger(db), db, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown queue type: %s", cfg.Processing.Queue.Type)
	}
}
