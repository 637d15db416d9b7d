package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/api/handler"
	"github.com/cuongbtq/labor-dispatch/internal/api/router"
	"github.com/cuongbtq/labor-dispatch/internal/config"
	"github.com/cuongbtq/labor-dispatch/internal/dispatch"
	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/events"
	"github.com/cuongbtq/labor-dispatch/internal/realtime"
	"github.com/cuongbtq/labor-dispatch/internal/sobriety"
	"github.com/cuongbtq/labor-dispatch/internal/storage/memory"
	"github.com/cuongbtq/labor-dispatch/internal/storage/postgres"
	"github.com/cuongbtq/labor-dispatch/internal/vision"
	"github.com/cuongbtq/labor-dispatch/internal/wallet"
	"github.com/cuongbtq/labor-dispatch/internal/worker"
	"github.com/cuongbtq/labor-dispatch/shared/logger"
	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/cuongbtq/labor-dispatch/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// stores groups the persistence backends selected by storage.driver
type stores struct {
	jobs     dispatch.JobStore
	profiles interface {
		dispatch.ProfileStore
		handler.ProfileStore
	}
	checks    sobriety.RecordStore
	payments  wallet.PaymentStore
	unsettled worker.UnsettledSource
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]router.HealthCheck{}

	var st stores
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		dbClient, err := initPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbClient.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, dbClient, appLogger.Logger); err != nil {
				return err
			}
		}

		jobStore := postgres.NewJobStore(dbClient, appLogger.Logger)
		st = stores{
			jobs:      jobStore,
			profiles:  postgres.NewProfileStore(dbClient, appLogger.Logger),
			checks:    postgres.NewSobrietyStore(dbClient, appLogger.Logger),
			payments:  postgres.NewPaymentStore(dbClient, appLogger.Logger),
			unsettled: jobStore,
		}
		healthChecks["database"] = dbClient.HealthCheck
	default:
		appLogger.Warn("Using in-memory storage; state is lost on restart")
		jobStore := memory.NewJobStore()
		paymentStore := memory.NewPaymentStore()
		st = stores{
			jobs:      jobStore,
			profiles:  memory.NewProfileStore(),
			checks:    memory.NewSobrietyStore(),
			payments:  paymentStore,
			unsettled: memory.NewUnsettled(jobStore, paymentStore),
		}
	}

	if err := seedLaborers(ctx, st.profiles, cfg.Storage.SeedLaborers); err != nil {
		return err
	}

	ledger := wallet.NewLedger(&wallet.Config{
		Store:              st.payments,
		Logger:             appLogger.Logger,
		PlatformFeePercent: cfg.Wallet.PlatformFeePercent,
		MinWithdrawal:      cfg.Wallet.MinWithdrawal,
	})

	var publisher dispatch.CompletionPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		publisher = events.NewAMQPPublisher(rabbitClient, cfg.RabbitMQ.RoutingKey)
		healthChecks["rabbitmq"] = rabbitClient.HealthCheck
	} else {
		appLogger.Info("RabbitMQ disabled; completed jobs are settled in-process")
		publisher = events.NewDirectSettler(ledger, appLogger.Logger)
	}

	gate := sobriety.NewGate(&sobriety.Config{
		Store:           st.checks,
		Analyzer:        initAnalyzer(&cfg.Vision, appLogger.Logger),
		Logger:          appLogger.Logger,
		Cooldown:        cfg.Sobriety.Cooldown,
		AnalysisTimeout: cfg.Sobriety.AnalysisTimeout,
		Validity:        cfg.Sobriety.Validity,
	})

	var clearance dispatch.Clearance
	if cfg.Sobriety.RequireForStart {
		clearance = gate
	}

	registry := realtime.NewRegistry(appLogger.Logger)
	notifier := dispatch.NewNotifier(&dispatch.NotifierConfig{
		Pusher:      registry,
		Logger:      appLogger.Logger,
		TrackOffers: cfg.Dispatch.NotifyJobTaken,
		OfferTTL:    cfg.Dispatch.OfferTTL,
	})

	deps := &handler.Dependencies{
		Logger: appLogger.Logger,
		Jobs:   dispatch.NewService(st.jobs, dispatch.NewMatcher(st.profiles), notifier, appLogger.Logger),
		Arbiter: dispatch.NewArbiter(&dispatch.ArbiterConfig{
			Jobs:      st.jobs,
			Profiles:  st.profiles,
			Clearance: clearance,
			Publisher: publisher,
			Notifier:  notifier,
			Logger:    appLogger.Logger,
		}),
		Profiles: st.profiles,
		Gate:     gate,
		Ledger:   ledger,
		Registry: registry,
		WebSocket: handler.WebSocketConfig{
			PingInterval:    cfg.WebSocket.PingInterval,
			PongWait:        cfg.WebSocket.PongWait,
			WriteTimeout:    cfg.WebSocket.WriteTimeout,
			RegisterTimeout: cfg.WebSocket.RegisterTimeout,
			ReadLimit:       cfg.WebSocket.ReadLimit,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
		},
		MaxImageBytes: cfg.Sobriety.MaxImageBytes,
	}

	r := initRouter(cfg, deps, healthChecks)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// with RabbitMQ enabled the worker service owns reconciliation
	if !cfg.RabbitMQ.Enabled && cfg.Worker.ReconcileInterval > 0 {
		reconciler := worker.NewReconciler(&worker.ReconcilerConfig{
			Logger:    appLogger.Logger,
			Source:    st.unsettled,
			Settler:   ledger,
			Interval:  cfg.Worker.ReconcileInterval,
			Grace:     cfg.Worker.ReconcileGrace,
			BatchSize: cfg.Worker.ReconcileBatch,
		})
		g.Go(func() error {
			reconciler.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown",
				slog.Any("error", err),
			)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(ctx, &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client used to publish completions
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// initAnalyzer returns the vision client, or a fixed answer when no
// endpoint is configured
func initAnalyzer(cfg *config.VisionConfig, logger *slog.Logger) sobriety.Analyzer {
	if cfg.Endpoint == "" {
		logger.Warn("No vision endpoint configured; every check gets the static response")
		return vision.Static{Output: cfg.StaticResponse}
	}
	return vision.NewClient(&vision.Config{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Prompt:   cfg.Prompt,
		Timeout:  cfg.Timeout,
	})
}

type profileSeeder interface {
	Upsert(ctx context.Context, p domain.LaborerProfile) error
	SetAvailability(ctx context.Context, laborerID string, availability domain.Availability) error
}

// seedLaborers registers the laborers declared in configuration
func seedLaborers(ctx context.Context, profiles profileSeeder, seeds []config.LaborerSeed) error {
	for _, seed := range seeds {
		if err := profiles.Upsert(ctx, domain.LaborerProfile{
			ID:     seed.ID,
			Name:   seed.Name,
			Skills: seed.Skills,
		}); err != nil {
			return fmt.Errorf("failed to seed laborer %s: %w", seed.ID, err)
		}
		if seed.Availability == "" {
			continue
		}
		availability := domain.Availability(seed.Availability)
		if !availability.Valid() {
			return fmt.Errorf("invalid availability %q for seeded laborer %s", seed.Availability, seed.ID)
		}
		if err := profiles.SetAvailability(ctx, seed.ID, availability); err != nil {
			return fmt.Errorf("failed to seed laborer %s: %w", seed.ID, err)
		}
	}
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies, checks map[string]router.HealthCheck) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, router.Options{
		ServiceName:    cfg.App.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthChecks:   checks,
	})
}
