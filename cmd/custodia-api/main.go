package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/veritaslaw/custodia/config"
	alertrepo "github.com/veritaslaw/custodia/internal/repositories/alert"
	attachmentrepo "github.com/veritaslaw/custodia/internal/repositories/attachment"
	deadlinerepo "github.com/veritaslaw/custodia/internal/repositories/deadline"
	filerepo "github.com/veritaslaw/custodia/internal/repositories/file"
	movementrepo "github.com/veritaslaw/custodia/internal/repositories/movement"
	userrepo "github.com/veritaslaw/custodia/internal/repositories/user"
	"github.com/veritaslaw/custodia/pkg/alerts"
	"github.com/veritaslaw/custodia/pkg/bottleneck"
	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/deadlines"
	"github.com/veritaslaw/custodia/pkg/events"
	"github.com/veritaslaw/custodia/pkg/kafka"
	"github.com/veritaslaw/custodia/pkg/ledger"
	"github.com/veritaslaw/custodia/pkg/middleware"
	"github.com/veritaslaw/custodia/pkg/redis"
	alertroutes "github.com/veritaslaw/custodia/pkg/routes/alert"
	bottleneckroutes "github.com/veritaslaw/custodia/pkg/routes/bottleneck"
	deadlineroutes "github.com/veritaslaw/custodia/pkg/routes/deadline"
	fileroutes "github.com/veritaslaw/custodia/pkg/routes/file"
	"github.com/veritaslaw/custodia/pkg/routes/health"
	movementroutes "github.com/veritaslaw/custodia/pkg/routes/movement"
	"github.com/veritaslaw/custodia/pkg/scheduler"
	"github.com/veritaslaw/custodia/pkg/startup"
	"github.com/veritaslaw/custodia/pkg/tracing"
	"github.com/veritaslaw/custodia/pkg/tracing/exporters"
)

// schedulerDependency adapts the alert scheduler to the startup graph.
type schedulerDependency struct {
	sched *scheduler.Scheduler
}

func (d *schedulerDependency) GetName() string                 { return "alert-scheduler" }
func (d *schedulerDependency) DependsOn() []string             { return nil }
func (d *schedulerDependency) Start(ctx context.Context) error { return d.sched.Start(ctx) }
func (d *schedulerDependency) Stop(ctx context.Context) error  { return d.sched.Stop(ctx) }

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to create tracer provider")
		os.Exit(1)
	}
	otel.SetTracerProvider(tp)
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	db, err := connectDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	dbInstance := database.NewDatabaseInstance(db, logger)
	dbInstance.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	dbInstance.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	dbInstance.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	emitter := events.NewEmitter(producer, logger)

	users := userrepo.NewRepository(dbInstance, logger)
	files := filerepo.NewRepository(dbInstance, logger)
	movements := movementrepo.NewRepository(dbInstance, logger)
	deadlineRepo := deadlinerepo.NewRepository(dbInstance, logger)
	alertRepo := alertrepo.NewRepository(dbInstance, logger)
	attachments := attachmentrepo.NewRepository(dbInstance, logger)

	ledgerService := ledger.NewService(dbInstance, files, movements, users, emitter, logger)
	deadlineService := deadlines.NewService(deadlineRepo, files, emitter, logger)
	analyzer := bottleneck.NewAnalyzer(files, movements, logger)
	alertService := alerts.NewService(alertRepo, logger)
	engine := alerts.NewEngine(deadlineRepo, files, movements, users, alertRepo, analyzer, emitter, alerts.Config{
		BottleneckThresholdDays: cfg.BottleneckThresholdDays,
		CriticalHeldDays:        cfg.CriticalHeldDays,
		AckGrace:                time.Duration(cfg.AckGraceHours) * time.Hour,
	}, logger)

	locker := redis.NewLocker(redisClient, "")
	sched := scheduler.NewScheduler(engine, locker, scheduler.Config{
		ScanInterval: time.Duration(cfg.AlertScanIntervalSeconds) * time.Second,
		LockTTL:      time.Duration(cfg.AlertScanLockTTLSeconds) * time.Second,
	}, logger)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}
	mustRegister(logger, ectoinject.RegisterInstance[ectologger.Logger](container, logger))
	mustRegister(logger, ectoinject.RegisterInstance[database.DB](container, dbInstance))
	mustRegister(logger, ectoinject.RegisterInstance[*userrepo.Repository](container, users))
	mustRegister(logger, ectoinject.RegisterInstance[*filerepo.Repository](container, files))
	mustRegister(logger, ectoinject.RegisterInstance[*movementrepo.Repository](container, movements))
	mustRegister(logger, ectoinject.RegisterInstance[*deadlinerepo.Repository](container, deadlineRepo))
	mustRegister(logger, ectoinject.RegisterInstance[*alertrepo.Repository](container, alertRepo))
	mustRegister(logger, ectoinject.RegisterInstance[*attachmentrepo.Repository](container, attachments))
	mustRegister(logger, ectoinject.RegisterInstance[*ledger.Service](container, ledgerService))
	mustRegister(logger, ectoinject.RegisterInstance[*deadlines.Service](container, deadlineService))
	mustRegister(logger, ectoinject.RegisterInstance[*bottleneck.Analyzer](container, analyzer))
	mustRegister(logger, ectoinject.RegisterInstance[*alerts.Service](container, alertService))
	mustRegister(logger, ectoinject.RegisterInstance[*alerts.Engine](container, engine))

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(dbInstance, redisClient, cfg.Version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.Use(middleware.Actor(users))
	fileroutes.Register(api.Group("/files"))
	movementroutes.Register(api.Group("/movements"))
	deadlineroutes.Register(api.Group("/deadlines"))
	alertroutes.Register(api.Group("/alerts"))
	bottleneckroutes.Register(api.Group("/bottlenecks"))

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	if cfg.AlertSchedulerEnabled {
		boot.AddDependency(&schedulerDependency{sched: sched})
	}
	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	checker.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Startup dependencies did not stop cleanly")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not stop cleanly")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Tracer provider did not stop cleanly")
	}

	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func connectDatabase(cfg *config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)

	db, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}

	logger.Infof("Connected to database %s at %s:%s", cfg.DatabaseName, cfg.DatabaseHost, cfg.DatabasePort)
	return db, nil
}

func runMigrations(cfg *config.Config, db *sqlx.DB, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return migrationService.Migrate(cfg.DatabaseName, driver)
}

// newTracerProvider returns a batching provider exporting over OTLP when
// tracing is enabled, otherwise a provider with no exporter so spans stay
// in-process only.
func newTracerProvider(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.TracingEnabled {
		return sdktrace.NewTracerProvider(), nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
		Timeout:  time.Duration(cfg.TracingOTLPTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

func mustRegister(logger ectologger.Logger, err error) {
	if err != nil {
		logger.WithError(err).Error("Failed to register dependency")
		os.Exit(1)
	}
}
