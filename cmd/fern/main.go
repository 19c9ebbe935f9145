package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/clients/normalizer"
	"github.com/Ramsey-B/fern/internal/clients/validation"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/logging"
	"github.com/Ramsey-B/fern/internal/middleware"
	strategyrepo "github.com/Ramsey-B/fern/internal/repositories/strategy"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	sessionroutes "github.com/Ramsey-B/fern/pkg/routes/session"
	strategyroutes "github.com/Ramsey-B/fern/pkg/routes/strategy"
	"github.com/Ramsey-B/fern/pkg/session"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.AppName))),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	defer func() { _ = tp.Shutdown(ctx) }()

	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, databaseDSN(cfg))
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	defer sqlxDB.Close()

	db := database.NewDatabaseInstance(sqlxDB, logger)

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	repo := strategyrepo.NewRepository(db, logger)
	sessions := session.NewManager(logger, cfg.PositionHistoryLimit, cfg.ContentUndoLimit)
	normClient := normalizer.New(cfg.NormalizerBaseURL, cfg.NormalizerTimeout, logger)
	valClient := validation.New(cfg.ValidationBaseURL, cfg.ValidationTimeout, logger)

	if err := registerDependencies(logger, db, repo, sessions, normClient, valClient); err != nil {
		logger.WithError(err).Error("failed to register dependencies")
		os.Exit(1)
	}

	var consumer *events.Consumer
	if cfg.KafkaConsumerEnabled {
		feed := events.NewFeed(sessions, logger)
		consumer = events.NewConsumer(cfg, logger, feed.Handle)
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("failed to start event consumer")
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	api := e.Group("/api/v1")
	strategyroutes.Register(api.Group("/strategies"))
	sessionroutes.Register(api.Group("/session"))

	var consumerHealth interface{ Health() bool }
	if consumer != nil {
		consumerHealth = consumer
	}
	checker := health.NewChecker(sqlxDB, consumerHealth, version)
	checker.RegisterRoutes(e)
	checker.SetReady(true)

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.WithError(err).Info("http server stopped")
		}
	}()

	logger.WithFields(map[string]any{
		"app":  cfg.AppName,
		"port": cfg.Port,
	}).Info("started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Error("failed to stop event consumer")
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down http server")
	}
}

func databaseDSN(cfg config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(
	logger ectologger.Logger,
	db database.DB,
	repo *strategyrepo.Repository,
	sessions *session.Manager,
	normClient normalizer.Client,
	valClient validation.Client,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, db); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*strategyrepo.Repository](container, repo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*session.Manager](container, sessions); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[normalizer.Client](container, normClient); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[validation.Client](container, valClient)
}
