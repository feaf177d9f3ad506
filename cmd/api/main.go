package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"clinicfiles/docs"
	"clinicfiles/internal/config"
	"clinicfiles/internal/database"
	"clinicfiles/internal/database/migration"
	handlers "clinicfiles/internal/http/handler"
	"clinicfiles/internal/http/middleware"
	"clinicfiles/internal/logging"
	"clinicfiles/internal/otel"
	"clinicfiles/internal/repository/postgres"
	"clinicfiles/internal/service"
	"clinicfiles/internal/storage"
)

// @title Clinic Files API
// @version 1.0
// @description File lifecycle management: upload, replace, recycle bin, restore, purge and audit history.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger := logging.NewStdout(cfg.Location())
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		dsn, err := database.BuildPostgresDSN(cfg.Database)
		if err != nil {
			logger.Fatal("invalid database config", zap.Error(err))
		}
		if err := migration.EnsureMigrated(ctx, dsn, logger, cfg.Database.Host); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize blob storage", zap.Error(err))
	}

	metrics, err := service.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to register lifecycle metrics", zap.Error(err))
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to register http metrics", zap.Error(err))
	}

	fileSvc := service.NewFileService(blobs, postgres.NewFilePostgres(db), service.Options{
		BlobTimeout:     cfg.Lifecycle.BlobTimeout(),
		MetadataTimeout: cfg.Lifecycle.MetadataTimeout(),
		ClaimTTL:        cfg.Lifecycle.ClaimTTL(),
		Logger:          logger,
		Metrics:         metrics,
	})

	app := newApp(db, fileSvc, cfg, logger, httpMetrics)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("server_starting", zap.String("addr", addr), zap.String("storage_driver", cfg.Storage.Driver))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newBlobStore(cfg *config.AppConfig) (storage.BlobStore, error) {
	switch cfg.Storage.Driver {
	case "minio":
		return storage.NewMinIO(cfg.MinIO)
	case "local":
		return storage.NewLocal(cfg.Storage.LocalRoot)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newApp(db *sql.DB, svc service.FileService, cfg *config.AppConfig, logger *zap.Logger, httpMetrics *middleware.PrometheusMiddleware) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Global middleware
	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, svc, cfg.Auth)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app
}
