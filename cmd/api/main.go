package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"filemeta/docs"
	"filemeta/internal/config"
	"filemeta/internal/database"
	"filemeta/internal/database/migration"
	"filemeta/internal/extract"
	handlers "filemeta/internal/http/handler"
	"filemeta/internal/http/middleware"
	applog "filemeta/internal/logger"
	apptel "filemeta/internal/otel"
	"filemeta/internal/repository/sqlrepo"
	"filemeta/internal/service"
	"filemeta/internal/storage"
	"filemeta/internal/upload"
)

const shutdownTimeout = 10 * time.Second

// @title File Metadata API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger := applog.Init(cfg.IsDevelopment(), cfg.SentryDSN)
	defer applog.Flush(2 * time.Second)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exit", slog.String("error", err.Error()))
		applog.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := apptel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	// Initialize the metadata database (PostgreSQL or SQLite) and bring the schema up to date
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db.DB, db.DriverName(), logger); err != nil {
		return err
	}

	// Raw bytes live under the upload root, shared with the tus file store
	store, err := storage.NewDisk(cfg.Upload.Dir)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	finalizeMetrics, err := service.NewFinalizeMetrics(reg)
	if err != nil {
		return fmt.Errorf("register finalize metrics: %w", err)
	}

	// Initialize repositories and services
	fileRepo := sqlrepo.NewFileRepository(db)
	finalizer := service.NewFinalizer(store, fileRepo,
		extract.New(extract.WithLogger(logger), extract.WithMaxPixels(cfg.MaxImagePixels)),
		service.WithFinalizerLogger(logger),
		service.WithFinalizeMetrics(finalizeMetrics),
	)
	fileSvc := service.NewFileService(store, fileRepo, logger, cfg.ListMaxSize)

	uploads, err := upload.NewHandler(cfg.Upload, store.Root(), finalizer, logger,
		upload.WithProtocolLogger(applog.NewProtocol(os.Stdout, cfg.IsDevelopment())),
	)
	if err != nil {
		return fmt.Errorf("initialize upload handler: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	isUpload := func(c *fiber.Ctx) bool { return handlers.IsUploadPath(cfg.Upload.BasePath, c.Path()) }

	// Register global middleware
	app.Use(recover.New())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// Structured request logs
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())
	// The tus handler answers its own CORS preflights
	app.Use(cors.New(cors.Config{
		Next:          isUpload,
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  "GET,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, " + middleware.RequestIDHeader,
		ExposeHeaders: middleware.RequestIDHeader,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, fileSvc, uploads, cfg.Upload.BasePath)

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

	addr := ":" + cfg.Port

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_start",
			slog.String("addr", addr),
			slog.String("db_driver", db.DriverName()),
			slog.String("upload_dir", store.Root()),
			slog.String("upload_path", cfg.Upload.BasePath),
		)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutdown", slog.Duration("timeout", shutdownTimeout))
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}

		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}
