package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	checkmatehttp "github.com/dukerupert/checkmate/http"
	"github.com/dukerupert/checkmate/internal/middleware"
	"github.com/dukerupert/checkmate/internal/migrations"
	"github.com/dukerupert/checkmate/render"
	"github.com/dukerupert/checkmate/sqlite"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx := context.Background()
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := run(ctx, os.Stdout, os.Stderr, os.Args, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point for the application, designed for testability.
// It accepts all external dependencies (IO, args, env) as parameters.
//
// With "migrate" as the first argument it migrates the configured store and exits.
func run(
	ctx context.Context,
	stdout, stderr io.Writer,
	args []string,
	getenv func(string) string,
) error {
	cfg, err := LoadConfig(getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(stderr, cfg)
	slog.SetDefault(logger)
	logger.Debug("logger initialized", slog.String("level", cfg.LogLevel))
	logger.Debug("application configuration",
		slog.String("environment", cfg.Environment),
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreProvider))

	if len(args) > 1 {
		switch args[1] {
		case "migrate":
			return migrate(ctx, stdout, cfg, logger)
		default:
			return fmt.Errorf("unknown command %q", args[1])
		}
	}

	services, err := initServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer services.Close()

	htmlRenderer, err := render.NewHTML()
	if err != nil {
		return fmt.Errorf("initializing report templates: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := checkmatehttp.NewServer(checkmatehttp.Config{
		Addr:              addr,
		Logger:            logger,
		RequestTimeout:    cfg.RequestTimeout,
		InspectionService: services.InspectionService,
		Templates:         services.Templates,
		Blobs:             services.Blobs,
		HTMLRenderer:      htmlRenderer,
		JSONRenderer:      render.NewJSON(),
		Ready:             services.Ready,
		Registry:          registry,
		RateLimit: middleware.RateLimitConfig{
			Rate:  cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		UploadRateLimit: middleware.RateLimitConfig{
			Rate:  cfg.UploadRatePerMinute / 60,
			Burst: cfg.UploadRateLimitBurst,
		},
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	reloadCtx, stopReload := context.WithCancel(ctx)
	defer stopReload()
	go reloadTemplatesOn(reloadCtx, reload, services.TemplateCache, logger)

	if err := server.Open(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Close(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server exited gracefully")
	return nil
}

// migrate brings the configured store's schema up to date.
func migrate(ctx context.Context, stdout io.Writer, cfg *Config, logger *slog.Logger) error {
	switch cfg.StoreProvider {
	case "postgres":
		pool, err := newDatabasePool(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("creating database pool: %w", err)
		}
		defer pool.Close()
		if err := runMigrations(pool, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		if err := store.Close(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store provider %q has no schema to migrate", cfg.StoreProvider)
	}

	fmt.Fprintf(stdout, "%s store migrated\n", cfg.StoreProvider)
	return nil
}

// newLogger creates a configured slog.Logger based on environment.
func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// newDatabasePool creates a configured pgxpool connection pool.
func newDatabasePool(ctx context.Context, cfg *Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Debug("connecting to database")

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("database connection pool established")
	return pool, nil
}

// runMigrations runs database migrations using goose.
func runMigrations(pool *pgxpool.Pool, logger *slog.Logger) error {
	logger.Info("running database migrations...")

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := goose.Up(sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database migrations completed")
	return nil
}
