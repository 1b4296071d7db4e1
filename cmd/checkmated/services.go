package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/checklist"
	"github.com/dukerupert/checkmate/engine"
	"github.com/dukerupert/checkmate/internal/storage"
	"github.com/dukerupert/checkmate/memory"
	"github.com/dukerupert/checkmate/postgres"
	"github.com/dukerupert/checkmate/sqlite"
	"github.com/dukerupert/checkmate/vin"
)

// Services holds all application services.
type Services struct {
	InspectionService checkmate.InspectionService
	Templates         checkmate.TemplateProvider
	Blobs             checkmate.BlobStore

	// TemplateCache fronts Templates; flushing it makes edited template
	// files take effect without a restart.
	TemplateCache *checklist.Cache

	// Ready pings the backing store.
	Ready func(ctx context.Context) error

	// Close releases the store's resources.
	Close func()
}

// initServices initializes all application services.
func initServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	store, ready, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("inspection store initialized", slog.String("provider", cfg.StoreProvider))

	templates, err := initTemplates(cfg, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	blobs, err := initBlobStore(ctx, cfg, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	logger.Info("blob storage initialized", slog.String("provider", cfg.StorageProvider))

	decoder, err := initDecoder(cfg, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	svc := engine.New(engine.Config{
		Store:     store,
		Templates: templates,
		Decoder:   decoder,
		Blobs:     blobs,
		Policy:    checkmate.FinalizePolicy{BlockOnRequiredFindings: cfg.FinalizeBlockOnRequired},
		Logger:    logger,
	})

	return &Services{
		InspectionService: svc,
		Templates:         templates,
		Blobs:             blobs,
		TemplateCache:     templates,
		Ready:             ready,
		Close:             closeStore,
	}, nil
}

// initStore opens the configured inspection store, migrating it first.
func initStore(ctx context.Context, cfg *Config, logger *slog.Logger) (checkmate.InspectionStore, func(context.Context) error, func(), error) {
	switch cfg.StoreProvider {
	case "postgres":
		pool, err := newDatabasePool(ctx, cfg, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating database pool: %w", err)
		}
		if err := runMigrations(pool, logger); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		db := postgres.NewDB(pool)
		return db.InspectionStore, pool.Ping, db.Close, nil

	case "sqlite":
		logger.Debug("opening sqlite database", slog.String("path", cfg.SQLitePath))
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				logger.Error("closing sqlite database", slog.String("error", err.Error()))
			}
		}
		return store, store.Ping, closeFn, nil

	default:
		logger.Warn("using in-memory inspection store; data is lost on restart")
		return memory.NewStore(), nil, func() {}, nil
	}
}

// initTemplates builds the template provider behind its cache.
func initTemplates(cfg *Config, logger *slog.Logger) (*checklist.Cache, error) {
	var (
		provider *checklist.FSProvider
		err      error
	)
	if cfg.TemplateDir != "" {
		version := cfg.TemplateVersion
		if version == "" {
			version = checklist.DefaultVersion
		}
		provider, err = checklist.NewFSProvider(os.DirFS(cfg.TemplateDir), version)
		logger.Info("checklist templates loaded from directory",
			slog.String("dir", cfg.TemplateDir),
			slog.String("current_version", version))
	} else {
		provider, err = checklist.NewBuiltinProvider()
		logger.Info("using built-in checklist templates", slog.String("current_version", checklist.DefaultVersion))
	}
	if err != nil {
		return nil, fmt.Errorf("initializing checklist templates: %w", err)
	}

	// Fail fast on a broken current template rather than on the first create.
	ctx := context.Background()
	version, err := provider.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := provider.Template(ctx, version); err != nil {
		return nil, fmt.Errorf("loading checklist template %s: %w", version, err)
	}

	return checklist.NewCache(provider, cfg.TemplateCacheTTL), nil
}

// initBlobStore creates the photo blob store.
func initBlobStore(ctx context.Context, cfg *Config, logger *slog.Logger) (checkmate.BlobStore, error) {
	logger.Debug("storage service configuration",
		slog.String("provider", cfg.StorageProvider),
		slog.String("local_path", cfg.StorageLocalPath),
		slog.String("s3_bucket", cfg.StorageS3Bucket),
		slog.String("s3_region", cfg.StorageS3Region))

	return storage.NewBlobStore(ctx, logger, checkmate.StorageConfig{
		Provider:  cfg.StorageProvider,
		LocalPath: cfg.StorageLocalPath,
		S3Bucket:  cfg.StorageS3Bucket,
		S3Region:  cfg.StorageS3Region,
		S3Prefix:  cfg.StorageS3Prefix,
	})
}

// initDecoder creates the VIN decoder, or nil when disabled.
func initDecoder(cfg *Config, logger *slog.Logger) (checkmate.VehicleDecoder, error) {
	if !cfg.VINEnabled {
		logger.Info("VIN decoder disabled")
		return nil, nil
	}

	decoder, err := vin.New(vin.Config{
		BaseURL:        cfg.VINBaseURL,
		Timeout:        cfg.VINTimeout,
		MaxRetries:     uint64(cfg.VINMaxRetries),
		StaticDataPath: cfg.VINStaticData,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing VIN decoder: %w", err)
	}
	logger.Info("VIN decoder initialized")
	return decoder, nil
}

// reloadTemplatesOn flushes the template cache each time sig fires, so the
// next lookup reads the template files again. It returns when ctx is done.
func reloadTemplatesOn(ctx context.Context, sig <-chan os.Signal, cache *checklist.Cache, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			cache.InvalidateAll()
			logger.Info("checklist templates reloaded", slog.String("signal", s.String()))
		}
	}
}
