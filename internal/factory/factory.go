package factory

import (
	"context"
	"fmt"

	"go-damage-assessor/internal/config"
	"go-damage-assessor/internal/logger"
	"go-damage-assessor/internal/repository"
	"go-damage-assessor/internal/resilience"
	"go-damage-assessor/internal/storage"
	"go-damage-assessor/pkg/validation"
)

// StoreFactory builds the image and result stores named by configuration.
// Networked backends share one guard, which keeps a breaker per store.
type StoreFactory interface {
	CreateImageStore(ctx context.Context) (repository.ImageRepository, error)
	CreateResultStore(ctx context.Context) (repository.ResultRepository, error)
}

type storeFactory struct {
	cfg   *config.Config
	guard *resilience.Guard
}

// NewStoreFactory creates a factory for cfg
func NewStoreFactory(cfg *config.Config) StoreFactory {
	return &storeFactory{
		cfg: cfg,
		guard: resilience.NewGuard(resilience.Policy{
			ReadAttempts: cfg.Resilience.RetryMaxAttempts,
			BaseDelay:    cfg.Resilience.RetryInitialBackoff,
			MaxDelay:     cfg.Resilience.RetryMaxBackoff,
			Breaker:      cfg.Resilience.BreakerEnabled,
		}, repository.StoreFault),
	}
}

// CreateImageStore creates an image store based on the configured driver
func (f *storeFactory) CreateImageStore(_ context.Context) (repository.ImageRepository, error) {
	sc := f.cfg.ImageStore
	log := logger.ForComponent("factory").WithField("image_store", sc.Driver)

	switch sc.Driver {
	case config.ImageStoreMemory:
		log.Warn("Using in-memory image store; images are lost on restart")
		return storage.NewMemoryImageStore(), nil
	case config.ImageStoreLocal:
		return storage.NewLocalImageStore(sc.Path)
	case config.ImageStoreHTTP:
		if err := validation.NewRequestValidator("").ValidateBaseURL(sc.BaseURL); err != nil {
			return nil, fmt.Errorf("IMAGE_STORE_BASE_URL: %w", err)
		}
		// The HTTP store retries on its own; only the breaker is layered on top
		store, err := storage.NewHTTPImageStore(sc.BaseURL, f.cfg.ImageFetchTimeout)
		if err != nil {
			return nil, err
		}
		return repository.NewResilientImageRepository(store, f.singleShot(), "http_images"), nil
	case config.ImageStoreAzure:
		store, err := storage.NewAzureImageStore(sc.AzureAccount, sc.AzureKey, sc.AzureContainer)
		if err != nil {
			return nil, err
		}
		return repository.NewResilientImageRepository(store, f.guard, "azure_images"), nil
	case config.ImageStoreMinio:
		store, err := storage.NewMinioImageStore(storage.MinioConfig{
			Endpoint:  sc.MinioEndpoint,
			AccessKey: sc.MinioAccessKey,
			SecretKey: sc.MinioSecretKey,
			Bucket:    sc.MinioBucket,
			UseSSL:    sc.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewResilientImageRepository(store, f.guard, "minio_images"), nil
	default:
		return nil, fmt.Errorf("unsupported image store driver: %s", sc.Driver)
	}
}

// CreateResultStore creates a result store based on the configured driver
func (f *storeFactory) CreateResultStore(ctx context.Context) (repository.ResultRepository, error) {
	sc := f.cfg.ResultStore
	log := logger.ForComponent("factory").WithField("result_store", sc.Driver)

	switch sc.Driver {
	case config.ResultStoreMemory:
		log.Warn("Using in-memory result store; results are lost on restart")
		return storage.NewMemoryResultStore(), nil
	case config.ResultStoreSQLite:
		return storage.OpenSQLiteResultStore(sc.SQLitePath)
	case config.ResultStoreRedis:
		store, err := storage.NewRedisResultStore(ctx, storage.RedisConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			Prefix:   sc.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewResilientResultRepository(store, f.guard, "redis_results"), nil
	case config.ResultStorePostgres:
		store, err := storage.OpenPostgresResultStore(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return repository.NewResilientResultRepository(store, f.guard, "postgres_results"), nil
	default:
		return nil, fmt.Errorf("unsupported result store driver: %s", sc.Driver)
	}
}

// OpenStores creates both stores. The image store is released again when the
// result store cannot be opened.
func OpenStores(ctx context.Context, f StoreFactory) (repository.ImageRepository, repository.ResultRepository, error) {
	images, err := f.CreateImageStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create image store: %w", err)
	}
	results, err := f.CreateResultStore(ctx)
	if err != nil {
		if cerr := repository.ReleaseImageStore(images); cerr != nil {
			logger.ForComponent("factory").WithError(cerr).Warn("Failed to release image store")
		}
		return nil, nil, fmt.Errorf("failed to create result store: %w", err)
	}
	return images, results, nil
}

func (f *storeFactory) singleShot() *resilience.Guard {
	return resilience.NewGuard(resilience.SingleShot(f.cfg.Resilience.BreakerEnabled), repository.StoreFault)
}
