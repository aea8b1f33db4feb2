package factory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-damage-assessor/internal/config"
	"go-damage-assessor/internal/repository"
	"go-damage-assessor/internal/storage"
)

func baseConfig() *config.Config {
	return &config.Config{
		ImageFetchTimeout: time.Second,
		Resilience: config.ResilienceConfig{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
			BreakerEnabled:      true,
		},
	}
}

func TestCreateImageStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		store   config.ImageStoreConfig
		wantErr bool
	}{
		{name: "memory", store: config.ImageStoreConfig{Driver: config.ImageStoreMemory}},
		{name: "local", store: config.ImageStoreConfig{Driver: config.ImageStoreLocal, Path: filepath.Join(t.TempDir(), "img")}},
		{name: "http", store: config.ImageStoreConfig{Driver: config.ImageStoreHTTP, BaseURL: "https://imagery.example.com"}},
		{name: "http bad url", store: config.ImageStoreConfig{Driver: config.ImageStoreHTTP, BaseURL: "ftp://x"}, wantErr: true},
		{name: "azure", store: config.ImageStoreConfig{Driver: config.ImageStoreAzure, AzureAccount: "acct", AzureKey: "a2V5", AzureContainer: "images"}},
		{name: "minio", store: config.ImageStoreConfig{Driver: config.ImageStoreMinio, MinioEndpoint: "localhost:9000", MinioBucket: "images"}},
		{name: "unknown", store: config.ImageStoreConfig{Driver: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.ImageStore = tt.store

			store, err := NewStoreFactory(cfg).CreateImageStore(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}

func TestCreateImageStoreMemoryRoundTrip(t *testing.T) {
	cfg := baseConfig()
	cfg.ImageStore = config.ImageStoreConfig{Driver: config.ImageStoreMemory}

	store, err := NewStoreFactory(cfg).CreateImageStore(context.Background())
	require.NoError(t, err)
	_, isMemory := store.(*storage.MemoryImageStore)
	assert.True(t, isMemory, "local drivers are not wrapped")
}

func TestCreateResultStore(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	drivers := []config.ResultStoreConfig{
		{Driver: config.ResultStoreMemory},
		{Driver: config.ResultStoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "results.db")},
		{Driver: config.ResultStoreRedis, RedisAddr: mr.Addr(), RedisPrefix: "factory:"},
	}
	for _, sc := range drivers {
		t.Run(sc.Driver, func(t *testing.T) {
			cfg := baseConfig()
			cfg.ResultStore = sc

			store, err := NewStoreFactory(cfg).CreateResultStore(ctx)
			require.NoError(t, err)
			defer store.Close()

			_, err = store.Latest(ctx)
			assert.Error(t, err)
		})
	}

	cfg := baseConfig()
	cfg.ResultStore = config.ResultStoreConfig{Driver: "mongo"}
	_, err = NewStoreFactory(cfg).CreateResultStore(ctx)
	assert.Error(t, err)
}

type closingImages struct {
	repository.ImageRepository
	closed int
}

func (c *closingImages) Close() error {
	c.closed++
	return nil
}

type stubFactory struct {
	images    repository.ImageRepository
	resultErr error
}

func (s *stubFactory) CreateImageStore(context.Context) (repository.ImageRepository, error) {
	return s.images, nil
}

func (s *stubFactory) CreateResultStore(context.Context) (repository.ResultRepository, error) {
	if s.resultErr != nil {
		return nil, s.resultErr
	}
	return storage.NewMemoryResultStore(), nil
}

func TestOpenStoresReleasesImageStoreOnResultFailure(t *testing.T) {
	images := &closingImages{ImageRepository: storage.NewMemoryImageStore()}
	errDown := errors.New("dial tcp: connection refused")

	gotImages, gotResults, err := OpenStores(context.Background(), &stubFactory{images: images, resultErr: errDown})
	assert.ErrorIs(t, err, errDown)
	assert.Nil(t, gotImages)
	assert.Nil(t, gotResults)
	assert.Equal(t, 1, images.closed)
}

func TestOpenStoresKeepsImageStoreOnSuccess(t *testing.T) {
	images := &closingImages{ImageRepository: storage.NewMemoryImageStore()}

	gotImages, gotResults, err := OpenStores(context.Background(), &stubFactory{images: images})
	require.NoError(t, err)
	defer gotResults.Close()
	assert.Same(t, images, gotImages)
	assert.Zero(t, images.closed)
}

func TestOpenStoresUnknownResultDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.ImageStore = config.ImageStoreConfig{
		Driver:         config.ImageStoreMinio,
		MinioEndpoint:  "localhost:9000",
		MinioAccessKey: "minio",
		MinioSecretKey: "minio123",
		MinioBucket:    "images",
	}
	cfg.ResultStore = config.ResultStoreConfig{Driver: "mongo"}

	images, results, err := OpenStores(context.Background(), NewStoreFactory(cfg))
	assert.Error(t, err)
	assert.Nil(t, images)
	assert.Nil(t, results)
}
