package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"go-damage-assessor/internal/repository"
)

// MinioConfig addresses an S3-compatible bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioImageStore keeps images as objects in one bucket
type MinioImageStore struct {
	client    *minio.Client
	bucket    string
	transport *http.Transport
}

// NewMinioImageStore creates the client; the bucket is not checked
func NewMinioImageStore(cfg MinioConfig) (*MinioImageStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio image store: endpoint and bucket are required")
	}
	transport, err := minio.DefaultTransport(cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("minio image store: transport: %w", err)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio image store: %w", err)
	}
	return &MinioImageStore{client: client, bucket: cfg.Bucket, transport: transport}, nil
}

// Close drops the store's idle connections
func (s *MinioImageStore) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func (s *MinioImageStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("put image: empty payload")
	}
	id := uuid.NewString()
	_, err := s.client.PutObject(ctx, s.bucket, id, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return id, nil
}

func (s *MinioImageStore) Get(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxImageBytes+1))
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func (s *MinioImageStore) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

func (s *MinioImageStore) mapError(err error) error {
	if isMinioNotFound(err) {
		return repository.ErrImageNotFound
	}
	return fmt.Errorf("failed to get object: %w", err)
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
