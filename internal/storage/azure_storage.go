package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/google/uuid"

	"go-damage-assessor/internal/repository"
)

// AzureImageStore keeps images as blobs in one container
type AzureImageStore struct {
	client    *azblob.Client
	container string
	transport *http.Transport
}

// NewAzureImageStore authenticates with a shared key
func NewAzureImageStore(accountName, accountKey, container string) (*AzureImageStore, error) {
	if strings.TrimSpace(accountName) == "" || strings.TrimSpace(container) == "" {
		return nil, fmt.Errorf("azure image store: account and container are required")
	}
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure image store: credential: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	opts := &azblob.ClientOptions{}
	opts.Transport = &http.Client{Transport: transport}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("azure image store: client: %w", err)
	}

	return &AzureImageStore{client: client, container: container, transport: transport}, nil
}

// Close drops the store's idle connections
func (s *AzureImageStore) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func (s *AzureImageStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("put image: empty payload")
	}
	id := uuid.NewString()
	if _, err := s.client.UploadBuffer(ctx, s.container, id, data, nil); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return id, nil
}

func (s *AzureImageStore) Get(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, id, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, repository.ErrImageNotFound
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func (s *AzureImageStore) Exists(ctx context.Context, id string) (bool, error) {
	blob := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(id)
	if _, err := blob.GetProperties(ctx, nil); err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob properties: %w", err)
	}
	return true, nil
}

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound)
}
