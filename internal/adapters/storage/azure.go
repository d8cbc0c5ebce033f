package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/jobrunner/stacsync/internal/domain"
)

// AzureBackend stores catalog documents in Azure Blob Storage.
// URIs have the form az://<container>/<blob>.
type AzureBackend struct {
	client *azblob.Client
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
}

// NewAzureBackend creates a new Azure Blob Storage backend.
func NewAzureBackend(cfg AzureConfig) (*AzureBackend, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("creating azure client: %w", err)
		}
		return &AzureBackend{client: client}, nil
	}

	url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(url, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure client: %w", err)
	}
	return &AzureBackend{client: client}, nil
}

// Read implements output.StorageBackend.
func (b *AzureBackend) Read(ctx context.Context, uri string) ([]byte, error) {
	container, name, err := splitLocation(uri)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", container, name, domain.ErrObjectNotFound)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return io.ReadAll(resp.Body)
}

// Write implements output.StorageBackend.
func (b *AzureBackend) Write(ctx context.Context, uri string, data []byte) error {
	container, name, err := splitLocation(uri)
	if err != nil {
		return err
	}

	contentType := documentContentType
	contentEncoding := documentContentEncoding
	_, err = b.client.UploadBuffer(ctx, container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:     &contentType,
			BlobContentEncoding: &contentEncoding,
		},
	})
	return err
}
