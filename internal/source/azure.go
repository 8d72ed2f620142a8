package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/mumuon/drivefinder/kml-service/internal/config"
)

// AzureBackend reads azblob://container/blob objects.
type AzureBackend struct {
	client *azblob.Client
}

// NewAzureBackend creates an Azure Blob Storage backend. A connection string
// wins over an account key; an account name alone gives anonymous access to
// public containers.
func NewAzureBackend(cfg config.AzureConfig) (*AzureBackend, error) {
	var client *azblob.Client
	var err error

	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, err
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL(cfg.AccountName), cred, nil)
	default:
		client, err = azblob.NewClientWithNoCredential(serviceURL(cfg.AccountName), nil)
	}
	if err != nil {
		return nil, err
	}

	return &AzureBackend{client: client}, nil
}

func serviceURL(account string) string {
	return "https://" + account + ".blob.core.windows.net/"
}

// Read implements Backend.
func (b *AzureBackend) Read(ctx context.Context, loc *url.URL, limit int64) ([]byte, error) {
	container, blob, err := bucketAndKey(loc)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", blob, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.ContentLength != nil && *resp.ContentLength > limit {
		return nil, ErrTooLarge
	}

	return readLimited(resp.Body, limit)
}
