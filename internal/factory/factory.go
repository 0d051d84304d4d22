package factory

import (
	"fmt"

	"go-damage-sync/internal/storage"
)

// BlobBackend represents the configured blob storage backend
type BlobBackend string

const (
	// AzureBackend stores media in an Azure blob container
	AzureBackend BlobBackend = "azure"
	// LocalBackend stores media on the local filesystem (development)
	LocalBackend BlobBackend = "local"
)

// BlobStoreFactory creates blob storage implementations
type BlobStoreFactory interface {
	CreateBlobStore(backend BlobBackend) (storage.BlobStore, error)
}

type blobStoreFactory struct {
	azureAccountName string
	azureAccountKey  string
	azureContainer   string
	localRoot        string
}

// NewBlobStoreFactory creates a factory bound to the configured credentials
func NewBlobStoreFactory(azureAccountName, azureAccountKey, azureContainer, localRoot string) BlobStoreFactory {
	return &blobStoreFactory{
		azureAccountName: azureAccountName,
		azureAccountKey:  azureAccountKey,
		azureContainer:   azureContainer,
		localRoot:        localRoot,
	}
}

// CreateBlobStore creates a blob store for the specified backend
func (f *blobStoreFactory) CreateBlobStore(backend BlobBackend) (storage.BlobStore, error) {
	switch backend {
	case AzureBackend:
		if f.azureAccountName == "" || f.azureAccountKey == "" {
			return nil, fmt.Errorf("azure backend requires account credentials")
		}
		return storage.NewAzureStorage(f.azureAccountName, f.azureAccountKey, f.azureContainer)
	case LocalBackend:
		return storage.NewLocalStorage(f.localRoot)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", backend)
	}
}
