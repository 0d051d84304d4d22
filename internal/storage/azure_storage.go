package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

type azureStorage struct {
	client    *azblob.Client
	account   string
	container string
}

// NewAzureStorage creates a BlobStore backed by an Azure blob container.
func NewAzureStorage(accountName, accountKey, container string) (BlobStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &azureStorage{
		client:    client,
		account:   accountName,
		container: container,
	}, nil
}

func (s *azureStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := s.client.UploadStream(ctx, s.container, path, bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("upload blob %s: %w", path, err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.account, s.container, path), nil
}

func (s *azureStorage) Download(ctx context.Context, path string) ([]byte, error) {
	downloadResponse, err := s.client.DownloadStream(ctx, s.container, path, nil)
	if err != nil {
		return nil, fmt.Errorf("download blob %s: %w", path, err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	return io.ReadAll(retryReader)
}
