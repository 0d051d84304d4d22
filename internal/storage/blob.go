package storage

import "context"

// BlobStore is the durable blob storage interface used by the media
// pipeline. Paths are forward-slash keys; Upload returns a resolvable URL.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
}
