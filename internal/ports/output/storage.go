// Package output defines the secondary/driven ports of the application.
package output

import "context"

// StacIO defines the secondary port for reading and writing catalog documents.
// Implementations select a backend from the URI scheme of each call.
type StacIO interface {
	// ReadText returns the full text of the document at uri.
	ReadText(ctx context.Context, uri string) (string, error)

	// WriteText replaces the document at uri with text.
	WriteText(ctx context.Context, uri string, text string) error
}

// StorageBackend is one scheme-specific strategy behind StacIO.
type StorageBackend interface {
	// Read returns the bytes of the object at uri.
	Read(ctx context.Context, uri string) ([]byte, error)

	// Write stores data as the whole object at uri.
	Write(ctx context.Context, uri string, data []byte) error
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "az"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeHTTPS StorageType = "https"
	StorageTypeLocal StorageType = "file"
)
