// Package storage defines the common interfaces for artifact storage adapters.
// These interfaces abstract storage operations so the exporter can write
// artifacts to different backends (GCS, local file system) through a unified API.
package storage

import (
	"context"
	"io"
)

// StorageConnection represents a storage connection.
type StorageConnection interface {
	// Upload uploads data to the specified bucket and object name.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download downloads data from the specified bucket and object name.
	// The returned ReadCloser must be closed by the caller.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects lists objects within the specified bucket and prefix,
	// calling fn for each object name found.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject deletes the specified object from the bucket.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Type returns the storage type (e.g., "local", "gcs").
	Type() string
	// Name returns the logical connection name from configuration.
	Name() string
	// Close releases any resources held by the connection.
	Close() error
}

// StorageProvider manages the acquisition and lifecycle of storage connections.
type StorageProvider interface {
	// GetConnection retrieves a StorageConnection with the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider.
	Type() string
}

// StorageProviderGroup is an Fx tag used to group all StorageProvider implementations.
const StorageProviderGroup = `group:"storage_providers"`
