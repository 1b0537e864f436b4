// Package storage provides the document store the training data is read
// from and the object store trained models are published to.
package storage

import (
	"context"
	"errors"

	"github.com/shipcost/shipcost/pkg/dataset"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrEmptyCollection = errors.New("collection is empty")
)

// DocumentStore reads and writes whole collections as tables
type DocumentStore interface {
	// FetchTable returns every document of a collection, without the
	// store's own identifier field.
	FetchTable(ctx context.Context, database, collection string) (*dataset.Table, error)
	// InsertTable inserts one document per row.
	InsertTable(ctx context.Context, table *dataset.Table, database, collection string) error
}

// ObjectStore holds published model files
type ObjectStore interface {
	// Exists reports whether any object key in bucket starts with keyPrefix.
	Exists(ctx context.Context, bucket, keyPrefix string) (bool, error)
	// Upload copies a local file to bucket/key, removing the local file
	// afterwards when removeLocal is set and the upload succeeded.
	Upload(ctx context.Context, localPath, key, bucket string, removeLocal bool) error
	// Download returns the object's bytes or ErrObjectNotFound.
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}
