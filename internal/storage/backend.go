// Package storage stores serialized graphs in a local directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
)

// Backend kinds, used as metric labels.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

// Backend defines the interface for graph storage backends. Names are
// slash-separated relative paths such as "products/graph.csc".
type Backend interface {
	// WriteGraph stores a serialized graph, replacing any existing object.
	WriteGraph(ctx context.Context, name string, data []byte) error
	// ReadGraph returns a reader for a serialized graph.
	ReadGraph(ctx context.Context, name string) (io.ReadCloser, error)
	// ListGraphs returns all stored graph names in lexical order.
	ListGraphs(ctx context.Context) ([]string, error)
	// DeleteGraph removes a graph.
	DeleteGraph(ctx context.Context, name string) error
	// Kind reports the backend type.
	Kind() string
}

func validateName(name string) error {
	if name == "." || !fs.ValidPath(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
