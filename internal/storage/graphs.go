package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/23skdu/cscgraph/internal/serialize"
)

// SaveGraph serializes g and stores it under name.
func SaveGraph(ctx context.Context, b Backend, name string, g *graph.CSCGraph, opts ...serialize.SaveOption) error {
	var buf bytes.Buffer
	if err := serialize.Save(&buf, g, opts...); err != nil {
		return err
	}
	if err := b.WriteGraph(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("save graph %q: %w", name, err)
	}
	return nil
}

// LoadGraph reads and validates the graph stored under name.
func LoadGraph(ctx context.Context, b Backend, name string, opts ...serialize.LoadOption) (*graph.CSCGraph, error) {
	rc, err := b.ReadGraph(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load graph %q: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	g, err := serialize.Load(rc, opts...)
	if err != nil {
		return nil, fmt.Errorf("load graph %q: %w", name, err)
	}
	return g, nil
}

// Location names a graph either as a local path or as s3://bucket/key.
type Location struct {
	Kind   string // KindLocal or KindS3
	Bucket string // s3 only
	Dir    string // local only
	Name   string // object key or file name
}

func (l Location) String() string {
	if l.Kind == KindS3 {
		return "s3://" + l.Bucket + "/" + l.Name
	}
	return filepath.Join(l.Dir, filepath.FromSlash(l.Name))
}

// ParseLocation splits a graph location into backend and name.
func ParseLocation(loc string) (Location, error) {
	if strings.HasPrefix(loc, "s3://") {
		u, err := url.Parse(loc)
		if err != nil {
			return Location{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || validateName(key) != nil {
			return Location{}, fmt.Errorf("%w: %q must look like s3://bucket/key", ErrInvalidName, loc)
		}
		return Location{Kind: KindS3, Bucket: u.Host, Name: key}, nil
	}
	if loc == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrInvalidName)
	}
	abs, err := filepath.Abs(loc)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return Location{Kind: KindLocal, Dir: filepath.Dir(abs), Name: filepath.Base(abs)}, nil
}

// Open returns the backend serving loc. s3cfg supplies endpoint and
// credentials for s3 locations; its Bucket is replaced by the location's.
func Open(ctx context.Context, loc Location, s3cfg S3BackendConfig) (Backend, error) {
	switch loc.Kind {
	case KindS3:
		s3cfg.Bucket = loc.Bucket
		s3cfg.Prefix = ""
		b, err := NewS3Backend(ctx, &s3cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case KindLocal:
		b, err := NewLocalBackend(loc.Dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", loc.Kind)
	}
}
