package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/google/renameio"
)

// LocalBackend implements Backend on a directory tree. Writes are atomic.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates the directory if needed.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &LocalError{Op: "init", Path: dir, Cause: err}
	}
	return &LocalBackend{dir: dir}, nil
}

// Dir returns the root directory.
func (b *LocalBackend) Dir() string { return b.dir }

// Kind implements Backend.
func (b *LocalBackend) Kind() string { return KindLocal }

func (b *LocalBackend) path(name string) string {
	return filepath.Join(b.dir, filepath.FromSlash(name))
}

// WriteGraph implements Backend.
func (b *LocalBackend) WriteGraph(ctx context.Context, name string, data []byte) (err error) {
	defer func() { recordOp(KindLocal, "write", err) }()
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p := b.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &LocalError{Op: "write", Path: p, Cause: err}
	}
	t, err := renameio.TempFile(filepath.Dir(p), p)
	if err != nil {
		return &LocalError{Op: "write", Path: p, Cause: err}
	}
	defer func() { _ = t.Cleanup() }()

	if _, err := t.Write(data); err != nil {
		return &LocalError{Op: "write", Path: p, Cause: err}
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return &LocalError{Op: "write", Path: p, Cause: err}
	}
	metrics.StorageBytesTotal.WithLabelValues(KindLocal, "write").Add(float64(len(data)))
	return nil
}

// ReadGraph implements Backend.
func (b *LocalBackend) ReadGraph(ctx context.Context, name string) (_ io.ReadCloser, err error) {
	defer func() { recordOp(KindLocal, "read", err) }()
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := b.path(name)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, &LocalError{Op: "read", Path: p, Cause: err}
	}
	if fi, err := f.Stat(); err == nil {
		metrics.StorageBytesTotal.WithLabelValues(KindLocal, "read").Add(float64(fi.Size()))
	}
	return f, nil
}

// ListGraphs implements Backend. Dot files, including in-flight temporary
// files, are skipped.
func (b *LocalBackend) ListGraphs(ctx context.Context) (_ []string, err error) {
	defer func() { recordOp(KindLocal, "list", err) }()
	var names []string
	err = filepath.WalkDir(b.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != b.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &LocalError{Op: "list", Path: b.dir, Cause: err}
	}
	return names, nil
}

// DeleteGraph implements Backend.
func (b *LocalBackend) DeleteGraph(ctx context.Context, name string) (err error) {
	defer func() { recordOp(KindLocal, "delete", err) }()
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := b.path(name)
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Name: name}
		}
		return &LocalError{Op: "delete", Path: p, Cause: err}
	}
	return nil
}

func recordOp(backend, op string, err error) {
	result := "success"
	switch {
	case err == nil:
	case IsNotFoundError(err):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.StorageOperationsTotal.WithLabelValues(backend, op, result).Inc()
}
