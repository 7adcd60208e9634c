package serialize

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/google/renameio"
)

// SaveFile writes g to path atomically: the data goes to a temporary file in
// the same directory which then replaces path, so readers observe either the
// old file or the complete new one.
func SaveFile(path string, g *graph.CSCGraph, opts ...SaveOption) error {
	t, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return ioFailure("open", err)
	}
	defer func() { _ = t.Cleanup() }()

	if err := Save(t, g, opts...); err != nil {
		return err
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return ioFailure("rename", err)
	}
	return nil
}

// LoadFile reads a graph saved with SaveFile or Save.
func LoadFile(path string, opts ...LoadOption) (*graph.CSCGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioFailure("open", err)
	}
	defer func() { _ = f.Close() }()
	return Load(bufio.NewReaderSize(f, 1<<16), opts...)
}
