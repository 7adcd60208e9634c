package graph

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors unwrap to exactly one of these so callers can
// branch with errors.Is.
var (
	// ErrInvalidGraphStructure marks a construction-time invariant violation.
	ErrInvalidGraphStructure = errors.New("invalid graph structure")
	// ErrNodeIDOutOfRange marks a query seed outside [0, num_nodes).
	ErrNodeIDOutOfRange = errors.New("node id out of range")
	// ErrInvalidMetadata marks inconsistent node/edge type metadata.
	ErrInvalidMetadata = errors.New("invalid graph metadata")
)

// StructureError reports which array violated which invariant.
type StructureError struct {
	Array   string // indptr, indices, node_type_offset, type_per_edge, metadata
	Index   int64  // offending position, -1 when the array as a whole is at fault
	Message string
}

func (e *StructureError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s[%d]: %s", ErrInvalidGraphStructure, e.Array, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidGraphStructure, e.Array, e.Message)
}

func (e *StructureError) Unwrap() error { return ErrInvalidGraphStructure }

func structureErr(array string, index int64, format string, args ...any) error {
	return &StructureError{Array: array, Index: index, Message: fmt.Sprintf(format, args...)}
}

// NodeIDError reports a seed that does not name a node of the graph.
type NodeIDError struct {
	Position int   // index of the seed within the query
	NodeID   int64 // offending value
	NumNodes int64
}

func (e *NodeIDError) Error() string {
	return fmt.Sprintf("%s: seed[%d]=%d not in [0, %d)", ErrNodeIDOutOfRange, e.Position, e.NodeID, e.NumNodes)
}

func (e *NodeIDError) Unwrap() error { return ErrNodeIDOutOfRange }

// MetadataError reports an invalid node or edge type entry.
type MetadataError struct {
	Key     string
	Message string
}

func (e *MetadataError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %q: %s", ErrInvalidMetadata, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidMetadata, e.Message)
}

func (e *MetadataError) Unwrap() error { return ErrInvalidMetadata }
