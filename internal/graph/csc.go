// Package graph implements an immutable compressed-sparse-column graph store
// and the in-subgraph query used by mini-batch samplers.
//
// Column i of the CSC layout lists the source nodes of all edges whose
// destination is node i: indices[indptr[i]:indptr[i+1]]. A CSCGraph is
// validated once at construction and never mutated afterwards, so any number
// of goroutines may query it concurrently without locking.
package graph

import (
	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/23skdu/cscgraph/internal/tensor"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
)

// CSCGraph is a read-only graph in CSC form.
type CSCGraph struct {
	arrays   tensor.Bundle
	metadata *GraphMetadata
	logger   zerolog.Logger
}

type options struct {
	mem            memory.Allocator
	logger         zerolog.Logger
	metadata       *GraphMetadata
	nodeTypeOffset []int64
	typePerEdge    []int64
	hasNodeTypes   bool
	hasEdgeTypes   bool
}

// Option configures graph construction.
type Option func(*options)

// WithNodeTypeOffset marks the graph as node-heterogeneous. An empty slice
// is still "present".
func WithNodeTypeOffset(offsets []int64) Option {
	return func(o *options) {
		o.nodeTypeOffset = offsets
		o.hasNodeTypes = true
	}
}

// WithTypePerEdge marks the graph as edge-heterogeneous.
func WithTypePerEdge(types []int64) Option {
	return func(o *options) {
		o.typePerEdge = types
		o.hasEdgeTypes = true
	}
}

// WithMetadata attaches node/edge type names.
func WithMetadata(md *GraphMetadata) Option {
	return func(o *options) { o.metadata = md }
}

// WithAllocator selects the allocator for the graph's arrays.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{mem: memory.DefaultAllocator, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mem == nil {
		o.mem = memory.DefaultAllocator
	}
	return o
}

// FromCSC validates the arrays and copies them into a new graph. On any
// invariant violation it returns an error wrapping ErrInvalidGraphStructure
// (or ErrInvalidMetadata) and no graph.
func FromCSC(indptr, indices []int64, opts ...Option) (*CSCGraph, error) {
	o := buildOptions(opts)
	raw := rawArrays{
		indptr:         indptr,
		indices:        indices,
		nodeTypeOffset: o.nodeTypeOffset,
		typePerEdge:    o.typePerEdge,
		hasNodeTypes:   o.hasNodeTypes,
		hasEdgeTypes:   o.hasEdgeTypes,
	}
	if err := validate(raw, o.metadata); err != nil {
		metrics.GraphConstructionsTotal.WithLabelValues("csc", "invalid").Inc()
		o.logger.Warn().Err(err).Msg("Rejected CSC graph")
		return nil, err
	}

	b := tensor.Bundle{
		Indptr:  tensor.NewInt64Array(o.mem, indptr),
		Indices: tensor.NewInt64Array(o.mem, indices),
	}
	if o.hasNodeTypes {
		b.NodeTypeOffset = tensor.NewInt64Array(o.mem, o.nodeTypeOffset)
	}
	if o.hasEdgeTypes {
		b.TypePerEdge = tensor.NewInt64Array(o.mem, o.typePerEdge)
	}
	return newGraph(b, o, "csc"), nil
}

// FromArrays builds a graph that shares ownership of existing arrays. Each
// present array is retained; the caller keeps its own references. Node and
// edge type options passed as slices are ignored in favour of the bundle.
func FromArrays(b tensor.Bundle, opts ...Option) (*CSCGraph, error) {
	o := buildOptions(opts)
	if b.Indptr == nil || b.Indices == nil {
		metrics.GraphConstructionsTotal.WithLabelValues("arrow", "invalid").Inc()
		return nil, structureErr("indptr", -1, "indptr and indices are required")
	}
	raw := rawArrays{
		indptr:         b.Indptr.Values(),
		indices:        b.Indices.Values(),
		nodeTypeOffset: b.NodeTypeOffset.Values(),
		typePerEdge:    b.TypePerEdge.Values(),
		hasNodeTypes:   b.HasNodeTypeOffset(),
		hasEdgeTypes:   b.HasTypePerEdge(),
	}
	if err := validate(raw, o.metadata); err != nil {
		metrics.GraphConstructionsTotal.WithLabelValues("arrow", "invalid").Inc()
		o.logger.Warn().Err(err).Msg("Rejected CSC graph")
		return nil, err
	}
	b.Retain()
	return newGraph(b, o, "arrow"), nil
}

func newGraph(b tensor.Bundle, o options, source string) *CSCGraph {
	g := &CSCGraph{arrays: b, metadata: o.metadata, logger: o.logger}
	metrics.GraphConstructionsTotal.WithLabelValues(source, "success").Inc()
	g.logger.Debug().
		Int64("num_nodes", g.NumNodes()).
		Int64("num_edges", g.NumEdges()).
		Bool("node_types", b.HasNodeTypeOffset()).
		Bool("edge_types", b.HasTypePerEdge()).
		Str("source", source).
		Msg("Constructed CSC graph")
	return g
}

// NumNodes returns len(indptr)-1.
func (g *CSCGraph) NumNodes() int64 { return int64(g.arrays.Indptr.Len() - 1) }

// NumEdges returns len(indices).
func (g *CSCGraph) NumEdges() int64 { return int64(g.arrays.Indices.Len()) }

// CSCIndptr returns the column offsets. The view must not be modified.
func (g *CSCGraph) CSCIndptr() *tensor.Int64Array { return g.arrays.Indptr }

// Indices returns the source node of every edge, grouped by destination.
func (g *CSCGraph) Indices() *tensor.Int64Array { return g.arrays.Indices }

// NodeTypeOffset returns the node type partition, or nil for a
// node-homogeneous graph.
func (g *CSCGraph) NodeTypeOffset() *tensor.Int64Array { return g.arrays.NodeTypeOffset }

// TypePerEdge returns the type of every edge, or nil for an
// edge-homogeneous graph.
func (g *CSCGraph) TypePerEdge() *tensor.Int64Array { return g.arrays.TypePerEdge }

// Metadata returns the type names, or nil when none were supplied.
func (g *CSCGraph) Metadata() *GraphMetadata { return g.metadata }

// Arrays returns the graph's array bundle without retaining it.
func (g *CSCGraph) Arrays() tensor.Bundle { return g.arrays }

// InDegree returns the number of incoming edges of node.
func (g *CSCGraph) InDegree(node int64) (int64, error) {
	if node < 0 || node >= g.NumNodes() {
		return 0, &NodeIDError{NodeID: node, NumNodes: g.NumNodes()}
	}
	indptr := g.arrays.Indptr.Values()
	return indptr[node+1] - indptr[node], nil
}

// NodeType returns the type id of node, or 0 for a node-homogeneous graph.
func (g *CSCGraph) NodeType(node int64) (int64, error) {
	if node < 0 || node >= g.NumNodes() {
		return 0, &NodeIDError{NodeID: node, NumNodes: g.NumNodes()}
	}
	if g.arrays.NodeTypeOffset == nil {
		return 0, nil
	}
	offsets := g.arrays.NodeTypeOffset.Values()
	lo, hi := 0, len(offsets)-1
	// Find the last offset <= node; empty type ranges share an offset.
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if offsets[mid] <= node {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return int64(lo), nil
}

// Equal reports whether both graphs hold identical arrays and metadata.
func (g *CSCGraph) Equal(o *CSCGraph) bool {
	return g.arrays.Equal(&o.arrays) && g.metadata.Equal(o.metadata)
}

// Release drops the graph's references to its arrays. The graph must not be
// used afterwards.
func (g *CSCGraph) Release() {
	g.arrays.Release()
}
