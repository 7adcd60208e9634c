// Package edgelist ingests edge lists in coordinate (COO) form from memory,
// Parquet files, or DuckDB queries and converts them to CSC graphs.
package edgelist

import (
	"errors"
	"fmt"

	"github.com/23skdu/cscgraph/internal/graph"
)

// ErrInvalidEdgeList marks inconsistent COO input.
var ErrInvalidEdgeList = errors.New("invalid edge list")

// COO is an edge list. EType is nil for an untyped list; otherwise it has
// one entry per edge.
type COO struct {
	Src   []int64
	Dst   []int64
	EType []int64
}

// Len returns the number of edges.
func (c *COO) Len() int { return len(c.Src) }

// Typed reports whether edges carry a type.
func (c *COO) Typed() bool { return c.EType != nil }

// Append adds an untyped edge.
func (c *COO) Append(src, dst int64) {
	c.Src = append(c.Src, src)
	c.Dst = append(c.Dst, dst)
}

// AppendTyped adds an edge with a type.
func (c *COO) AppendTyped(src, dst, etype int64) {
	c.Append(src, dst)
	c.EType = append(c.EType, etype)
}

// InferNumNodes returns one more than the largest node id, or 0 for an empty
// list.
func (c *COO) InferNumNodes() int64 {
	var n int64
	for i := range c.Src {
		if c.Src[i] >= n {
			n = c.Src[i] + 1
		}
		if c.Dst[i] >= n {
			n = c.Dst[i] + 1
		}
	}
	return n
}

func (c *COO) validate(numNodes int64) error {
	if len(c.Src) != len(c.Dst) {
		return fmt.Errorf("%w: %d sources but %d destinations", ErrInvalidEdgeList, len(c.Src), len(c.Dst))
	}
	if c.EType != nil && len(c.EType) != len(c.Src) {
		return fmt.Errorf("%w: %d edge types for %d edges", ErrInvalidEdgeList, len(c.EType), len(c.Src))
	}
	if numNodes < 0 {
		return fmt.Errorf("%w: negative node count %d", ErrInvalidEdgeList, numNodes)
	}
	for i := range c.Src {
		if c.Src[i] < 0 || c.Src[i] >= numNodes || c.Dst[i] < 0 || c.Dst[i] >= numNodes {
			return fmt.Errorf("%w: edge %d (%d -> %d) outside [0, %d)", ErrInvalidEdgeList, i, c.Src[i], c.Dst[i], numNodes)
		}
	}
	return nil
}

// ToCSC groups edges by destination with a stable counting sort, so edges
// sharing a destination keep their input order. typePerEdge is nil for an
// untyped list.
func (c *COO) ToCSC(numNodes int64) (indptr, indices, typePerEdge []int64, err error) {
	if err := c.validate(numNodes); err != nil {
		return nil, nil, nil, err
	}

	indptr = make([]int64, numNodes+1)
	for _, d := range c.Dst {
		indptr[d+1]++
	}
	for v := int64(0); v < numNodes; v++ {
		indptr[v+1] += indptr[v]
	}

	next := make([]int64, numNodes)
	copy(next, indptr[:numNodes])
	indices = make([]int64, len(c.Src))
	if c.EType != nil {
		typePerEdge = make([]int64, len(c.Src))
	}
	for i, d := range c.Dst {
		pos := next[d]
		next[d]++
		indices[pos] = c.Src[i]
		if typePerEdge != nil {
			typePerEdge[pos] = c.EType[i]
		}
	}
	return indptr, indices, typePerEdge, nil
}

// Build converts the list into a validated graph. Edge types, when present,
// become the graph's type_per_edge.
func (c *COO) Build(numNodes int64, opts ...graph.Option) (*graph.CSCGraph, error) {
	indptr, indices, types, err := c.ToCSC(numNodes)
	if err != nil {
		return nil, err
	}
	if types != nil {
		opts = append(opts, graph.WithTypePerEdge(types))
	}
	return graph.FromCSC(indptr, indices, opts...)
}
