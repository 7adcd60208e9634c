package graph

import (
	"time"

	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// SampledSubgraph is the result of an extraction. Columns are the queried
// seeds in caller order; rows keep their original node ids. All slices are
// owned by the caller and share nothing with the parent graph.
type SampledSubgraph struct {
	// Indptr has one entry per seed plus one; Indptr[k+1]-Indptr[k] is the
	// in-degree of the k-th seed.
	Indptr []int64
	// Indices lists the source node of every extracted edge.
	Indices []int64
	// ReverseRowNodeIDs maps row ids to original node ids. Rows are never
	// renumbered, so it is the identity over [0, NumNodes()) and costs
	// 8*NumNodes() bytes per query regardless of the seeds. It is nil when
	// the query was run WithoutRowMapping.
	ReverseRowNodeIDs []int64
	// ReverseColumnNodeIDs maps local column k to the original seed.
	ReverseColumnNodeIDs []int64
	// ReverseEdgeIDs maps each extracted edge to its position in the parent's
	// indices array.
	ReverseEdgeIDs []int64
	// TypePerEdge is nil when the parent graph is edge-homogeneous.
	TypePerEdge []int64
}

// NumColumns returns the number of seeds the subgraph was extracted for.
func (s *SampledSubgraph) NumColumns() int { return len(s.Indptr) - 1 }

// NumEdges returns the number of extracted edges.
func (s *SampledSubgraph) NumEdges() int { return len(s.Indices) }

// SourceNodes returns the distinct source nodes referenced by the subgraph,
// the set a feature store needs to fetch.
func (s *SampledSubgraph) SourceNodes() *roaring64.Bitmap {
	bm := roaring64.New()
	for _, v := range s.Indices {
		bm.Add(uint64(v))
	}
	return bm
}

// SubgraphOption tunes a single InSubgraph call.
type SubgraphOption func(*subgraphOptions)

type subgraphOptions struct {
	skipRowMapping bool
}

// WithoutRowMapping leaves ReverseRowNodeIDs nil. Extraction then allocates
// only in proportion to the seeds' total in-degree. Use it when the result
// is only streamed or written out.
func WithoutRowMapping() SubgraphOption {
	return func(o *subgraphOptions) { o.skipRowMapping = true }
}

// InSubgraph extracts every incoming edge of each seed. Seeds are processed
// in order and duplicates are kept, each producing its own column. An empty
// seed list yields Indptr [0] and empty mappings. A seed outside
// [0, NumNodes()) fails the call with ErrNodeIDOutOfRange and leaves the
// graph untouched.
func (g *CSCGraph) InSubgraph(seeds []int64, opts ...SubgraphOption) (*SampledSubgraph, error) {
	start := time.Now()
	var o subgraphOptions
	for _, opt := range opts {
		opt(&o)
	}
	numNodes := g.NumNodes()
	indptr := g.arrays.Indptr.Values()

	var total int64
	for i, s := range seeds {
		if s < 0 || s >= numNodes {
			metrics.SubgraphQueriesTotal.WithLabelValues("out_of_range").Inc()
			return nil, &NodeIDError{Position: i, NodeID: s, NumNodes: numNodes}
		}
		total += indptr[s+1] - indptr[s]
	}

	indices := g.arrays.Indices.Values()
	typed := g.arrays.HasTypePerEdge()
	types := g.arrays.TypePerEdge.Values()

	sg := &SampledSubgraph{
		Indptr:               make([]int64, len(seeds)+1),
		Indices:              make([]int64, 0, total),
		ReverseColumnNodeIDs: make([]int64, len(seeds)),
		ReverseEdgeIDs:       make([]int64, 0, total),
	}
	copy(sg.ReverseColumnNodeIDs, seeds)
	if typed {
		sg.TypePerEdge = make([]int64, 0, total)
	}

	for k, s := range seeds {
		lo, hi := indptr[s], indptr[s+1]
		sg.Indices = append(sg.Indices, indices[lo:hi]...)
		for e := lo; e < hi; e++ {
			sg.ReverseEdgeIDs = append(sg.ReverseEdgeIDs, e)
		}
		if typed {
			sg.TypePerEdge = append(sg.TypePerEdge, types[lo:hi]...)
		}
		sg.Indptr[k+1] = int64(len(sg.Indices))
	}

	if !o.skipRowMapping {
		sg.ReverseRowNodeIDs = rowIdentity(numNodes, len(seeds))
	}

	metrics.SubgraphQueriesTotal.WithLabelValues("success").Inc()
	metrics.SubgraphSeedsPerQuery.Observe(float64(len(seeds)))
	metrics.SubgraphEdgesEmitted.Observe(float64(total))
	metrics.SubgraphQueryDurationSeconds.Observe(time.Since(start).Seconds())
	return sg, nil
}

// rowIdentity maps row ids onto themselves: source ids are never renumbered,
// so any of [0, numNodes) may appear as a row. A subgraph with no columns
// has no rows.
func rowIdentity(numNodes int64, numSeeds int) []int64 {
	if numSeeds == 0 {
		return []int64{}
	}
	ids := make([]int64, numNodes)
	for i := range ids {
		ids[i] = int64(i)
	}
	return ids
}
