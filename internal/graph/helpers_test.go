package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Original graph in COO (rows are sources, columns destinations):
//
//	1   0   1   0   1
//	1   0   1   1   0
//	0   1   0   1   0
//	0   1   0   0   1
//	1   0   0   0   1
var (
	fiveIndptr  = []int64{0, 3, 5, 7, 9, 12}
	fiveIndices = []int64{0, 1, 4, 2, 3, 0, 1, 1, 2, 0, 3, 4}
	// node_type_0: [0, 1], node_type_1: [2, 3, 4]
	fiveNodeTypeOffset = []int64{0, 2, 5}
	fiveTypePerEdge    = []int64{0, 0, 2, 2, 2, 1, 1, 1, 3, 1, 3, 3}
)

func fiveMetadata(t *testing.T) *GraphMetadata {
	t.Helper()
	md, err := NewGraphMetadata(
		map[string]int64{"N0": 0, "N1": 1},
		map[string]int64{
			EdgeTypeKey("N0", "R0", "N0"): 0,
			EdgeTypeKey("N0", "R1", "N1"): 1,
			EdgeTypeKey("N1", "R2", "N0"): 2,
			EdgeTypeKey("N1", "R3", "N1"): 3,
		},
	)
	require.NoError(t, err)
	return md
}

func mustFromCSC(t *testing.T, indptr, indices []int64, opts ...Option) *CSCGraph {
	t.Helper()
	g, err := FromCSC(indptr, indices, opts...)
	require.NoError(t, err)
	t.Cleanup(g.Release)
	return g
}

// randomCSC builds a valid CSC structure. numEdges is forced to zero when
// there are no nodes.
func randomCSC(r *rand.Rand, numNodes, numEdges int) (indptr, indices []int64) {
	if numNodes == 0 {
		numEdges = 0
	}
	indptr = make([]int64, numNodes+1)
	for i := 1; i < numNodes; i++ {
		indptr[i] = int64(r.Intn(numEdges + 1))
	}
	indptr[numNodes] = int64(numEdges)
	sortInt64s(indptr)
	indices = make([]int64, numEdges)
	for i := range indices {
		indices[i] = int64(r.Intn(numNodes))
	}
	return indptr, indices
}

// randomEdgeTypes assigns each edge a type in [0, numTypes).
func randomEdgeTypes(r *rand.Rand, numEdges, numTypes int) []int64 {
	types := make([]int64, numEdges)
	for i := range types {
		types[i] = int64(r.Intn(numTypes))
	}
	return types
}

func sortInt64s(a []int64) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}
