package graph

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	mutateNone = iota
	mutateIndptrOrder
	mutateIndexRange
	mutateIndptrLast
	mutateIndptrFirst
	numMutations
)

// perturb applies one invariant violation to a valid structure. It returns
// false when the structure is too small for the requested mutation.
func perturb(r *rand.Rand, kind int, indptr, indices []int64) bool {
	numNodes := len(indptr) - 1
	switch kind {
	case mutateIndptrOrder:
		if numNodes == 0 {
			return false
		}
		i := 1 + r.Intn(numNodes)
		indptr[i] = indptr[i-1] - 1
	case mutateIndexRange:
		if len(indices) == 0 {
			return false
		}
		j := r.Intn(len(indices))
		if r.Intn(2) == 0 {
			indices[j] = int64(numNodes + r.Intn(10))
		} else {
			indices[j] = -1 - int64(r.Intn(10))
		}
	case mutateIndptrLast:
		indptr[numNodes] += 1 + int64(r.Intn(3))
	case mutateIndptrFirst:
		indptr[0] = 1 + int64(r.Intn(3))
	}
	return true
}

func TestProperty_ConstructionValidity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("construction succeeds iff invariants hold", prop.ForAll(
		func(seed int64, numNodes, numEdges, kind int) bool {
			r := rand.New(rand.NewSource(seed))
			indptr, indices := randomCSC(r, numNodes, numEdges)
			if !perturb(r, kind, indptr, indices) {
				kind = mutateNone
			}

			g, err := FromCSC(indptr, indices)
			if kind == mutateNone {
				if err != nil {
					return false
				}
				g.Release()
				return true
			}
			return g == nil && errors.Is(err, ErrInvalidGraphStructure)
		},
		gen.Int64(),
		gen.IntRange(0, 40),
		gen.IntRange(0, 150),
		gen.IntRange(0, numMutations-1),
	))

	properties.TestingRun(t)
}

func TestProperty_InSubgraph(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	build := func(seed int64, numNodes, numEdges int) (*CSCGraph, []int64, []int64, *rand.Rand) {
		r := rand.New(rand.NewSource(seed))
		indptr, indices := randomCSC(r, numNodes, numEdges)
		types := randomEdgeTypes(r, len(indices), 4)
		g, err := FromCSC(indptr, indices, WithTypePerEdge(types))
		if err != nil {
			t.Fatalf("valid graph rejected: %v", err)
		}
		return g, indptr, types, r
	}
	seedsFor := func(r *rand.Rand, numNodes, n int) []int64 {
		seeds := make([]int64, n)
		for i := range seeds {
			seeds[i] = int64(r.Intn(numNodes))
		}
		return seeds
	}

	properties.Property("indptr sums in-degrees of the seeds", prop.ForAll(
		func(seed int64, numNodes, numEdges, numSeeds int) bool {
			g, indptr, _, r := build(seed, numNodes, numEdges)
			defer g.Release()
			seeds := seedsFor(r, numNodes, numSeeds)

			sg, err := g.InSubgraph(seeds)
			if err != nil || len(sg.Indptr) != len(seeds)+1 || sg.Indptr[0] != 0 {
				return false
			}
			for k, s := range seeds {
				if sg.Indptr[k+1]-sg.Indptr[k] != indptr[s+1]-indptr[s] {
					return false
				}
			}
			last := sg.Indptr[len(seeds)]
			return last == int64(len(sg.Indices)) && last == int64(len(sg.ReverseEdgeIDs))
		},
		gen.Int64(),
		gen.IntRange(1, 40),
		gen.IntRange(0, 150),
		gen.IntRange(0, 20),
	))

	properties.Property("columns map back to the seeds", prop.ForAll(
		func(seed int64, numNodes, numEdges, numSeeds int) bool {
			g, _, _, r := build(seed, numNodes, numEdges)
			defer g.Release()
			seeds := seedsFor(r, numNodes, numSeeds)

			sg, err := g.InSubgraph(seeds)
			if err != nil || len(sg.ReverseColumnNodeIDs) != len(seeds) {
				return false
			}
			for i := range seeds {
				if sg.ReverseColumnNodeIDs[i] != seeds[i] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 40),
		gen.IntRange(0, 150),
		gen.IntRange(0, 20),
	))

	properties.Property("edges agree with the parent", prop.ForAll(
		func(seed int64, numNodes, numEdges, numSeeds int) bool {
			g, indptr, types, r := build(seed, numNodes, numEdges)
			defer g.Release()
			seeds := seedsFor(r, numNodes, numSeeds)
			parent := g.Indices().Values()

			sg, err := g.InSubgraph(seeds)
			if err != nil {
				return false
			}
			for k, s := range seeds {
				for p := sg.Indptr[k]; p < sg.Indptr[k+1]; p++ {
					e := sg.ReverseEdgeIDs[p]
					if e < indptr[s] || e >= indptr[s+1] {
						return false
					}
					if parent[e] != sg.Indices[p] || types[e] != sg.TypePerEdge[p] {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 40),
		gen.IntRange(0, 150),
		gen.IntRange(0, 20),
	))

	properties.Property("any out-of-range seed fails the query", prop.ForAll(
		func(seed int64, numNodes, numEdges, offset int) bool {
			g, _, _, r := build(seed, numNodes, numEdges)
			defer g.Release()
			seeds := seedsFor(r, numNodes, 3)
			seeds[r.Intn(3)] = int64(numNodes + offset)

			sg, err := g.InSubgraph(seeds)
			return sg == nil && errors.Is(err, ErrNodeIDOutOfRange)
		},
		gen.Int64(),
		gen.IntRange(1, 40),
		gen.IntRange(0, 150),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
