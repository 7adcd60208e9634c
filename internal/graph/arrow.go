package graph

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column names of the COO edge schema.
const (
	ColumnSrc   = "src"
	ColumnDst   = "dst"
	ColumnEID   = "eid"
	ColumnEType = "etype"
)

// EdgeSchema returns the COO schema used to export edges. The etype column
// is only present for edge-heterogeneous graphs.
func EdgeSchema(withTypes bool) *arrow.Schema {
	fields := []arrow.Field{
		{Name: ColumnSrc, Type: arrow.PrimitiveTypes.Int64},
		{Name: ColumnDst, Type: arrow.PrimitiveTypes.Int64},
		{Name: ColumnEID, Type: arrow.PrimitiveTypes.Int64},
	}
	if withTypes {
		fields = append(fields, arrow.Field{Name: ColumnEType, Type: arrow.PrimitiveTypes.Int64})
	}
	return arrow.NewSchema(fields, nil)
}

// ToRecord converts the subgraph into a COO record batch with original ids:
// src is the source node, dst the seed, eid the parent edge id.
func (s *SampledSubgraph) ToRecord(mem memory.Allocator) arrow.Record { //nolint:staticcheck
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, EdgeSchema(s.TypePerEdge != nil))
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues(s.Indices, nil)

	dst := b.Field(1).(*array.Int64Builder)
	dst.Reserve(len(s.Indices))
	for k := 0; k < s.NumColumns(); k++ {
		for p := s.Indptr[k]; p < s.Indptr[k+1]; p++ {
			dst.Append(s.ReverseColumnNodeIDs[k])
		}
	}

	b.Field(2).(*array.Int64Builder).AppendValues(s.ReverseEdgeIDs, nil)
	if s.TypePerEdge != nil {
		b.Field(3).(*array.Int64Builder).AppendValues(s.TypePerEdge, nil)
	}
	return b.NewRecord()
}

// ToRecord exports every edge of the graph in COO form, ordered by edge id.
func (g *CSCGraph) ToRecord(mem memory.Allocator) arrow.Record { //nolint:staticcheck
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, EdgeSchema(g.arrays.HasTypePerEdge()))
	defer b.Release()

	numEdges := int(g.NumEdges())
	b.Field(0).(*array.Int64Builder).AppendValues(g.arrays.Indices.Values(), nil)

	indptr := g.arrays.Indptr.Values()
	dst := b.Field(1).(*array.Int64Builder)
	dst.Reserve(numEdges)
	for v := int64(0); v < g.NumNodes(); v++ {
		for e := indptr[v]; e < indptr[v+1]; e++ {
			dst.Append(v)
		}
	}

	eid := b.Field(2).(*array.Int64Builder)
	eid.Reserve(numEdges)
	for e := 0; e < numEdges; e++ {
		eid.Append(int64(e))
	}
	if g.arrays.HasTypePerEdge() {
		b.Field(3).(*array.Int64Builder).AppendValues(g.arrays.TypePerEdge.Values(), nil)
	}
	return b.NewRecord()
}
