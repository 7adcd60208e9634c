package graph

// rawArrays is the validation view of a graph's arrays.
type rawArrays struct {
	indptr         []int64
	indices        []int64
	nodeTypeOffset []int64
	typePerEdge    []int64
	hasNodeTypes   bool
	hasEdgeTypes   bool
}

// validate checks every construction invariant and returns the first
// violation found.
func validate(a rawArrays, md *GraphMetadata) error {
	if len(a.indptr) == 0 {
		return structureErr("indptr", -1, "must contain at least one element")
	}
	if a.indptr[0] != 0 {
		return structureErr("indptr", 0, "must be 0, got %d", a.indptr[0])
	}
	for i := 1; i < len(a.indptr); i++ {
		if a.indptr[i] < a.indptr[i-1] {
			return structureErr("indptr", int64(i), "not monotonic: %d < %d", a.indptr[i], a.indptr[i-1])
		}
	}
	numNodes := int64(len(a.indptr) - 1)
	numEdges := int64(len(a.indices))
	if last := a.indptr[numNodes]; last != numEdges {
		return structureErr("indptr", numNodes, "last offset %d does not match %d indices", last, numEdges)
	}
	for i, v := range a.indices {
		if v < 0 || v >= numNodes {
			return structureErr("indices", int64(i), "node id %d not in [0, %d)", v, numNodes)
		}
	}

	if a.hasNodeTypes {
		if err := validateNodeTypeOffset(a.nodeTypeOffset, numNodes); err != nil {
			return err
		}
	}
	if a.hasEdgeTypes && int64(len(a.typePerEdge)) != numEdges {
		return structureErr("type_per_edge", -1, "length %d does not match %d edges", len(a.typePerEdge), numEdges)
	}

	if md == nil {
		return nil
	}
	if err := md.Validate(); err != nil {
		return err
	}
	if a.hasNodeTypes && len(a.nodeTypeOffset) != md.NumNodeTypes()+1 {
		return structureErr("node_type_offset", -1, "length %d does not match %d node types",
			len(a.nodeTypeOffset), md.NumNodeTypes())
	}
	if a.hasNodeTypes {
		// Position i of node_type_offset is type id i, and ids are unique and
		// non-negative, so bounding them by the type count makes them dense.
		numTypes := int64(md.NumNodeTypes())
		for _, name := range md.NodeTypes() {
			if id := md.NodeTypeToID[name]; id >= numTypes {
				return structureErr("node_type_offset", -1,
					"node type %q has id %d, want ids 0..%d matching offset positions", name, id, numTypes-1)
			}
		}
	}
	if a.hasEdgeTypes {
		known := md.edgeTypeIDs()
		for i, t := range a.typePerEdge {
			if _, ok := known[t]; !ok {
				return structureErr("type_per_edge", int64(i), "unknown edge type id %d", t)
			}
		}
	}
	return nil
}

func validateNodeTypeOffset(offsets []int64, numNodes int64) error {
	if len(offsets) == 0 {
		return structureErr("node_type_offset", -1, "must contain at least one element")
	}
	if offsets[0] != 0 {
		return structureErr("node_type_offset", 0, "must be 0, got %d", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return structureErr("node_type_offset", int64(i), "not sorted: %d < %d", offsets[i], offsets[i-1])
		}
	}
	if last := offsets[len(offsets)-1]; last != numNodes {
		return structureErr("node_type_offset", int64(len(offsets)-1), "must end at %d, got %d", numNodes, last)
	}
	return nil
}
