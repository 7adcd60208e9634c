package graph

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeTypeSeparator joins the parts of a canonical edge type key.
const EdgeTypeSeparator = ":"

// GraphMetadata names the node and edge types of a heterogeneous graph.
// Edge types are keyed "src:etype:dst".
type GraphMetadata struct {
	NodeTypeToID map[string]int64 `json:"node_type_to_id"`
	EdgeTypeToID map[string]int64 `json:"edge_type_to_id"`
}

// NewGraphMetadata builds and validates metadata. The maps are copied.
func NewGraphMetadata(nodeTypes, edgeTypes map[string]int64) (*GraphMetadata, error) {
	md := &GraphMetadata{
		NodeTypeToID: make(map[string]int64, len(nodeTypes)),
		EdgeTypeToID: make(map[string]int64, len(edgeTypes)),
	}
	for k, v := range nodeTypes {
		md.NodeTypeToID[k] = v
	}
	for k, v := range edgeTypes {
		md.EdgeTypeToID[k] = v
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

// EdgeTypeKey builds the canonical key for an edge type.
func EdgeTypeKey(src, etype, dst string) string {
	return src + EdgeTypeSeparator + etype + EdgeTypeSeparator + dst
}

// ParseEdgeType splits a canonical edge type key into its parts.
func ParseEdgeType(key string) (src, etype, dst string, err error) {
	parts := strings.Split(key, EdgeTypeSeparator)
	if len(parts) != 3 {
		return "", "", "", &MetadataError{Key: key, Message: "edge type must have the form src:etype:dst"}
	}
	for _, p := range parts {
		if p == "" {
			return "", "", "", &MetadataError{Key: key, Message: "edge type parts must be non-empty"}
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// Validate checks that type ids are non-negative and unique and that every
// edge type connects known node types.
func (m *GraphMetadata) Validate() error {
	if err := uniqueIDs(m.NodeTypeToID, "node"); err != nil {
		return err
	}
	if err := uniqueIDs(m.EdgeTypeToID, "edge"); err != nil {
		return err
	}
	for key := range m.EdgeTypeToID {
		src, _, dst, err := ParseEdgeType(key)
		if err != nil {
			return err
		}
		if _, ok := m.NodeTypeToID[src]; !ok {
			return &MetadataError{Key: key, Message: fmt.Sprintf("unknown source node type %q", src)}
		}
		if _, ok := m.NodeTypeToID[dst]; !ok {
			return &MetadataError{Key: key, Message: fmt.Sprintf("unknown destination node type %q", dst)}
		}
	}
	return nil
}

func uniqueIDs(types map[string]int64, kind string) error {
	seen := make(map[int64]string, len(types))
	for name, id := range types {
		if name == "" {
			return &MetadataError{Message: kind + " type name must be non-empty"}
		}
		if id < 0 {
			return &MetadataError{Key: name, Message: fmt.Sprintf("%s type id %d is negative", kind, id)}
		}
		if prev, dup := seen[id]; dup {
			return &MetadataError{Key: name, Message: fmt.Sprintf("%s type id %d already used by %q", kind, id, prev)}
		}
		seen[id] = name
	}
	return nil
}

// NumNodeTypes returns the number of node types.
func (m *GraphMetadata) NumNodeTypes() int { return len(m.NodeTypeToID) }

// NumEdgeTypes returns the number of edge types.
func (m *GraphMetadata) NumEdgeTypes() int { return len(m.EdgeTypeToID) }

// NodeTypes returns node type names ordered by id.
func (m *GraphMetadata) NodeTypes() []string { return namesByID(m.NodeTypeToID) }

// EdgeTypes returns edge type keys ordered by id.
func (m *GraphMetadata) EdgeTypes() []string { return namesByID(m.EdgeTypeToID) }

func namesByID(types map[string]int64) []string {
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return types[names[i]] < types[names[j]] })
	return names
}

func (m *GraphMetadata) edgeTypeIDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(m.EdgeTypeToID))
	for _, v := range m.EdgeTypeToID {
		ids[v] = struct{}{}
	}
	return ids
}

// Equal compares both type maps.
func (m *GraphMetadata) Equal(o *GraphMetadata) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	return mapsEqual(m.NodeTypeToID, o.NodeTypeToID) && mapsEqual(m.EdgeTypeToID, o.EdgeTypeToID)
}

func mapsEqual(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
