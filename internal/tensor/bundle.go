package tensor

// Bundle groups the arrays describing one CSC graph. NodeTypeOffset and
// TypePerEdge are nil when the graph is homogeneous in that dimension.
type Bundle struct {
	Indptr         *Int64Array
	Indices        *Int64Array
	NodeTypeOffset *Int64Array
	TypePerEdge    *Int64Array
}

// HasNodeTypeOffset reports whether node types are present.
func (b *Bundle) HasNodeTypeOffset() bool { return b.NodeTypeOffset != nil }

// HasTypePerEdge reports whether edge types are present.
func (b *Bundle) HasTypePerEdge() bool { return b.TypePerEdge != nil }

// Retain increments the reference count of every present array.
func (b *Bundle) Retain() {
	for _, a := range b.arrays() {
		a.Retain()
	}
}

// Release decrements the reference count of every present array.
func (b *Bundle) Release() {
	for _, a := range b.arrays() {
		a.Release()
	}
}

// SizeBytes returns the total payload size of all present arrays.
func (b *Bundle) SizeBytes() int {
	n := 0
	for _, a := range b.arrays() {
		n += a.SizeBytes()
	}
	return n
}

// Equal compares every array element-for-element, including presence.
func (b *Bundle) Equal(o *Bundle) bool {
	return b.Indptr.Equal(o.Indptr) &&
		b.Indices.Equal(o.Indices) &&
		b.NodeTypeOffset.Equal(o.NodeTypeOffset) &&
		b.TypePerEdge.Equal(o.TypePerEdge)
}

func (b *Bundle) arrays() []*Int64Array {
	out := make([]*Int64Array, 0, 4)
	for _, a := range []*Int64Array{b.Indptr, b.Indices, b.NodeTypeOffset, b.TypePerEdge} {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
