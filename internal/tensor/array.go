// Package tensor provides the immutable, reference-counted integer arrays
// that back a CSC graph. Arrays are thin wrappers over Arrow Int64 arrays so
// that ownership can be shared between a graph, its accessors, and Arrow
// consumers (Flight streams, Parquet writers) without copying.
package tensor

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ElementWidth is the byte width of every array element.
const ElementWidth = 8

// Int64Array is an immutable sequence of int64 values.
//
// The zero length array is valid and has no backing buffer. Values returned
// by Values and Slice alias the underlying buffer and must not be modified.
type Int64Array struct {
	arr *array.Int64
}

// NewInt64Array copies values into a buffer owned by mem.
// A nil allocator selects memory.DefaultAllocator.
func NewInt64Array(mem memory.Allocator, values []int64) *Int64Array {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Reserve(len(values))
	b.AppendValues(values, nil)
	return &Int64Array{arr: b.NewInt64Array()}
}

// WrapInt64 shares ownership of an existing Arrow array. The array is
// retained; the caller keeps its own reference.
func WrapInt64(arr *array.Int64) *Int64Array {
	arr.Retain()
	return &Int64Array{arr: arr}
}

// Len returns the number of elements.
func (a *Int64Array) Len() int {
	if a == nil || a.arr == nil {
		return 0
	}
	return a.arr.Len()
}

// Value returns the element at index i.
func (a *Int64Array) Value(i int) int64 {
	return a.arr.Value(i)
}

// Values returns a read-only view of all elements.
func (a *Int64Array) Values() []int64 {
	if a == nil || a.arr == nil {
		return nil
	}
	return a.arr.Int64Values()
}

// Slice returns a read-only view of elements [i, j).
func (a *Int64Array) Slice(i, j int64) []int64 {
	return a.Values()[i:j]
}

// Last returns the final element, or 0 for an empty array.
func (a *Int64Array) Last() int64 {
	n := a.Len()
	if n == 0 {
		return 0
	}
	return a.arr.Value(n - 1)
}

// Arrow exposes the underlying Arrow array. The caller must Retain it if it
// outlives this Int64Array.
func (a *Int64Array) Arrow() *array.Int64 {
	return a.arr
}

// DataType reports the Arrow element type.
func (a *Int64Array) DataType() arrow.DataType {
	return arrow.PrimitiveTypes.Int64
}

// SizeBytes returns the payload size in bytes.
func (a *Int64Array) SizeBytes() int {
	return a.Len() * ElementWidth
}

// Retain increments the reference count.
func (a *Int64Array) Retain() {
	if a != nil && a.arr != nil {
		a.arr.Retain()
	}
}

// Release decrements the reference count and frees the buffer at zero.
func (a *Int64Array) Release() {
	if a != nil && a.arr != nil {
		a.arr.Release()
	}
}

// Equal reports whether both arrays hold the same elements. Two absent
// (nil) arrays are equal; an absent array never equals a present one.
func (a *Int64Array) Equal(b *Int64Array) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := a.Values(), b.Values()
	if len(av) != len(bv) {
		return false
	}
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}
