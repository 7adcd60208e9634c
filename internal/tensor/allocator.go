package tensor

import (
	"sync/atomic"

	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
)

// Consumers that allocator byte counts are attributed to.
const (
	// ConsumerGraph backs the CSC arrays of loaded and built graphs.
	ConsumerGraph = "graph"
	// ConsumerFlight backs record batches built for DoGet streams.
	ConsumerFlight = "flight"
)

// ConsumerAllocator is an Arrow allocator that attributes every byte it hands
// out to one consumer in the cscgraph_allocator_* series. Graph arrays and
// outgoing Flight batches use separate allocators.
type ConsumerAllocator struct {
	base     memory.Allocator
	consumer string

	allocated atomic.Int64
	freed     atomic.Int64

	allocatedTotal prometheus.Counter
	freedTotal     prometheus.Counter
	live           prometheus.Gauge
}

// NewConsumerAllocator wraps base, memory.DefaultAllocator when nil.
func NewConsumerAllocator(consumer string, base memory.Allocator) *ConsumerAllocator {
	if base == nil {
		base = memory.DefaultAllocator
	}
	return &ConsumerAllocator{
		base:           base,
		consumer:       consumer,
		allocatedTotal: metrics.AllocatorBytesAllocatedTotal.WithLabelValues(consumer),
		freedTotal:     metrics.AllocatorBytesFreedTotal.WithLabelValues(consumer),
		live:           metrics.AllocatorLiveBytes.WithLabelValues(consumer),
	}
}

// Consumer returns the label the allocator reports under.
func (a *ConsumerAllocator) Consumer() string { return a.consumer }

// Allocated returns the total bytes handed out.
func (a *ConsumerAllocator) Allocated() int64 { return a.allocated.Load() }

// Freed returns the total bytes given back.
func (a *ConsumerAllocator) Freed() int64 { return a.freed.Load() }

// LiveBytes returns the bytes currently held by the consumer.
func (a *ConsumerAllocator) LiveBytes() int64 { return a.allocated.Load() - a.freed.Load() }

func (a *ConsumerAllocator) Allocate(size int) []byte {
	a.grow(size)
	return a.base.Allocate(size)
}

// Reallocate replaces b with a buffer of size bytes; the old buffer counts
// as freed.
func (a *ConsumerAllocator) Reallocate(size int, b []byte) []byte {
	a.grow(size)
	a.shrink(len(b))
	return a.base.Reallocate(size, b)
}

func (a *ConsumerAllocator) Free(b []byte) {
	a.shrink(len(b))
	a.base.Free(b)
}

func (a *ConsumerAllocator) grow(n int) {
	a.allocated.Add(int64(n))
	a.allocatedTotal.Add(float64(n))
	a.live.Add(float64(n))
}

func (a *ConsumerAllocator) shrink(n int) {
	a.freed.Add(int64(n))
	a.freedTotal.Add(float64(n))
	a.live.Sub(float64(n))
}

var _ memory.Allocator = (*ConsumerAllocator)(nil)
