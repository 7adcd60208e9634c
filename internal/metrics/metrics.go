package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Graph Construction & Query Metrics
// =============================================================================

var (
	// GraphConstructionsTotal counts CSC graph constructions by source and result.
	GraphConstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_constructions_total",
			Help: "Total number of CSC graph constructions",
		},
		[]string{"source", "result"}, // source: csc, arrow, coo; result: success, invalid
	)

	// SubgraphQueriesTotal counts in-subgraph queries by result.
	SubgraphQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_subgraph_queries_total",
			Help: "Total number of in-subgraph queries",
		},
		[]string{"result"},
	)

	// SubgraphQueryDurationSeconds measures in-subgraph extraction latency.
	SubgraphQueryDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cscgraph_subgraph_query_duration_seconds",
			Help:    "Latency of in-subgraph extraction",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	// SubgraphSeedsPerQuery tracks the number of seeds supplied per query.
	SubgraphSeedsPerQuery = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cscgraph_subgraph_seeds_per_query",
			Help:    "Number of seed nodes per in-subgraph query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// SubgraphEdgesEmitted tracks the number of edges emitted per query.
	SubgraphEdgesEmitted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cscgraph_subgraph_edges_emitted",
			Help:    "Number of edges in each extracted in-subgraph",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		},
	)

	// BatchQueriesInFlight tracks in-subgraph queries running inside a batch.
	BatchQueriesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cscgraph_batch_queries_in_flight",
			Help: "Number of in-subgraph queries currently executing in batch workers",
		},
	)
)

// =============================================================================
// Serializer Metrics
// =============================================================================

var (
	// SerializerBytesTotal tracks bytes written or read by the serializer.
	SerializerBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_serializer_bytes_total",
			Help: "Total bytes processed by the graph serializer",
		},
		[]string{"direction"}, // write, read
	)

	// SerializerDurationSeconds measures Save and Load durations.
	SerializerDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cscgraph_serializer_duration_seconds",
			Help:    "Duration of graph Save and Load operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"op"},
	)

	// SerializerErrorsTotal counts serializer failures by kind.
	SerializerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_serializer_errors_total",
			Help: "Total serializer failures",
		},
		[]string{"op", "kind"}, // kind: io, malformed, invalid
	)
)

// =============================================================================
// Storage Backend Metrics
// =============================================================================

var (
	// StorageOperationsTotal counts backend operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "op", "result"},
	)

	// StorageBytesTotal tracks bytes moved through storage backends.
	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_storage_bytes_total",
			Help: "Total bytes written to or read from storage backends",
		},
		[]string{"backend", "direction"},
	)
)

// =============================================================================
// Flight Metrics
// =============================================================================

var (
	// FlightOperationsTotal counts Flight operations by method and status.
	FlightOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_flight_operations_total",
			Help: "The total number of processed Arrow Flight operations",
		},
		[]string{"method", "status"},
	)

	// FlightDurationSeconds measures the latency of Flight operations.
	FlightDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cscgraph_flight_duration_seconds",
			Help:    "Duration of Arrow Flight operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RateLimitRequestsTotal counts rate limiter decisions by method.
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_rate_limit_requests_total",
			Help: "Flight requests admitted or rejected by the rate limiter",
		},
		[]string{"method", "result"}, // result: allowed, throttled
	)
)

// =============================================================================
// Allocator Metrics
// =============================================================================

var (
	// AllocatorBytesAllocatedTotal tracks bytes handed out per consumer.
	AllocatorBytesAllocatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_allocator_bytes_allocated_total",
			Help: "Total bytes allocated from Arrow allocators",
		},
		[]string{"consumer"}, // graph, flight
	)

	// AllocatorBytesFreedTotal tracks bytes returned per consumer.
	AllocatorBytesFreedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cscgraph_allocator_bytes_freed_total",
			Help: "Total bytes freed back to Arrow allocators",
		},
		[]string{"consumer"},
	)

	// AllocatorLiveBytes tracks bytes currently held per consumer.
	AllocatorLiveBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cscgraph_allocator_live_bytes",
			Help: "Bytes currently held by graph arrays or Flight batches",
		},
		[]string{"consumer"},
	)
)
