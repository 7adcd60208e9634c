// Package flight serves in-subgraph extraction over Arrow Flight. DoGet
// streams the incoming edges of the ticket's seeds as COO record batches;
// DoAction exposes graph management and inspection.
package flight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultGraph is the name tickets fall back to when they name no graph.
const DefaultGraph = "default"

// Action types handled by DoAction.
const (
	ActionGraphInfo   = "graph-info"
	ActionListGraphs  = "list-graphs"
	ActionLoadGraph   = "load-graph"
	ActionUnloadGraph = "unload-graph"
)

var errGraphNotRegistered = errors.New("graph not registered")

// LoaderFunc loads a graph from a storage location for ActionLoadGraph.
type LoaderFunc func(ctx context.Context, location string) (*graph.CSCGraph, error)

// Server implements the Arrow Flight service over a set of named graphs.
type Server struct {
	flight.BaseFlightServer

	mu     sync.RWMutex
	graphs map[string]*graph.CSCGraph

	mem          memory.Allocator
	loader       LoaderFunc
	minChunkRows int
	maxChunkRows int
	logger       zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllocator sets the allocator used for outgoing record batches.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Server) { s.mem = mem }
}

// WithLoader enables ActionLoadGraph.
func WithLoader(fn LoaderFunc) Option {
	return func(s *Server) { s.loader = fn }
}

// WithChunkRows bounds the row count of each DoGet record batch.
func WithChunkRows(minRows, maxRows int) Option {
	return func(s *Server) {
		s.minChunkRows = minRows
		s.maxChunkRows = maxRows
	}
}

// NewServer returns a server with no graphs registered.
func NewServer(logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		graphs:       make(map[string]*graph.CSCGraph),
		mem:          memory.DefaultAllocator,
		minChunkRows: DefaultMinChunkRows,
		maxChunkRows: DefaultMaxChunkRows,
		logger:       logger.With().Str("component", "flight").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register makes g queryable under name, replacing and releasing any graph
// previously registered under it.
func (s *Server) Register(name string, g *graph.CSCGraph) {
	s.mu.Lock()
	old := s.graphs[name]
	s.graphs[name] = g
	s.mu.Unlock()
	if old != nil && old != g {
		old.Release()
	}
	s.logger.Info().Str("graph", name).Int64("nodes", g.NumNodes()).Int64("edges", g.NumEdges()).Msg("Graph registered")
}

// Unregister removes and releases the graph registered under name.
func (s *Server) Unregister(name string) bool {
	s.mu.Lock()
	g, ok := s.graphs[name]
	delete(s.graphs, name)
	s.mu.Unlock()
	if ok {
		g.Release()
		s.logger.Info().Str("graph", name).Msg("Graph unregistered")
	}
	return ok
}

// Close releases every registered graph.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, g := range s.graphs {
		g.Release()
		delete(s.graphs, name)
	}
}

// Names returns the registered graph names in sorted order.
func (s *Server) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// withGraph runs fn on the named graph while holding the registry read
// lock, so Register and Unregister cannot release it mid-query.
func (s *Server) withGraph(name string, fn func(g *graph.CSCGraph, name string) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		if g, ok := s.graphs[DefaultGraph]; ok {
			return fn(g, DefaultGraph)
		}
		if len(s.graphs) == 1 {
			for only, g := range s.graphs {
				return fn(g, only)
			}
		}
		return fmt.Errorf("%w: ticket names no graph and no default is set", errGraphNotRegistered)
	}
	g, ok := s.graphs[name]
	if !ok {
		return fmt.Errorf("%w: %s", errGraphNotRegistered, name)
	}
	return fn(g, name)
}

func observe(method string, start time.Time, err error) {
	metrics.FlightOperationsTotal.WithLabelValues(method, status.Code(err).String()).Inc()
	metrics.FlightDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// DoGet extracts the in-subgraph of the ticket's seeds and streams it in
// COO form: src, dst (the seed), eid and, for typed graphs, etype. Edges
// are grouped by seed in ticket order.
func (s *Server) DoGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) (err error) {
	start := time.Now()
	defer func() {
		err = ToGRPCStatus(err)
		observe("DoGet", start, err)
	}()

	ticket, err := ParseTicket(tkt.GetTicket())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	var (
		sg   *graph.SampledSubgraph
		name string
	)
	err = s.withGraph(ticket.Graph, func(g *graph.CSCGraph, n string) error {
		name = n
		var err error
		sg, err = g.InSubgraph(ticket.Seeds, graph.WithoutRowMapping())
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("graph", ticket.Graph).Int("seeds", len(ticket.Seeds)).Msg("DoGet rejected")
		return err
	}

	rec := sg.ToRecord(s.mem)
	defer rec.Release()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.mem))
	if err := s.streamRecord(stream.Context(), w, rec); err != nil {
		return err
	}

	s.logger.Debug().
		Str("graph", name).
		Int("seeds", len(ticket.Seeds)).
		Int("edges", sg.NumEdges()).
		Dur("elapsed", time.Since(start)).
		Msg("DoGet served")
	return nil
}

// recordWriter is the part of *flight.Writer that DoGet drives.
type recordWriter interface {
	Write(rec arrow.Record) error //nolint:staticcheck
	Close() error
}

// streamRecord writes rec in growing chunks and closes w. An empty record is
// written once so the client still receives the schema. w is closed on
// every path; a failed close fails the call.
func (s *Server) streamRecord(ctx context.Context, w recordWriter, rec arrow.Record) error { //nolint:staticcheck
	if err := s.writeChunks(ctx, w, rec); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return status.Errorf(codes.Internal, "failed to finish stream: %v", err)
	}
	return nil
}

func (s *Server) writeChunks(ctx context.Context, w recordWriter, rec arrow.Record) error { //nolint:staticcheck
	if rec.NumRows() == 0 {
		if err := w.Write(rec); err != nil {
			return status.Errorf(codes.Internal, "failed to write record: %v", err)
		}
		return nil
	}
	sizer := newChunkSizer(s.minChunkRows, s.maxChunkRows)
	for _, b := range sizer.bounds(rec.NumRows()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeSlice(w, rec, b[0], b[1]); err != nil {
			return status.Errorf(codes.Internal, "failed to write record: %v", err)
		}
	}
	return nil
}

func writeSlice(w recordWriter, rec arrow.Record, i, j int64) error { //nolint:staticcheck
	slice := rec.NewSlice(i, j)
	defer slice.Release()
	return w.Write(slice)
}

func (s *Server) flightInfo(name string, g *graph.CSCGraph) *flight.FlightInfo {
	schema := graph.EdgeSchema(g.TypePerEdge() != nil)
	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(schema, s.mem),
		FlightDescriptor: &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{name}},
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: SubgraphTicket{Graph: name}.Encode()},
		}},
		TotalRecords: g.NumEdges(),
		TotalBytes:   -1,
	}
}

// GetFlightInfo describes the graph named by a PATH descriptor.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (info *flight.FlightInfo, err error) {
	start := time.Now()
	defer func() {
		err = ToGRPCStatus(err)
		observe("GetFlightInfo", start, err)
	}()

	if desc == nil || len(desc.Path) == 0 {
		return nil, status.Error(codes.InvalidArgument, "descriptor path is required")
	}
	err = s.withGraph(desc.Path[0], func(g *graph.CSCGraph, name string) error {
		info = s.flightInfo(name, g)
		return nil
	})
	return info, err
}

// GetSchema returns the edge schema of the graph named by a PATH descriptor.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	info, err := s.GetFlightInfo(ctx, desc)
	if err != nil {
		return nil, err
	}
	return &flight.SchemaResult{Schema: info.Schema}, nil
}

// ListFlights streams one FlightInfo per registered graph.
func (s *Server) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) (err error) {
	start := time.Now()
	defer func() {
		err = ToGRPCStatus(err)
		observe("ListFlights", start, err)
	}()

	var infos []*flight.FlightInfo
	for _, name := range s.Names() {
		_ = s.withGraph(name, func(g *graph.CSCGraph, name string) error {
			infos = append(infos, s.flightInfo(name, g))
			return nil
		})
	}
	for _, info := range infos {
		if err := stream.Send(info); err != nil {
			return err
		}
	}
	return nil
}

// ListActions advertises the DoAction types.
func (s *Server) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	for _, a := range []*flight.ActionType{
		{Type: ActionGraphInfo, Description: `Describe a graph. Body: {"graph": name}`},
		{Type: ActionListGraphs, Description: "List registered graph names"},
		{Type: ActionLoadGraph, Description: `Load a serialized graph. Body: {"graph": name, "location": path or s3 url}`},
		{Type: ActionUnloadGraph, Description: `Unregister a graph. Body: {"graph": name}`},
	} {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

type actionRequest struct {
	Graph    string `json:"graph"`
	Location string `json:"location"`
}

// GraphInfo is the body returned by ActionGraphInfo.
type GraphInfo struct {
	Name          string           `json:"name"`
	NumNodes      int64            `json:"num_nodes"`
	NumEdges      int64            `json:"num_edges"`
	NumNodeTypes  int              `json:"num_node_types,omitempty"`
	TypedEdges    bool             `json:"typed_edges"`
	NodeTypeToID  map[string]int64 `json:"node_type_to_id,omitempty"`
	EdgeTypeToID  map[string]int64 `json:"edge_type_to_id,omitempty"`
	NodeTypeRange []int64          `json:"node_type_offset,omitempty"`
}

func describe(name string, g *graph.CSCGraph) GraphInfo {
	info := GraphInfo{
		Name:       name,
		NumNodes:   g.NumNodes(),
		NumEdges:   g.NumEdges(),
		TypedEdges: g.TypePerEdge() != nil,
	}
	if nto := g.NodeTypeOffset(); nto != nil {
		info.NodeTypeRange = append([]int64(nil), nto.Values()...)
		info.NumNodeTypes = len(info.NodeTypeRange) - 1
	}
	if md := g.Metadata(); md != nil {
		info.NodeTypeToID = md.NodeTypeToID
		info.EdgeTypeToID = md.EdgeTypeToID
	}
	return info
}

// DoAction handles management and inspection commands.
func (s *Server) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) (err error) {
	start := time.Now()
	defer func() {
		err = ToGRPCStatus(err)
		observe("DoAction", start, err)
	}()

	if action == nil {
		return status.Error(codes.InvalidArgument, "action is required")
	}
	var req actionRequest
	if len(action.Body) > 0 {
		if err := json.Unmarshal(action.Body, &req); err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid json body: %v", err)
		}
	}
	s.logger.Info().Str("type", action.Type).Str("graph", req.Graph).Msg("DoAction called")

	switch action.Type {
	case ActionGraphInfo:
		var info GraphInfo
		err := s.withGraph(req.Graph, func(g *graph.CSCGraph, name string) error {
			info = describe(name, g)
			return nil
		})
		if err != nil {
			return err
		}
		return sendJSON(stream, info)

	case ActionListGraphs:
		return sendJSON(stream, s.Names())

	case ActionLoadGraph:
		if s.loader == nil {
			return status.Error(codes.Unimplemented, "graph loading is not enabled")
		}
		if req.Location == "" {
			return status.Error(codes.InvalidArgument, "location is required")
		}
		name := req.Graph
		if name == "" {
			name = DefaultGraph
		}
		g, err := s.loader(stream.Context(), req.Location)
		if err != nil {
			s.logger.Error().Err(err).Str("location", req.Location).Msg("Graph load failed")
			return err
		}
		info := describe(name, g)
		s.Register(name, g)
		return sendJSON(stream, info)

	case ActionUnloadGraph:
		if req.Graph == "" {
			return status.Error(codes.InvalidArgument, "graph is required")
		}
		if !s.Unregister(req.Graph) {
			return fmt.Errorf("%w: %s", errGraphNotRegistered, req.Graph)
		}
		return sendJSON(stream, map[string]string{"unloaded": req.Graph})

	default:
		return status.Errorf(codes.Unimplemented, "unknown action: %s", action.Type)
	}
}

func sendJSON(stream flight.FlightService_DoActionServer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to serialize result: %v", err)
	}
	return stream.Send(&flight.Result{Body: body})
}
