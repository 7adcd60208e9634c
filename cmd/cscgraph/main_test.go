package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/23skdu/cscgraph/internal/edgelist"
	"github.com/23skdu/cscgraph/internal/flight"
	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeEdges writes the five-node heterogeneous example as a Parquet edge
// file in destination-unsorted order.
func writeEdges(t *testing.T, dir string) string {
	t.Helper()
	c := &edgelist.COO{}
	for _, e := range [][3]int64{
		{0, 4, 1}, {0, 0, 0}, {1, 3, 1}, {1, 0, 0}, {3, 4, 3},
		{2, 1, 2}, {4, 0, 2}, {3, 1, 2}, {0, 2, 1}, {2, 3, 3},
		{1, 2, 1}, {4, 4, 3},
	} {
		c.AppendTyped(e[0], e[1], e[2])
	}
	path := filepath.Join(dir, "edges.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, edgelist.WriteParquet(f, c))
	require.NoError(t, f.Close())
	return path
}

func writeMetadata(t *testing.T, dir string) string {
	t.Helper()
	md := map[string]map[string]int64{
		"node_type_to_id": {"N0": 0, "N1": 1},
		"edge_type_to_id": {"N0:R0:N0": 0, "N0:R1:N1": 1, "N1:R2:N0": 2, "N1:R3:N1": 3},
	}
	data, err := json.Marshal(md)
	require.NoError(t, err)
	path := filepath.Join(dir, "metadata.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestBuildInspectSubgraph(t *testing.T) {
	dir := t.TempDir()
	edges := writeEdges(t, dir)
	out := filepath.Join(dir, "g.csc")

	stdout, err := run(t, "build",
		"--parquet", edges,
		"--node-type-offset", "0,2,5",
		"--metadata", writeMetadata(t, dir),
		"--codec", "snappy",
		"--out", out,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "5 nodes, 12 edges")

	stdout, err = run(t, "inspect", "--json", out)
	require.NoError(t, err)
	var s graphSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Equal(t, int64(5), s.NumNodes)
	assert.Equal(t, int64(12), s.NumEdges)
	assert.Equal(t, int64(3), s.MaxInDegree)
	assert.Equal(t, []typeCount{{ID: 0, Name: "N0", Count: 2}, {ID: 1, Name: "N1", Count: 3}}, s.NodeTypes)
	assert.Equal(t, []typeCount{
		{ID: 0, Name: "N0:R0:N0", Count: 2},
		{ID: 1, Name: "N0:R1:N1", Count: 4},
		{ID: 2, Name: "N1:R2:N0", Count: 3},
		{ID: 3, Name: "N1:R3:N1", Count: 3},
	}, s.EdgeTypes)

	stdout, err = run(t, "inspect", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "edges: 12")
	assert.Contains(t, stdout, "node type 1 N1: 3 nodes")

	stdout, err = run(t, "subgraph", out, "--seeds", "1,3,4")
	require.NoError(t, err)
	var sg subgraphOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &sg))
	assert.Equal(t, []int64{0, 2, 4, 7}, sg.Indptr)
	assert.Equal(t, []int64{2, 3, 1, 2, 0, 3, 4}, sg.Indices)
	assert.Equal(t, []int64{3, 4, 7, 8, 9, 10, 11}, sg.ReverseEdgeIDs)
	assert.Equal(t, []int64{1, 3, 4}, sg.ReverseColumnNodeIDs)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, sg.ReverseRowNodeIDs)
	assert.Equal(t, []int64{2, 2, 1, 3, 1, 3, 3}, sg.TypePerEdge)
	assert.Equal(t, uint64(5), sg.SourceNodes)

	pq := filepath.Join(dir, "sub.parquet")
	_, err = run(t, "subgraph", out, "--seeds", "4", "--parquet", pq)
	require.NoError(t, err)
	f, err := os.Open(pq)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)
	pf, err := parquet.OpenFile(f, info.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(3), pf.NumRows())

	_, err = run(t, "subgraph", out, "--seeds", "7")
	assert.ErrorIs(t, err, graph.ErrNodeIDOutOfRange)
}

func TestBuild_DuckDB(t *testing.T) {
	dir := t.TempDir()
	edges := writeEdges(t, dir)
	out := filepath.Join(dir, "g.csc")

	_, err := run(t, "build",
		"--attach", "edges="+edges,
		"--duckdb", "SELECT src, dst FROM edges WHERE src <> dst",
		"--num-nodes", "6",
		"--out", out,
	)
	require.NoError(t, err)

	stdout, err := run(t, "inspect", "--json", out)
	require.NoError(t, err)
	var s graphSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Equal(t, int64(6), s.NumNodes)
	assert.Equal(t, int64(10), s.NumEdges) // two self loops dropped
	assert.Empty(t, s.EdgeTypes)
}

func TestBuild_Errors(t *testing.T) {
	dir := t.TempDir()
	edges := writeEdges(t, dir)

	_, err := run(t, "build", "--parquet", edges)
	assert.Error(t, err, "missing --out")

	_, err = run(t, "build", "--out", filepath.Join(dir, "g.csc"))
	assert.Error(t, err, "missing source")

	_, err = run(t, "build", "--parquet", edges, "--duckdb", "SELECT 1", "--out", filepath.Join(dir, "g.csc"))
	assert.Error(t, err, "two sources")

	_, err = run(t, "build", "--parquet", edges, "--num-nodes", "3", "--out", filepath.Join(dir, "g.csc"))
	assert.ErrorIs(t, err, edgelist.ErrInvalidEdgeList)

	_, err = run(t, "build", "--parquet", edges, "--node-type-offset", "0,9", "--out", filepath.Join(dir, "g.csc"))
	assert.ErrorIs(t, err, graph.ErrInvalidGraphStructure)

	_, err = run(t, "build", "--parquet", edges, "--codec", "lz4", "--out", filepath.Join(dir, "g.csc"))
	assert.ErrorIs(t, err, ErrInvalidCodec)

	_, err = run(t, "--log-level", "loud", "inspect", filepath.Join(dir, "g.csc"))
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestInspect_Missing(t *testing.T) {
	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "none.csc"))
	assert.Error(t, err)
}

func TestGraphName(t *testing.T) {
	tests := []struct {
		arg      string
		single   bool
		name     string
		location string
	}{
		{"g.csc", true, flight.DefaultGraph, "g.csc"},
		{"/data/social.csc", false, "social", "/data/social.csc"},
		{"s3://bucket/team/web.csc", false, "web", "s3://bucket/team/web.csc"},
		{"web=s3://bucket/x.csc", false, "web", "s3://bucket/x.csc"},
		{"web=/data/x.csc", true, "web", "/data/x.csc"},
	}
	for _, tt := range tests {
		name, location := graphName(tt.arg, tt.single)
		assert.Equal(t, tt.name, name, tt.arg)
		assert.Equal(t, tt.location, location, tt.arg)
	}
}

func TestNewFlightServer(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "g.csc")
	_, err := run(t, "build", "--parquet", writeEdges(t, dir), "--out", out)
	require.NoError(t, err)

	a := &app{cfg: DefaultConfig(), logger: zerolog.Nop()}
	srv, err := a.newFlightServer(context.Background(), []string{"a=" + out, out}, false)
	require.NoError(t, err)
	defer srv.Close()
	assert.Equal(t, []string{"a", "g"}, srv.Names())
	assert.NotNil(t, a.mem)

	_, err = a.newFlightServer(context.Background(), []string{filepath.Join(dir, "missing.csc")}, false)
	assert.Error(t, err)
}
