package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/23skdu/cscgraph/internal/edgelist"
	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	parquetPath    string
	duckdbQuery    string
	duckdbPath     string
	attach         []string
	numNodes       int64
	nodeTypeOffset []int64
	metadataPath   string
	out            string
	codec          string
}

func newBuildCmd(a *app) *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a CSC graph from an edge list and save it",
		Long: `Build reads a COO edge list with src, dst and optional etype columns,
either from a Parquet file or from a DuckDB query, groups it by destination
and saves the resulting graph to a local path or s3://bucket/key.`,
		Example: `  cscgraph build --parquet edges.parquet --out graph.csc
  cscgraph build --duckdb "SELECT src, dst FROM read_csv('edges.csv')" --out s3://graphs/g.csc
  cscgraph build --attach edges=edges/*.parquet --duckdb "SELECT * FROM edges WHERE src <> dst" --out g.csc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("codec") {
				a.cfg.Codec = opts.codec
				if err := ValidateConfig(&a.cfg); err != nil {
					return err
				}
			}
			return a.runBuild(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.parquetPath, "parquet", "", "Parquet edge file to read")
	f.StringVar(&opts.duckdbQuery, "duckdb", "", "DuckDB query returning src, dst and optionally etype")
	f.StringVar(&opts.duckdbPath, "duckdb-db", "", "DuckDB database file (default in-memory)")
	f.StringArrayVar(&opts.attach, "attach", nil, "Expose a Parquet file or glob as a DuckDB view, as name=path (repeatable)")
	f.Int64Var(&opts.numNodes, "num-nodes", -1, "Number of nodes (default: largest id + 1)")
	f.Int64SliceVar(&opts.nodeTypeOffset, "node-type-offset", nil, "Node type offsets, e.g. 0,2,5")
	f.StringVar(&opts.metadataPath, "metadata", "", "JSON file with node_type_to_id and edge_type_to_id")
	f.StringVar(&opts.out, "out", "", "Output location (path or s3://bucket/key)")
	f.StringVar(&opts.codec, "codec", "none", "Array codec: none or snappy")
	_ = cmd.MarkFlagRequired("out")
	cmd.MarkFlagsMutuallyExclusive("parquet", "duckdb")
	cmd.MarkFlagsOneRequired("parquet", "duckdb")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, opts buildOptions) error {
	ctx := cmd.Context()
	coo, err := a.readEdges(ctx, opts)
	if err != nil {
		return err
	}

	var graphOpts []graph.Option
	if opts.nodeTypeOffset != nil {
		graphOpts = append(graphOpts, graph.WithNodeTypeOffset(opts.nodeTypeOffset))
	}
	if opts.metadataPath != "" {
		md, err := readMetadata(opts.metadataPath)
		if err != nil {
			return err
		}
		graphOpts = append(graphOpts, graph.WithMetadata(md))
	}
	graphOpts = append(graphOpts, graph.WithLogger(a.logger))

	numNodes := opts.numNodes
	if numNodes < 0 {
		numNodes = coo.InferNumNodes()
	}
	g, err := coo.Build(numNodes, graphOpts...)
	if err != nil {
		return err
	}
	defer g.Release()

	if err := a.saveGraph(ctx, opts.out, g); err != nil {
		return err
	}
	printf(cmd, "wrote %s: %d nodes, %d edges\n", opts.out, g.NumNodes(), g.NumEdges())
	return nil
}

func (a *app) readEdges(ctx context.Context, opts buildOptions) (*edgelist.COO, error) {
	if opts.parquetPath != "" {
		f, err := os.Open(opts.parquetPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return edgelist.ReadParquet(f, info.Size())
	}

	src, err := edgelist.OpenDuckDB(ctx, opts.duckdbPath, a.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	for _, spec := range opts.attach {
		view, path, ok := strings.Cut(spec, "=")
		if !ok || view == "" || path == "" {
			return nil, fmt.Errorf("invalid --attach %q, want name=path", spec)
		}
		if err := src.AttachParquet(ctx, view, path); err != nil {
			return nil, err
		}
	}
	return src.QueryEdges(ctx, opts.duckdbQuery)
}

func readMetadata(path string) (*graph.GraphMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw graph.GraphMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	if raw.NodeTypeToID == nil && raw.EdgeTypeToID == nil {
		return nil, errors.New("metadata file defines no node or edge types")
	}
	return graph.NewGraphMetadata(raw.NodeTypeToID, raw.EdgeTypeToID)
}
