package main

import (
	"encoding/json"
	"path/filepath"

	"github.com/23skdu/cscgraph/internal/edgelist"
	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/google/renameio"
	"github.com/spf13/cobra"
)

// subgraphOutput is the JSON form of an extraction.
type subgraphOutput struct {
	Indptr               []int64 `json:"indptr"`
	Indices              []int64 `json:"indices"`
	ReverseRowNodeIDs    []int64 `json:"reverse_row_node_ids"`
	ReverseColumnNodeIDs []int64 `json:"reverse_column_node_ids"`
	ReverseEdgeIDs       []int64 `json:"reverse_edge_ids"`
	TypePerEdge          []int64 `json:"type_per_edge,omitempty"`
	SourceNodes          uint64  `json:"distinct_source_nodes"`
}

func newSubgraphCmd(a *app) *cobra.Command {
	var (
		seeds       []int64
		parquetPath string
	)
	cmd := &cobra.Command{
		Use:   "subgraph <location>",
		Short: "Extract the in-subgraph of the given seed nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer g.Release()

			var opts []graph.SubgraphOption
			if parquetPath != "" {
				opts = append(opts, graph.WithoutRowMapping())
			}
			sg, err := g.InSubgraph(seeds, opts...)
			if err != nil {
				return err
			}
			if parquetPath != "" {
				if err := writeSubgraphFile(parquetPath, sg); err != nil {
					return err
				}
				printf(cmd, "wrote %s: %d edges for %d seeds\n", parquetPath, sg.NumEdges(), sg.NumColumns())
				return nil
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(subgraphOutput{
				Indptr:               sg.Indptr,
				Indices:              sg.Indices,
				ReverseRowNodeIDs:    sg.ReverseRowNodeIDs,
				ReverseColumnNodeIDs: sg.ReverseColumnNodeIDs,
				ReverseEdgeIDs:       sg.ReverseEdgeIDs,
				TypePerEdge:          sg.TypePerEdge,
				SourceNodes:          sg.SourceNodes().GetCardinality(),
			})
		},
	}
	cmd.Flags().Int64SliceVar(&seeds, "seeds", nil, "Seed node ids in query order, e.g. 1,3,4")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "Write the subgraph edges to this Parquet file instead of printing JSON")
	return cmd
}

func writeSubgraphFile(path string, sg *graph.SampledSubgraph) error {
	t, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return err
	}
	defer func() { _ = t.Cleanup() }()
	if err := edgelist.WriteSubgraphParquet(t, sg); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
