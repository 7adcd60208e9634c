package main

import (
	"encoding/json"
	"sort"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/spf13/cobra"
)

// graphSummary is what inspect reports.
type graphSummary struct {
	Location     string           `json:"location"`
	NumNodes     int64            `json:"num_nodes"`
	NumEdges     int64            `json:"num_edges"`
	MaxInDegree  int64            `json:"max_in_degree"`
	NodeTypes    []typeCount      `json:"node_types,omitempty"`
	EdgeTypes    []typeCount      `json:"edge_types,omitempty"`
	NodeTypeToID map[string]int64 `json:"node_type_to_id,omitempty"`
	EdgeTypeToID map[string]int64 `json:"edge_type_to_id,omitempty"`
}

type typeCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Count int64  `json:"count"`
}

func newInspectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <location>",
		Short: "Print node, edge and type counts of a saved graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer g.Release()

			s := summarize(args[0], g)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			printf(cmd, "location: %s\nnodes: %d\nedges: %d\nmax in-degree: %d\n", s.Location, s.NumNodes, s.NumEdges, s.MaxInDegree)
			for _, t := range s.NodeTypes {
				printf(cmd, "node type %d %s: %d nodes\n", t.ID, t.Name, t.Count)
			}
			for _, t := range s.EdgeTypes {
				printf(cmd, "edge type %d %s: %d edges\n", t.ID, t.Name, t.Count)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func summarize(location string, g *graph.CSCGraph) graphSummary {
	s := graphSummary{Location: location, NumNodes: g.NumNodes(), NumEdges: g.NumEdges()}

	indptr := g.CSCIndptr().Values()
	for v := 0; v+1 < len(indptr); v++ {
		if d := indptr[v+1] - indptr[v]; d > s.MaxInDegree {
			s.MaxInDegree = d
		}
	}

	md := g.Metadata()
	nodeNames, edgeNames := map[int64]string{}, map[int64]string{}
	if md != nil {
		s.NodeTypeToID, s.EdgeTypeToID = md.NodeTypeToID, md.EdgeTypeToID
		for name, id := range md.NodeTypeToID {
			nodeNames[id] = name
		}
		for name, id := range md.EdgeTypeToID {
			edgeNames[id] = name
		}
	}

	if nto := g.NodeTypeOffset(); nto != nil {
		off := nto.Values()
		for i := 0; i+1 < len(off); i++ {
			s.NodeTypes = append(s.NodeTypes, typeCount{ID: int64(i), Name: nodeNames[int64(i)], Count: off[i+1] - off[i]})
		}
	}
	if tpe := g.TypePerEdge(); tpe != nil {
		counts := map[int64]int64{}
		for _, t := range tpe.Values() {
			counts[t]++
		}
		for id, n := range counts {
			s.EdgeTypes = append(s.EdgeTypes, typeCount{ID: id, Name: edgeNames[id], Count: n})
		}
		sort.Slice(s.EdgeTypes, func(i, j int) bool { return s.EdgeTypes[i].ID < s.EdgeTypes[j].ID })
	}
	return s
}
