package edgelist

import (
	"errors"
	"fmt"
	"io"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/parquet-go/parquet-go"
)

const readBatchSize = 4096

// EdgeRow is one untyped edge in a Parquet edge file.
type EdgeRow struct {
	Src int64 `parquet:"src"`
	Dst int64 `parquet:"dst"`
}

// TypedEdgeRow is one typed edge in a Parquet edge file.
type TypedEdgeRow struct {
	Src   int64 `parquet:"src"`
	Dst   int64 `parquet:"dst"`
	EType int64 `parquet:"etype"`
}

// SubgraphRow is one extracted edge with its original ids.
type SubgraphRow struct {
	Src   int64 `parquet:"src"`
	Dst   int64 `parquet:"dst"`
	EID   int64  `parquet:"eid"`
	EType *int64 `parquet:"etype,optional"`
}

// WriteParquet writes the edge list as a zstd-compressed Parquet file. An
// etype column is written only for typed lists.
func WriteParquet(w io.Writer, c *COO) error {
	if c.Typed() {
		rows := make([]TypedEdgeRow, c.Len())
		for i := range rows {
			rows[i] = TypedEdgeRow{Src: c.Src[i], Dst: c.Dst[i], EType: c.EType[i]}
		}
		return writeRows(w, rows)
	}
	rows := make([]EdgeRow, c.Len())
	for i := range rows {
		rows[i] = EdgeRow{Src: c.Src[i], Dst: c.Dst[i]}
	}
	return writeRows(w, rows)
}

// WriteSubgraphParquet writes an extracted subgraph in COO form. The etype
// column is null for subgraphs of edge-homogeneous graphs.
func WriteSubgraphParquet(w io.Writer, sg *graph.SampledSubgraph) error {
	rows := make([]SubgraphRow, 0, sg.NumEdges())
	for k := 0; k < sg.NumColumns(); k++ {
		for p := sg.Indptr[k]; p < sg.Indptr[k+1]; p++ {
			row := SubgraphRow{Src: sg.Indices[p], Dst: sg.ReverseColumnNodeIDs[k], EID: sg.ReverseEdgeIDs[p]}
			if sg.TypePerEdge != nil {
				row.EType = &sg.TypePerEdge[p]
			}
			rows = append(rows, row)
		}
	}
	return writeRows(w, rows)
}

func writeRows[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads an edge file with int64 src and dst columns and an
// optional etype column.
func ReadParquet(r io.ReaderAt, size int64) (*COO, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	for _, col := range []string{"src", "dst"} {
		if _, ok := pf.Schema().Lookup(col); !ok {
			return nil, fmt.Errorf("%w: parquet file has no %q column", ErrInvalidEdgeList, col)
		}
	}

	c := &COO{}
	if _, typed := pf.Schema().Lookup("etype"); typed {
		c.EType = []int64{}
		err = readRows(pf, func(row TypedEdgeRow) { c.AppendTyped(row.Src, row.Dst, row.EType) })
	} else {
		err = readRows(pf, func(row EdgeRow) { c.Append(row.Src, row.Dst) })
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func readRows[T any](pf *parquet.File, fn func(T)) error {
	pr := parquet.NewGenericReader[T](pf)
	defer func() { _ = pr.Close() }()

	buf := make([]T, readBatchSize)
	for {
		n, err := pr.Read(buf)
		for _, row := range buf[:n] {
			fn(row)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}
