package edgelist

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	duckdb "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"
)

// DuckDBSource runs SQL against DuckDB and collects the result as an edge
// list. Queries go through DuckDB's Arrow interface on a dedicated
// connection, so views created with AttachParquet stay visible.
type DuckDBSource struct {
	db     *sql.DB
	conn   *sql.Conn
	ar     *duckdb.Arrow
	logger zerolog.Logger
}

// OpenDuckDB opens a DuckDB database. An empty dsn gives an in-memory
// database.
func OpenDuckDB(ctx context.Context, dsn string, logger zerolog.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open conn: %w", err)
	}

	var ar *duckdb.Arrow
	err = conn.Raw(func(c any) error {
		dc, ok := c.(driver.Conn)
		if !ok {
			return fmt.Errorf("not a duckdb driver connection")
		}
		var err error
		ar, err = duckdb.NewArrowFromConn(dc)
		return err
	})
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to init arrow: %w", err)
	}
	return &DuckDBSource{db: db, conn: conn, ar: ar, logger: logger}, nil
}

// AttachParquet exposes a Parquet file (or glob) as a view.
func (s *DuckDBSource) AttachParquet(ctx context.Context, view, path string) error {
	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)", quoteIdent(view), quoteLiteral(path))
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create view %s: %w", view, err)
	}
	s.logger.Debug().Str("view", view).Str("path", path).Msg("Attached parquet view")
	return nil
}

// Exec runs a statement that returns no rows.
func (s *DuckDBSource) Exec(ctx context.Context, stmt string) error {
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// QueryEdges runs query and reads its src and dst columns, plus etype when
// the result has one. Any integer column type is accepted; NULLs are
// rejected.
func (s *DuckDBSource) QueryEdges(ctx context.Context, query string) (*COO, error) {
	rdr, err := s.ar.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rdr.Release()

	schema := rdr.Schema()
	src, dst := fieldIndex(schema, "src"), fieldIndex(schema, "dst")
	if src < 0 || dst < 0 {
		return nil, fmt.Errorf("%w: query result needs src and dst columns, got %s", ErrInvalidEdgeList, schema)
	}
	etype := fieldIndex(schema, "etype")

	c := &COO{}
	if etype >= 0 {
		c.EType = []int64{}
	}
	for rdr.Next() {
		rec := rdr.Record()
		if c.Src, err = appendInts(c.Src, rec.Column(src), "src"); err != nil {
			return nil, err
		}
		if c.Dst, err = appendInts(c.Dst, rec.Column(dst), "dst"); err != nil {
			return nil, err
		}
		if etype >= 0 {
			if c.EType, err = appendInts(c.EType, rec.Column(etype), "etype"); err != nil {
				return nil, err
			}
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("reading query result: %w", err)
	}
	s.logger.Debug().Int("edges", c.Len()).Bool("typed", c.Typed()).Msg("Loaded edges from duckdb")
	return c, nil
}

// Close releases the connection and the database.
func (s *DuckDBSource) Close() error {
	connErr := s.conn.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return connErr
}

func fieldIndex(schema *arrow.Schema, name string) int {
	if idx := schema.FieldIndices(name); len(idx) > 0 {
		return idx[0]
	}
	return -1
}

func appendInts(dst []int64, col arrow.Array, name string) ([]int64, error) {
	if col.NullN() > 0 {
		return nil, fmt.Errorf("%w: column %s has %d nulls", ErrInvalidEdgeList, name, col.NullN())
	}
	switch a := col.(type) {
	case *array.Int64:
		return append(dst, a.Int64Values()...), nil
	case *array.Int32:
		for _, v := range a.Int32Values() {
			dst = append(dst, int64(v))
		}
	case *array.Int16:
		for _, v := range a.Int16Values() {
			dst = append(dst, int64(v))
		}
	case *array.Int8:
		for _, v := range a.Int8Values() {
			dst = append(dst, int64(v))
		}
	case *array.Uint32:
		for _, v := range a.Uint32Values() {
			dst = append(dst, int64(v))
		}
	case *array.Uint16:
		for _, v := range a.Uint16Values() {
			dst = append(dst, int64(v))
		}
	case *array.Uint8:
		for _, v := range a.Uint8Values() {
			dst = append(dst, int64(v))
		}
	default:
		return nil, fmt.Errorf("%w: column %s has type %s, want an integer", ErrInvalidEdgeList, name, col.DataType())
	}
	return dst, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
