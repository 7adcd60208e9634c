package flight

// Default row counts for DoGet record batches.
const (
	DefaultMinChunkRows = 4096
	DefaultMaxChunkRows = 65536
)

// chunkSizer hands out record batch sizes for one DoGet stream. It starts
// small so the first batch reaches the client quickly, then doubles up to
// max rows per batch.
type chunkSizer struct {
	min, max int
	current  int
}

func newChunkSizer(minRows, maxRows int) *chunkSizer {
	if minRows < 1 {
		minRows = 1
	}
	if maxRows < minRows {
		maxRows = minRows
	}
	return &chunkSizer{min: minRows, max: maxRows, current: minRows}
}

// next returns the size of the next batch and grows the following one.
func (c *chunkSizer) next() int {
	n := c.current
	c.current *= 2
	if c.current > c.max || c.current <= 0 {
		c.current = c.max
	}
	return n
}

// bounds splits rows into consecutive [start, end) ranges.
func (c *chunkSizer) bounds(rows int64) [][2]int64 {
	var out [][2]int64
	for start := int64(0); start < rows; {
		end := start + int64(c.next())
		if end > rows {
			end = rows
		}
		out = append(out, [2]int64{start, end})
		start = end
	}
	return out
}
