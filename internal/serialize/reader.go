package serialize

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/rs/zerolog"
)

// maxMetadataLen bounds the metadata blob so a corrupt length cannot trigger
// a huge allocation.
const maxMetadataLen = 64 << 20

// readChunk caps how much is allocated ahead of data actually arriving.
const readChunk = 1 << 20

// maxElements bounds any array's element count.
const maxElements = 1 << 40

type loadOptions struct {
	mem    memory.Allocator
	logger zerolog.Logger
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithAllocator selects the allocator for the loaded graph's arrays.
func WithAllocator(mem memory.Allocator) LoadOption {
	return func(o *loadOptions) { o.mem = mem }
}

// WithLoadLogger sets the logger for Load and the loaded graph.
func WithLoadLogger(logger zerolog.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = logger }
}

type decoder struct {
	r       *bufio.Reader
	digest  *xxhash.Digest
	read    int64
	scratch [8]byte
}

func (d *decoder) full(section string, p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.read += int64(n)
	if err != nil {
		return readFailure(section, err)
	}
	_, _ = d.digest.Write(p)
	return nil
}

func (d *decoder) u8(section string) (uint8, error) {
	if err := d.full(section, d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

func (d *decoder) u32(section string) (uint32, error) {
	if err := d.full(section, d.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.scratch[:4]), nil
}

func (d *decoder) u64(section string) (uint64, error) {
	if err := d.full(section, d.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(d.scratch[:8]), nil
}

// readBytes reads exactly n bytes, growing the buffer only as input arrives.
func (d *decoder) readBytes(section string, n uint64) ([]byte, error) {
	var buf bytes.Buffer
	if n < readChunk {
		buf.Grow(int(n))
	} else {
		buf.Grow(readChunk)
	}
	copied, err := io.CopyN(&buf, d.r, int64(n))
	d.read += copied
	if err != nil {
		return nil, readFailure(section, err)
	}
	_, _ = d.digest.Write(buf.Bytes())
	return buf.Bytes(), nil
}

// array reads one length-prefixed array. want < 0 accepts any element count.
func (d *decoder) array(section string, codec Codec, want int64) ([]int64, error) {
	count, err := d.u64(section)
	if err != nil {
		return nil, err
	}
	if count > maxElements || (want >= 0 && count != uint64(want)) {
		return nil, malformed(section, "element count %d, expected %d", count, want)
	}
	payloadLen, err := d.u64(section)
	if err != nil {
		return nil, err
	}
	rawLen := count * 8
	switch codec {
	case CodecNone:
		if payloadLen != rawLen {
			return nil, malformed(section, "payload length %d does not match %d elements", payloadLen, count)
		}
	case CodecSnappy:
		limit := snappy.MaxEncodedLen(int(rawLen))
		if limit < 0 || payloadLen > uint64(limit) {
			return nil, malformed(section, "compressed payload length %d too large for %d elements", payloadLen, count)
		}
	}
	payload, err := d.readBytes(section, payloadLen)
	if err != nil {
		return nil, err
	}

	raw := payload
	if codec == CodecSnappy {
		n, err := snappy.DecodedLen(payload)
		if err != nil || uint64(n) != rawLen {
			return nil, malformed(section, "corrupt snappy block")
		}
		if raw, err = snappy.Decode(nil, payload); err != nil {
			return nil, malformed(section, "corrupt snappy block: %v", err)
		}
	}

	values := make([]int64, count)
	for i := range values {
		values[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return values, nil
}

func (d *decoder) header() (Header, error) {
	var h Header
	magic, err := d.u32("header")
	if err != nil {
		return h, err
	}
	if magic != Magic {
		return h, malformed("header", "bad magic %#x", magic)
	}
	if h.Version, err = d.u32("header"); err != nil {
		return h, err
	}
	if h.Version < VersionRaw || h.Version > CurrentVersion {
		return h, malformed("header", "unsupported version %d", h.Version)
	}
	numNodes, err := d.u64("header")
	if err != nil {
		return h, err
	}
	numEdges, err := d.u64("header")
	if err != nil {
		return h, err
	}
	h.NumNodes, h.NumEdges = int64(numNodes), int64(numEdges)
	if h.NumNodes < 0 || h.NumEdges < 0 || h.NumNodes == 1<<63-1 {
		return h, malformed("header", "invalid counts nodes=%d edges=%d", h.NumNodes, h.NumEdges)
	}
	if h.Flags, err = d.u8("header"); err != nil {
		return h, err
	}
	if h.Flags&^knownFlags != 0 {
		return h, malformed("header", "unknown flags %#x", h.Flags)
	}
	if h.Version >= VersionChecked {
		c, err := d.u8("header")
		if err != nil {
			return h, err
		}
		h.Codec = Codec(c)
		if h.Codec != CodecNone && h.Codec != CodecSnappy {
			return h, malformed("header", "unknown codec %d", c)
		}
	}
	return h, nil
}

// Load reads a graph written by Save and re-validates it. Input that does not
// decode yields ErrMalformedStream, arrays that decode but break a graph
// invariant also match graph.ErrInvalidGraphStructure, and a failing reader
// yields ErrSerializationIO.
func Load(r io.Reader, opts ...LoadOption) (g *graph.CSCGraph, err error) {
	start := time.Now()
	o := loadOptions{mem: memory.DefaultAllocator, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	d := &decoder{r: bufio.NewReader(r), digest: xxhash.New()}
	defer func() {
		metrics.SerializerBytesTotal.WithLabelValues("read").Add(float64(d.read))
		if err != nil {
			metrics.SerializerErrorsTotal.WithLabelValues("load", errorKind(err)).Inc()
			o.logger.Error().Err(err).Int64("offset", d.read).Msg("Failed to load graph")
			return
		}
		metrics.SerializerDurationSeconds.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	h, err := d.header()
	if err != nil {
		return nil, err
	}

	indptr, err := d.array("indptr", h.Codec, h.NumNodes+1)
	if err != nil {
		return nil, err
	}
	indices, err := d.array("indices", h.Codec, h.NumEdges)
	if err != nil {
		return nil, err
	}

	graphOpts := []graph.Option{graph.WithAllocator(o.mem), graph.WithLogger(o.logger)}
	if h.Has(FlagNodeTypeOffset) {
		nto, err := d.array("node_type_offset", h.Codec, -1)
		if err != nil {
			return nil, err
		}
		graphOpts = append(graphOpts, graph.WithNodeTypeOffset(nto))
	}
	if h.Has(FlagTypePerEdge) {
		tpe, err := d.array("type_per_edge", h.Codec, h.NumEdges)
		if err != nil {
			return nil, err
		}
		graphOpts = append(graphOpts, graph.WithTypePerEdge(tpe))
	}
	if h.Has(FlagMetadata) {
		n, err := d.u64("metadata")
		if err != nil {
			return nil, err
		}
		if n > maxMetadataLen {
			return nil, malformed("metadata", "length %d exceeds limit", n)
		}
		blob, err := d.readBytes("metadata", n)
		if err != nil {
			return nil, err
		}
		md := &graph.GraphMetadata{}
		if err := json.Unmarshal(blob, md); err != nil {
			return nil, malformed("metadata", "decode: %v", err)
		}
		graphOpts = append(graphOpts, graph.WithMetadata(md))
	}

	if h.Version >= VersionChecked {
		want := d.digest.Sum64()
		got, err := d.u64("checksum")
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, malformed("checksum", "got %#016x, computed %#016x", got, want)
		}
	}

	g, err = graph.FromCSC(indptr, indices, graphOpts...)
	if err != nil {
		return nil, &StreamError{Kind: ErrMalformedStream, Section: "graph", Err: err}
	}
	o.logger.Debug().
		Int64("num_nodes", h.NumNodes).
		Int64("num_edges", h.NumEdges).
		Uint32("version", h.Version).
		Stringer("codec", h.Codec).
		Msg("Loaded graph")
	return g, nil
}
