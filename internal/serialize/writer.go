package serialize

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/rs/zerolog"
)

type saveOptions struct {
	version uint32
	codec   Codec
	logger  zerolog.Logger
}

// SaveOption configures Save.
type SaveOption func(*saveOptions)

// WithVersion selects the format version to write.
func WithVersion(v uint32) SaveOption {
	return func(o *saveOptions) { o.version = v }
}

// WithCodec selects payload compression. Requires version 2.
func WithCodec(c Codec) SaveOption {
	return func(o *saveOptions) { o.codec = c }
}

// WithSaveLogger sets the logger for Save.
func WithSaveLogger(logger zerolog.Logger) SaveOption {
	return func(o *saveOptions) { o.logger = logger }
}

// encoder writes through a buffered writer and a running checksum. The first
// error is sticky.
type encoder struct {
	w       *bufio.Writer
	digest  *xxhash.Digest
	codec   Codec
	written int64
	err     error
	section string
	scratch [8]byte
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(p)
	e.written += int64(n)
	if err != nil {
		e.err = ioFailure(e.section, err)
		return
	}
	_, _ = e.digest.Write(p)
}

func (e *encoder) u8(v uint8) {
	e.scratch[0] = v
	e.write(e.scratch[:1])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], v)
	e.write(e.scratch[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], v)
	e.write(e.scratch[:8])
}

func (e *encoder) array(section string, values []int64) {
	e.section = section
	raw := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
	}
	payload := raw
	if e.codec == CodecSnappy {
		if snappy.MaxEncodedLen(len(raw)) < 0 {
			if e.err == nil {
				e.err = fmt.Errorf("serialize: %s: %d bytes exceed the snappy block limit", section, len(raw))
			}
			return
		}
		payload = snappy.Encode(nil, raw)
	}
	e.u64(uint64(len(values)))
	e.u64(uint64(len(payload)))
	e.write(payload)
}

// Save writes g to w. A failing writer yields ErrSerializationIO.
func Save(w io.Writer, g *graph.CSCGraph, opts ...SaveOption) (err error) {
	start := time.Now()
	o := saveOptions{version: CurrentVersion, codec: CodecNone, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	enc := &encoder{w: bufio.NewWriter(w), digest: xxhash.New(), section: "header"}
	defer func() {
		metrics.SerializerBytesTotal.WithLabelValues("write").Add(float64(enc.written))
		if err != nil {
			metrics.SerializerErrorsTotal.WithLabelValues("save", errorKind(err)).Inc()
			o.logger.Error().Err(err).Msg("Failed to save graph")
			return
		}
		metrics.SerializerDurationSeconds.WithLabelValues("save").Observe(time.Since(start).Seconds())
		o.logger.Debug().
			Int64("bytes", enc.written).
			Uint32("version", o.version).
			Stringer("codec", o.codec).
			Msg("Saved graph")
	}()

	switch o.version {
	case VersionRaw:
		if o.codec != CodecNone {
			return fmt.Errorf("serialize: version %d does not support codec %s", o.version, o.codec)
		}
	case VersionChecked:
		if o.codec != CodecNone && o.codec != CodecSnappy {
			return fmt.Errorf("serialize: unsupported codec %s", o.codec)
		}
	default:
		return fmt.Errorf("serialize: unsupported version %d", o.version)
	}

	var meta []byte
	flags := uint8(0)
	if g.NodeTypeOffset() != nil {
		flags |= FlagNodeTypeOffset
	}
	if g.TypePerEdge() != nil {
		flags |= FlagTypePerEdge
	}
	if md := g.Metadata(); md != nil {
		if meta, err = json.Marshal(md); err != nil {
			return fmt.Errorf("serialize: encode metadata: %w", err)
		}
		flags |= FlagMetadata
	}

	enc.u32(Magic)
	enc.u32(o.version)
	enc.u64(uint64(g.NumNodes()))
	enc.u64(uint64(g.NumEdges()))
	enc.u8(flags)
	if o.version >= VersionChecked {
		enc.u8(uint8(o.codec))
		enc.codec = o.codec
	}

	enc.array("indptr", g.CSCIndptr().Values())
	enc.array("indices", g.Indices().Values())
	if flags&FlagNodeTypeOffset != 0 {
		enc.array("node_type_offset", g.NodeTypeOffset().Values())
	}
	if flags&FlagTypePerEdge != 0 {
		enc.array("type_per_edge", g.TypePerEdge().Values())
	}
	if flags&FlagMetadata != 0 {
		enc.section = "metadata"
		enc.u64(uint64(len(meta)))
		enc.write(meta)
	}
	if o.version >= VersionChecked {
		enc.section = "checksum"
		sum := enc.digest.Sum64()
		enc.u64(sum)
	}
	if enc.err != nil {
		return enc.err
	}
	if err := enc.w.Flush(); err != nil {
		return ioFailure("flush", err)
	}
	return nil
}
