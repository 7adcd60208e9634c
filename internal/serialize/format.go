// Package serialize persists CSC graphs in a versioned little-endian binary
// format.
//
// Layout:
//
//	u32 magic "CSCG" | u32 version | i64 num_nodes | i64 num_edges | u8 flags
//	version >= 2: u8 codec
//	arrays indptr, indices, [node_type_offset], [type_per_edge]:
//	    u64 element_count | u64 payload_len | payload
//	[metadata]: u64 len | JSON
//	version >= 2: u64 xxhash64 of every preceding byte
//
// Version 1 payloads are raw little-endian int64 values. Version 2 payloads
// are passed through the codec named in the header.
package serialize

import "fmt"

const (
	// Magic spells "CSCG" when written little-endian.
	Magic uint32 = 0x47435343

	// VersionRaw is the uncompressed baseline format.
	VersionRaw uint32 = 1
	// VersionChecked adds the codec byte and the checksum trailer.
	VersionChecked uint32 = 2
	// CurrentVersion is written unless WithVersion says otherwise.
	CurrentVersion = VersionChecked

	headerSize = 4 + 4 + 8 + 8 + 1
)

// Header flags.
const (
	FlagNodeTypeOffset uint8 = 1 << iota
	FlagTypePerEdge
	FlagMetadata

	knownFlags = FlagNodeTypeOffset | FlagTypePerEdge | FlagMetadata
)

// Codec identifies the block compression applied to array payloads.
type Codec uint8

const (
	CodecNone   Codec = 0
	CodecSnappy Codec = 1
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a codec name to its value.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "snappy":
		return CodecSnappy, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

// Header is the fixed-size prefix of a serialized graph.
type Header struct {
	Version  uint32
	NumNodes int64
	NumEdges int64
	Flags    uint8
	Codec    Codec
}

// Has reports whether flag is set.
func (h Header) Has(flag uint8) bool { return h.Flags&flag != 0 }
