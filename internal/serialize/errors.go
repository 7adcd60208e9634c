package serialize

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformedStream marks input that is not a valid serialized graph.
	ErrMalformedStream = errors.New("malformed graph stream")
	// ErrSerializationIO marks a failure of the underlying reader or writer.
	ErrSerializationIO = errors.New("graph serialization I/O error")
)

// StreamError locates a serializer failure. It matches its Kind and, when
// set, its Err with errors.Is.
type StreamError struct {
	Kind    error  // ErrMalformedStream or ErrSerializationIO
	Section string // header, indptr, indices, node_type_offset, type_per_edge, metadata, checksum
	Err     error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Section, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Section)
}

func (e *StreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(section, format string, args ...any) error {
	return &StreamError{Kind: ErrMalformedStream, Section: section, Err: fmt.Errorf(format, args...)}
}

func ioFailure(section string, err error) error {
	return &StreamError{Kind: ErrSerializationIO, Section: section, Err: err}
}

// readFailure classifies a read error: running out of input is a malformed
// (truncated) stream, anything else is an I/O failure.
func readFailure(section string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &StreamError{Kind: ErrMalformedStream, Section: section, Err: io.ErrUnexpectedEOF}
	}
	return ioFailure(section, err)
}

// errorKind is the metrics label for err.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSerializationIO):
		return "io"
	case errors.Is(err, ErrMalformedStream):
		return "malformed"
	default:
		return "invalid"
	}
}
