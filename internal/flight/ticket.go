package flight

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SubgraphTicket is the DoGet ticket body. Graph may be empty when the
// server holds a single graph or one registered as DefaultGraph.
type SubgraphTicket struct {
	Graph string  `json:"graph,omitempty"`
	Seeds []int64 `json:"seeds"`
}

// Encode returns the ticket bytes.
func (t SubgraphTicket) Encode() []byte {
	if t.Seeds == nil {
		t.Seeds = []int64{}
	}
	b, _ := json.Marshal(t)
	return b
}

// ParseTicket decodes a DoGet ticket. A JSON object is decoded as a
// SubgraphTicket; anything else is read as a comma-separated seed list for
// the default graph.
func ParseTicket(raw []byte) (SubgraphTicket, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "{") {
		var t SubgraphTicket
		dec := json.NewDecoder(strings.NewReader(s))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return SubgraphTicket{}, fmt.Errorf("invalid ticket: %w", err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return SubgraphTicket{}, fmt.Errorf("invalid ticket: trailing data after offset %d", dec.InputOffset())
		}
		return t, nil
	}
	if s == "" {
		return SubgraphTicket{Seeds: []int64{}}, nil
	}
	parts := strings.Split(s, ",")
	seeds := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return SubgraphTicket{}, fmt.Errorf("invalid ticket seed %q: %w", p, err)
		}
		seeds = append(seeds, v)
	}
	return SubgraphTicket{Seeds: seeds}, nil
}
