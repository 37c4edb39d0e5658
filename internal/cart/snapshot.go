package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorruptSnapshot marks stored data that fails the structural check.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

// EncodeSnapshot serializes a state in the persisted wire shape.
func EncodeSnapshot(s State) ([]byte, error) {
	if s.Items == nil {
		s.Items = []Item{}
	}
	return json.Marshal(s)
}

// DecodeSnapshot parses stored data. Anything that is not JSON with an items array and a
// totals object is reported as ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (*State, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !isJSONKind(fields["items"], '[') {
		return nil, fmt.Errorf("%w: missing items array", ErrCorruptSnapshot)
	}
	if !isJSONKind(fields["totals"], '{') {
		return nil, fmt.Errorf("%w: missing totals object", ErrCorruptSnapshot)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if s.Items == nil {
		s.Items = []Item{}
	}
	return &s, nil
}

func isJSONKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}

// Reduce builds the smaller payload written after a quota failure: item metadata is dropped
// (except the maxQuantity bound), at most itemCap items are kept and totals are recomputed
// for what is left.
func Reduce(s State, itemCap int) State {
	out := s.Clone()
	if itemCap >= 0 && len(out.Items) > itemCap {
		out.Items = out.Items[:itemCap]
	}
	for i := range out.Items {
		out.Items[i].Metadata = keepBounds(out.Items[i].Metadata)
	}
	out.Totals = ComputeTotals(out.Items, RatesFromTotals(s.Totals))
	return out
}

func keepBounds(m Metadata) Metadata {
	maxQty, ok := m.MaxQuantity()
	if !ok {
		return nil
	}
	return Metadata{MetaMaxQuantity: maxQty}
}

// Truncate keeps the first n items and recomputes totals for them.
func Truncate(s State, n int) State {
	out := s.Clone()
	if n >= 0 && len(out.Items) > n {
		out.Items = out.Items[:n]
		out.Totals = ComputeTotals(out.Items, RatesFromTotals(s.Totals))
	}
	return out
}
