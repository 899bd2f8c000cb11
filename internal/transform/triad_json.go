package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// encoding/json refuses non-finite floats, but a signed-infinity vhitzee is a
// legitimate domain value that must round-trip through ledger payloads and
// sinks. Non-finite values are encoded as the strings "+Inf" and "-Inf".

type triadWire struct {
	Jolt     float64         `json:"jolt"`
	Observer float64         `json:"observer"`
	Vhitzee  json.RawMessage `json:"vhitzee"`
}

func (t Triad) MarshalJSON() ([]byte, error) {
	var vhitzee json.RawMessage
	switch {
	case math.IsInf(t.Vhitzee, 1):
		vhitzee = json.RawMessage(`"+Inf"`)
	case math.IsInf(t.Vhitzee, -1):
		vhitzee = json.RawMessage(`"-Inf"`)
	default:
		raw, err := json.Marshal(t.Vhitzee)
		if err != nil {
			return nil, err
		}
		vhitzee = raw
	}
	return json.Marshal(triadWire{Jolt: t.Jolt, Observer: t.Observer, Vhitzee: vhitzee})
}

func (t *Triad) UnmarshalJSON(data []byte) error {
	var wire triadWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.Jolt = wire.Jolt
	t.Observer = wire.Observer

	switch {
	case bytes.Equal(wire.Vhitzee, []byte(`"+Inf"`)):
		t.Vhitzee = math.Inf(1)
	case bytes.Equal(wire.Vhitzee, []byte(`"-Inf"`)):
		t.Vhitzee = math.Inf(-1)
	case len(wire.Vhitzee) == 0:
		t.Vhitzee = 0
	default:
		if err := json.Unmarshal(wire.Vhitzee, &t.Vhitzee); err != nil {
			return fmt.Errorf("decode vhitzee: %w", err)
		}
	}
	return nil
}
