//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseNodeID checks that parsing never panics on arbitrary input and
// that accepted values round-trip unchanged.
func FuzzParseNodeID(f *testing.F) {
	f.Add("")
	f.Add("node-001")
	f.Add("abc")
	f.Add("'; DROP TABLE nodes;--")
	f.Add(string([]byte{0x00, 0x01, 0x02, 0x03}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseNodeID(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParseNodeID(id.String())
		if err2 != nil {
			t.Errorf("accepted id failed round-trip: %v", err2)
		}
		if roundTrip != id {
			t.Error("round-trip changed id value")
		}
	})
}

// FuzzParseAllIDs ensures node and session ids validate identically; group
// ids differ only in treating empty as unset.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("node-001")
	f.Add("")
	f.Add("xy")

	f.Fuzz(func(t *testing.T, input string) {
		_, errNode := ParseNodeID(input)
		_, errSession := ParseSessionID(input)
		_, errGroup := ParseGroupID(input)

		if (errNode == nil) != (errSession == nil) {
			t.Error("inconsistent parsing between node and session ids")
		}
		if input == "" {
			if errGroup != nil {
				t.Error("empty group id must parse as unset")
			}
			return
		}
		if (errNode == nil) != (errGroup == nil) {
			t.Error("inconsistent parsing between node and group ids")
		}
	})
}
