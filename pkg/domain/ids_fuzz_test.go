//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseRNOKPP tests that parsing never panics on arbitrary input and
// that accepted values round-trip unchanged.
func FuzzParseRNOKPP(f *testing.F) {
	f.Add("")
	f.Add("1234567890")
	f.Add("0000000000")
	f.Add("not-an-id")
	f.Add("'; DROP TABLE persons;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("1234567890\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		rnokpp, err := ParseRNOKPP(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParseRNOKPP(rnokpp.String())
		if err2 != nil {
			t.Errorf("valid id failed round-trip: %v", err2)
		}
		if roundTrip != rnokpp {
			t.Error("round-trip changed id value")
		}
	})
}

// FuzzParseEDRPOU mirrors the person id invariants for organization codes.
func FuzzParseEDRPOU(f *testing.F) {
	f.Add("12345678")
	f.Add("")
	f.Add("invalid")
	f.Add("123456789")

	f.Fuzz(func(t *testing.T, input string) {
		edrpou, err := ParseEDRPOU(input)
		if err != nil {
			return
		}
		if len(edrpou.String()) != 8 {
			t.Error("accepted edrpou with wrong length")
		}
	})
}
