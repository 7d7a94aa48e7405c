package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is a 20-byte account address rendered as 0x-prefixed lowercase hex.
// Parsing is case-insensitive, so comparing two Address values with == is the
// case-insensitive ownership comparison the ledger requires.
type Address [20]byte

// ZeroAddress is the sentinel the ledger returns for unknown owners and
// providers. It is a value to branch on, not an error.
var ZeroAddress Address

func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 40 {
		return a, fmt.Errorf("address must be 20 hex bytes, got %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decoding address: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
