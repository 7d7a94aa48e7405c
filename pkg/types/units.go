package types

import (
	"fmt"
	"math/big"
)

// Storage quantities cross the ledger boundary as fixed-point milli-units:
// thousandths of one allocation unit (1 GB). The ledger converts milli-units
// back to whole units with the same rounding rule implemented here; the two
// sides drifting apart would silently corrupt quota accounting.
const (
	MilliPerUnit  uint64 = 1000
	BytesPerUnit  uint64 = 1 << 30
	tokenDecimals        = 18
)

// UnitPolicy controls the minimum-unit floor. The reference behavior rounds
// any non-empty file up to at least one unit; fractional accounting keeps the
// raw milli value instead.
type UnitPolicy struct {
	AllowFractional bool
}

// BytesToMilliUnits converts a plaintext byte length to the milli-unit value
// submitted with storeFile. Non-empty files never map to zero unless the
// policy allows fractional accounting.
func BytesToMilliUnits(n int64, p UnitPolicy) uint64 {
	if n <= 0 {
		return 0
	}
	m := uint64(n) * MilliPerUnit / BytesPerUnit
	if m == 0 && !p.AllowFractional {
		m = 1
	}
	return m
}

// MilliToWholeUnits mirrors the ledger's conversion of milli-units to whole
// allocation units: nonzero milli values round up to at least one unit.
func MilliToWholeUnits(m uint64, p UnitPolicy) uint64 {
	u := m / MilliPerUnit
	if u == 0 && m > 0 && !p.AllowFractional {
		u = 1
	}
	return u
}

// UnitsToBytes converts whole allocation units to bytes.
func UnitsToBytes(u uint64) int64 {
	return int64(u * BytesPerUnit)
}

// MilliString renders a milli-unit quantity as a decimal unit count, e.g.
// 1500 -> "1.5".
func MilliString(m uint64) string {
	whole := m / MilliPerUnit
	frac := m % MilliPerUnit
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%03d", whole, frac)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}

// Tokens converts a whole token count to the smallest denomination the
// ledger's token contract uses (18 decimal places).
func Tokens(n uint64) *big.Int {
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals), nil)
	return new(big.Int).Mul(new(big.Int).SetUint64(n), exp)
}

// FormatTokens renders a smallest-denomination amount as whole tokens,
// truncating the fractional part.
func FormatTokens(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals), nil)
	whole := new(big.Int).Quo(amount, exp)
	return whole.String()
}

// PurchaseCost is the smallest-denomination price of amountUnits at
// pricePerUnit whole tokens per unit.
func PurchaseCost(amountUnits, pricePerUnit uint64) *big.Int {
	return Tokens(amountUnits * pricePerUnit)
}
