// units.go - Conversion between public ether amounts and note units.
//
// Note values are 64-bit counts of PublicUnitWei. Public amounts are written
// in ether by users and settled in wei by the ledger.

package zerocash

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PublicUnitWei is the wei value of one note unit (1 szabo).
const PublicUnitWei = 1_000_000_000_000

var ErrInvalidAmount = errors.New("zerocash: amount not representable in note units")

var (
	weiPerEther  = decimal.New(1, 18)
	unitsPerEth  = weiPerEther.Div(decimal.NewFromInt(PublicUnitWei))
	maxUnitValue = decimal.NewFromUint64(^uint64(0))
)

// ToUnits converts an ether amount into note units. Amounts finer than one
// unit, negative amounts and amounts above 2^64-1 units are rejected.
func ToUnits(ether decimal.Decimal) (uint64, error) {
	units := ether.Mul(unitsPerEth)
	if units.IsNegative() || !units.Equal(units.Truncate(0)) || units.GreaterThan(maxUnitValue) {
		return 0, fmt.Errorf("%w: %s ether", ErrInvalidAmount, ether.String())
	}
	return units.BigInt().Uint64(), nil
}

// ParseEther parses a decimal ether string into note units.
func ParseEther(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return ToUnits(d)
}

// FromUnits converts note units back into ether.
func FromUnits(units uint64) decimal.Decimal {
	return decimal.NewFromUint64(units).Div(unitsPerEth)
}

// UnitsToWei returns the wei value of units.
func UnitsToWei(units uint64) *uint256.Int {
	v := uint256.NewInt(units)
	return v.Mul(v, uint256.NewInt(PublicUnitWei))
}
