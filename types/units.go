// Package types provides the value types shared by all carbon components.
package types

import (
	"fmt"
	"math/bits"
	"strconv"
)

// CarbonUnit is an amount of carbon credit. One unit is one verified tonne
// of CO2 equivalent. All arithmetic is unsigned integer arithmetic.
type CarbonUnit uint64

// EditionID identifies a token edition. Ids are allocated when a mint is
// requested and are never reused, even when the request is denied.
type EditionID uint32

// RetirementID identifies a retirement report.
type RetirementID uint64

// Year is the issuance (vintage) year of an edition.
type Year uint16

// String returns the decimal representation of the amount.
func (u CarbonUnit) String() string { return strconv.FormatUint(uint64(u), 10) }

// String returns the decimal representation of the edition id.
func (e EditionID) String() string { return strconv.FormatUint(uint64(e), 10) }

// String returns the decimal representation of the retirement id.
func (r RetirementID) String() string { return strconv.FormatUint(uint64(r), 10) }

// String returns the four digit year.
func (y Year) String() string { return strconv.FormatUint(uint64(y), 10) }

// ParseEditionID parses a decimal edition id.
func ParseEditionID(s string) (EditionID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("types: parse edition id %q: %w", s, err)
	}
	return EditionID(v), nil
}

// ParseRetirementID parses a decimal retirement id.
func ParseRetirementID(s string) (RetirementID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("types: parse retirement id %q: %w", s, err)
	}
	return RetirementID(v), nil
}

// ParseYear parses a decimal issuance year.
func ParseYear(s string) (Year, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("types: parse year %q: %w", s, err)
	}
	return Year(v), nil
}

// Holding is an amount of a single edition, as held by an account or moved
// by a transfer.
type Holding struct {
	EditionID EditionID  `json:"edition_id"`
	Amount    CarbonUnit `json:"amount"`
}

// Add returns a + b and reports whether the sum fits in a CarbonUnit.
func Add(a, b CarbonUnit) (CarbonUnit, bool) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	return CarbonUnit(sum), carry == 0
}

// Sum returns the total amount across holdings. Approval keeps the minted
// total within range, so holdings read from a store never wrap.
func Sum(holdings []Holding) CarbonUnit {
	var total CarbonUnit
	for _, h := range holdings {
		total += h.Amount
	}
	return total
}
