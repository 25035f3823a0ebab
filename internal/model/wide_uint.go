package model

import (
	"fmt"

	"github.com/holiman/uint256"
)

// WideUint is a u256 value carried as two 128-bit felt limbs in event data.
type WideUint = uint256.Int

const limbBits = 128

// AssembleWideUint composes high<<128 | low. Each limb must fit in 128 bits.
func AssembleWideUint(low, high Felt) (*WideUint, error) {
	lo := new(uint256.Int).SetBytes(low[:])
	if lo.BitLen() > limbBits {
		return nil, fmt.Errorf("low limb %s exceeds 128 bits", low.Hex())
	}
	hi := new(uint256.Int).SetBytes(high[:])
	if hi.BitLen() > limbBits {
		return nil, fmt.Errorf("high limb %s exceeds 128 bits", high.Hex())
	}
	value := new(uint256.Int).Lsh(hi, limbBits)
	return value.Or(value, lo), nil
}

func NewWideUint(v uint64) *WideUint {
	return uint256.NewInt(v)
}

// ParseWideUint parses a base-10 amount as stored by the persistence layer.
func ParseWideUint(decimal string) (*WideUint, error) {
	if decimal == "" {
		return new(uint256.Int), nil
	}
	value, err := uint256.FromDecimal(decimal)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", decimal, err)
	}
	return value, nil
}

// FormatWideUint renders the value in base 10.
func FormatWideUint(value *WideUint) string {
	if value == nil {
		return "0"
	}
	return value.ToBig().String()
}
