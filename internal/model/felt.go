package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FeltLength is the byte length of an encoded field element.
const FeltLength = 32

// fieldPrime is the StarkNet field modulus 2^251 + 17*2^192 + 1.
var fieldPrime, _ = new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)

// Felt is a StarkNet field element stored big-endian.
type Felt [FeltLength]byte

// ZeroFelt is the sentinel "no account" address used by mints and burns.
var ZeroFelt Felt

// ParseFelt parses a 0x-prefixed hex string of any length up to 64 digits.
func ParseFelt(input string) (Felt, error) {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Felt{}, fmt.Errorf("invalid felt %q: missing 0x prefix", input)
	}
	s = s[2:]
	if s == "" || len(s) > 2*FeltLength {
		return Felt{}, fmt.Errorf("invalid felt %q: bad length", input)
	}
	value, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return Felt{}, fmt.Errorf("invalid felt %q: not hex", input)
	}
	return FeltFromBig(value)
}

// MustParseFelt is ParseFelt for constants; it panics on malformed input.
func MustParseFelt(input string) Felt {
	f, err := ParseFelt(input)
	if err != nil {
		panic(err)
	}
	return f
}

// FeltFromBig converts a non-negative integer below the field prime.
func FeltFromBig(value *big.Int) (Felt, error) {
	if value.Sign() < 0 || value.Cmp(fieldPrime) >= 0 {
		return Felt{}, fmt.Errorf("value %s out of field range", value.String())
	}
	var f Felt
	value.FillBytes(f[:])
	return f, nil
}

// FeltFromUint64 encodes a small integer.
func FeltFromUint64(v uint64) Felt {
	var f Felt
	new(big.Int).SetUint64(v).FillBytes(f[:])
	return f
}

func (f Felt) IsZero() bool {
	return f == ZeroFelt
}

func (f Felt) Big() *big.Int {
	return new(big.Int).SetBytes(f[:])
}

// Uint64 returns the value when it fits in 64 bits.
func (f Felt) Uint64() (uint64, bool) {
	v := f.Big()
	if !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

// Hex returns the 0x-prefixed, zero-padded 64 digit encoding.
func (f Felt) Hex() string {
	return hexutil.Encode(f[:])
}

func (f Felt) String() string {
	return f.Hex()
}

func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *Felt) UnmarshalText(text []byte) error {
	parsed, err := ParseFelt(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ShortHex returns the minimal 0x form without leading zeros, as JSON-RPC nodes expect.
func (f Felt) ShortHex() string {
	return "0x" + f.Big().Text(16)
}
