// Package poseidonfield implements arithmetic over the STARK prime field
// F_p, p = 2^251 + 17*2^192 + 1, the field the Starknet ecosystem's
// FieldElement and poseidon_hash are defined over. Elements are stored as
// canonically-reduced big.Int values rather than in Montgomery form; this
// module favors a small, obviously-correct implementation over raw speed.
package poseidonfield

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrNotCanonical is returned when a byte or big.Int value is not a
// canonical member of the field, i.e. it is >= Modulus.
var ErrNotCanonical = errors.New("poseidonfield: value is not a canonical field element")

// Modulus is the STARK prime p = 2^251 + 17*2^192 + 1.
var Modulus = func() *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), 251)
	term := new(big.Int).Lsh(big.NewInt(17), 192)
	m.Add(m, term)
	m.Add(m, big.NewInt(1))
	return m
}()

// ByteLen is the fixed big-endian encoding width of a field element.
const ByteLen = 32

// Element is a canonically-reduced element of F_p.
type Element struct {
	v *big.Int
}

// Zero is the additive identity.
var Zero = Element{v: big.NewInt(0)}

// One is the multiplicative identity.
var One = Element{v: big.NewInt(1)}

// New reduces value modulo Modulus and returns the resulting element.
func New(value *big.Int) Element {
	v := new(big.Int).Mod(value, Modulus)
	return Element{v: v}
}

// NewFromUint64 returns the element represented by value.
func NewFromUint64(value uint64) Element {
	return Element{v: new(big.Int).SetUint64(value)}
}

// FromCanonicalBytes decodes a big-endian 32-byte value. It returns
// ErrNotCanonical if the value is >= Modulus.
func FromCanonicalBytes(data [ByteLen]byte) (Element, error) {
	v := new(big.Int).SetBytes(data[:])
	if v.Cmp(Modulus) >= 0 {
		return Element{}, fmt.Errorf("%w: 0x%x", ErrNotCanonical, data)
	}
	return Element{v: v}, nil
}

// Bytes encodes e as a big-endian 32-byte array.
func (e Element) Bytes() [ByteLen]byte {
	var out [ByteLen]byte
	b := e.v.Bytes()
	copy(out[ByteLen-len(b):], b)
	return out
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool {
	return e.v.Sign() == 0
}

// Equal reports whether e and other represent the same field element.
func (e Element) Equal(other Element) bool {
	return e.v.Cmp(other.v) == 0
}

// Add returns e + other mod p.
func (e Element) Add(other Element) Element {
	return New(new(big.Int).Add(e.v, other.v))
}

// Sub returns e - other mod p.
func (e Element) Sub(other Element) Element {
	return New(new(big.Int).Sub(e.v, other.v))
}

// Mul returns e * other mod p.
func (e Element) Mul(other Element) Element {
	return New(new(big.Int).Mul(e.v, other.v))
}

// Pow returns e^exp mod p.
func (e Element) Pow(exp uint64) Element {
	r := new(big.Int).Exp(e.v, new(big.Int).SetUint64(exp), Modulus)
	return Element{v: r}
}
