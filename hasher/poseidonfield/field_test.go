package poseidonfield

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReducesModulo(t *testing.T) {
	above := new(big.Int).Add(Modulus, big.NewInt(5))
	e := New(above)
	require.True(t, e.Equal(NewFromUint64(5)))
}

func TestAddSubRoundTrip(t *testing.T) {
	a := NewFromUint64(7)
	b := NewFromUint64(11)
	sum := a.Add(b)
	require.True(t, sum.Sub(b).Equal(a))
}

func TestMulByZeroIsZero(t *testing.T) {
	a := NewFromUint64(123456789)
	require.True(t, a.Mul(Zero).IsZero())
}

func TestBytesRoundTrip(t *testing.T) {
	a := NewFromUint64(987654321)
	b, err := FromCanonicalBytes(a.Bytes())
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestFromCanonicalBytesRejectsValueAtOrAboveModulus(t *testing.T) {
	var data [ByteLen]byte
	b := Modulus.Bytes()
	copy(data[ByteLen-len(b):], b)

	_, err := FromCanonicalBytes(data)
	require.ErrorIs(t, err, ErrNotCanonical)
}

func TestPowMatchesRepeatedMul(t *testing.T) {
	a := NewFromUint64(3)
	require.True(t, a.Pow(3).Equal(a.Mul(a).Mul(a)))
}
