package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFromHexLeftPads(t *testing.T) {
	h, err := HashFromHex("0x1")
	require.NoError(t, err)

	var want H
	want[Size-1] = 1
	require.Equal(t, want, h)
}

func TestHashFromHexEmptyDecodesToZero(t *testing.T) {
	h, err := HashFromHex("0x")
	require.NoError(t, err)
	require.True(t, h.IsZero())
}

func TestHashFromHexRejectsNonHex(t *testing.T) {
	_, err := HashFromHex("0xzz")
	require.ErrorIs(t, err, ErrInvalidHex)
}

func TestHashFromHexRejectsOversizedValue(t *testing.T) {
	oversized := "0x01" + strings.Repeat("00", Size)
	_, err := HashFromHex(oversized)
	require.ErrorIs(t, err, ErrInputTooLarge)
}

func TestHashFromDecimal(t *testing.T) {
	h, err := HashFromDecimal("256")
	require.NoError(t, err)

	var want H
	want[Size-2] = 1
	require.Equal(t, want, h)
}

func TestHashFromDecimalRejectsGarbage(t *testing.T) {
	_, err := HashFromDecimal("12a")
	require.ErrorIs(t, err, ErrInvalidDecimal)

	_, err = HashFromDecimal("-5")
	require.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestHashFromDecimalRejectsOversizedValue(t *testing.T) {
	// 2^256 needs 33 bytes.
	_, err := HashFromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	require.ErrorIs(t, err, ErrInputTooLarge)
}

func TestHashStringRoundTripsThroughHashFromHex(t *testing.T) {
	original := mustHashFromHex(t, "0xa4b1d5793b631de611c922ea3ec938b359b3a49e687316d9a79c27be8ce84590")
	parsed, err := HashFromHex(original.String())
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}
