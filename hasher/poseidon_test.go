package hasher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoseidonHashPairIsDeterministic(t *testing.T) {
	p := NewPoseidon()
	a := mustHashFromHex(t, "0x0194791558611599fe4ae0fcfa48f095659c90db18e54de86f2d2f547f7369bf")
	b := mustHashFromHex(t, "0x06109f1949f6a7555eccf4e15ce1f10fbd78091dfe715cc2e0c5a244d9d17761")

	first, err := p.HashPair(a, b)
	require.NoError(t, err)
	second, err := p.HashPair(a, b)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestPoseidonHashPairChangesWithInput(t *testing.T) {
	p := NewPoseidon()
	a := mustHashFromHex(t, "0x01")
	b := mustHashFromHex(t, "0x02")
	c := mustHashFromHex(t, "0x03")

	ab, err := p.HashPair(a, b)
	require.NoError(t, err)
	ac, err := p.HashPair(a, c)
	require.NoError(t, err)
	require.NotEqual(t, ab, ac)
}

func TestPoseidonHashPairRejectsNonCanonicalFieldElement(t *testing.T) {
	p := NewPoseidon()
	var invalid H
	for i := range invalid {
		invalid[i] = 0xff
	}
	var valid H

	_, err := p.HashPair(invalid, valid)
	require.ErrorIs(t, err, ErrInvalidFieldElement)
}

func TestPoseidonHashPairAcceptsZeroHash(t *testing.T) {
	p := NewPoseidon()
	var zero H

	_, err := p.HashPair(zero, zero)
	require.NoError(t, err)
}

func TestPoseidonGenesisHashIsDeterministic(t *testing.T) {
	p := NewPoseidon()

	first, err := p.GenesisHash()
	require.NoError(t, err)
	second, err := p.GenesisHash()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.False(t, first.IsZero())
}

func TestPoseidonHashCountAndBagChangesWithCount(t *testing.T) {
	p := NewPoseidon()
	bag := mustHashFromHex(t, "0x0194791558611599fe4ae0fcfa48f095659c90db18e54de86f2d2f547f7369bf")

	ten, err := p.HashCountAndBag(10, bag)
	require.NoError(t, err)
	eleven, err := p.HashCountAndBag(11, bag)
	require.NoError(t, err)
	require.NotEqual(t, ten, eleven)
}
