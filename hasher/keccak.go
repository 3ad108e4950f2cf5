package hasher

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Keccak hashes pairs of nodes by concatenating them and running Keccak-256
// over the 64-byte result, matching the legacy (pre-NIST-padding) Keccak
// construction rather than SHA3-256.
type Keccak struct{}

// NewKeccak returns a Keccak variant of Hasher. The zero value is also ready
// to use; NewKeccak exists for symmetry with the other variants.
func NewKeccak() Keccak {
	return Keccak{}
}

// HashPair implements Hasher.
func (Keccak) HashPair(left, right H) (H, error) {
	var buf [2 * Size]byte
	copy(buf[:Size], left[:])
	copy(buf[Size:], right[:])
	return finalizeKeccak(buf[:]), nil
}

// HashCountAndBag implements Hasher. The count is big-endian encoded into
// the low 8 bytes of a zero-padded 32-byte word before being paired with bag.
func (k Keccak) HashCountAndBag(elementsCount uint64, bag H) (H, error) {
	var countHash H
	binary.BigEndian.PutUint64(countHash[Size-8:], elementsCount)
	return k.HashPair(countHash, bag)
}

func finalizeKeccak(data []byte) H {
	var out H
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	d.Sum(out[:0])
	return out
}
