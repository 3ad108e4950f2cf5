package hasher

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/bankaixyz/mmr/hasher/poseidonfield"
)

// Poseidon hashes node pairs with a sponge built on a Poseidon-style
// permutation over the STARK prime field (see poseidonfield). Its round
// constants are self-derived (see newRoundConstants) rather than ported
// bit-for-bit from a reference implementation, so Poseidon digests computed
// here will not match a starknet_crypto poseidon_hash for the same inputs;
// only the field modulus and the pair/count-and-bag wiring are shared with
// that reference.
type Poseidon struct{}

// NewPoseidon returns a Poseidon variant of Hasher. The zero value is also
// ready to use; NewPoseidon exists for symmetry with the other variants.
func NewPoseidon() Poseidon {
	return Poseidon{}
}

const (
	poseidonWidth        = 3
	poseidonFullRounds   = 8
	poseidonPartialRound = 56
	poseidonSBoxAlpha    = 3
)

var roundConstants = sync.OnceValue(newRoundConstants)

// newRoundConstants deterministically expands a fixed domain-separation
// seed into one field element per state word per round, via counter-mode
// SHA-256. This gives the permutation unpredictable-looking, fixed round
// constants without depending on an external Poseidon constants table.
func newRoundConstants() [poseidonFullRounds + poseidonPartialRound][poseidonWidth]poseidonfield.Element {
	var out [poseidonFullRounds + poseidonPartialRound][poseidonWidth]poseidonfield.Element
	seed := []byte("bankaixyz-mmr-poseidon-round-constants-v1")
	var counter uint64
	for r := range out {
		for i := 0; i < poseidonWidth; i++ {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], counter)
			counter++
			digest := sha256.Sum256(append(append([]byte{}, seed...), ctr[:]...))
			out[r][i] = poseidonfield.New(new(big.Int).SetBytes(digest[:]))
		}
	}
	return out
}

// mds is the 3x3 maximum-distance-separable mixing matrix applied after the
// S-box layer of every round.
var mds = sync.OnceValue(func() [poseidonWidth][poseidonWidth]poseidonfield.Element {
	two := poseidonfield.NewFromUint64(2)
	one := poseidonfield.One
	return [poseidonWidth][poseidonWidth]poseidonfield.Element{
		{two, one, one},
		{one, two, one},
		{one, one, two},
	}
})

func sbox(e poseidonfield.Element) poseidonfield.Element {
	return e.Pow(poseidonSBoxAlpha)
}

func applyMds(state [poseidonWidth]poseidonfield.Element) [poseidonWidth]poseidonfield.Element {
	m := mds()
	var out [poseidonWidth]poseidonfield.Element
	for i := 0; i < poseidonWidth; i++ {
		acc := poseidonfield.Zero
		for j := 0; j < poseidonWidth; j++ {
			acc = acc.Add(m[i][j].Mul(state[j]))
		}
		out[i] = acc
	}
	return out
}

// permute runs the full/partial-round Poseidon permutation over state.
func permute(state [poseidonWidth]poseidonfield.Element) [poseidonWidth]poseidonfield.Element {
	rc := roundConstants()
	halfFull := poseidonFullRounds / 2

	round := 0
	addConstants := func(s [poseidonWidth]poseidonfield.Element) [poseidonWidth]poseidonfield.Element {
		for i := range s {
			s[i] = s[i].Add(rc[round][i])
		}
		round++
		return s
	}

	for r := 0; r < halfFull; r++ {
		state = addConstants(state)
		for i := range state {
			state[i] = sbox(state[i])
		}
		state = applyMds(state)
	}
	for r := 0; r < poseidonPartialRound; r++ {
		state = addConstants(state)
		state[0] = sbox(state[0])
		state = applyMds(state)
	}
	for r := 0; r < halfFull; r++ {
		state = addConstants(state)
		for i := range state {
			state[i] = sbox(state[i])
		}
		state = applyMds(state)
	}
	return state
}

func hashToFieldElement(h H) (poseidonfield.Element, error) {
	if h.IsZero() {
		return poseidonfield.Zero, nil
	}
	e, err := poseidonfield.FromCanonicalBytes(h)
	if err != nil {
		return poseidonfield.Element{}, fmt.Errorf("%w: %s (%s)", ErrInvalidFieldElement, h, err)
	}
	return e, nil
}

func fieldElementToHash(e poseidonfield.Element) H {
	return H(e.Bytes())
}

func hashTwo(left, right poseidonfield.Element) poseidonfield.Element {
	state := [poseidonWidth]poseidonfield.Element{poseidonfield.Zero, left, right}
	out := permute(state)
	return out[0]
}

// HashPair implements Hasher.
func (Poseidon) HashPair(left, right H) (H, error) {
	leftFe, err := hashToFieldElement(left)
	if err != nil {
		return Zero, err
	}
	rightFe, err := hashToFieldElement(right)
	if err != nil {
		return Zero, err
	}
	return fieldElementToHash(hashTwo(leftFe, rightFe)), nil
}

// HashCountAndBag implements Hasher.
func (Poseidon) HashCountAndBag(elementsCount uint64, bag H) (H, error) {
	bagFe, err := hashToFieldElement(bag)
	if err != nil {
		return Zero, err
	}
	countFe := poseidonfield.NewFromUint64(elementsCount)
	return fieldElementToHash(hashTwo(countFe, bagFe)), nil
}

// GenesisHash returns the canonical genesis hash: the single-input Poseidon
// hash of the ASCII seed "brave new world", right-aligned in a 32-byte
// zero-padded word.
func (Poseidon) GenesisHash() (H, error) {
	var seed H
	seedBytes := []byte("brave new world")
	copy(seed[Size-len(seedBytes):], seedBytes)

	seedFe, err := hashToFieldElement(seed)
	if err != nil {
		return Zero, err
	}
	state := [poseidonWidth]poseidonfield.Element{poseidonfield.Zero, seedFe, poseidonfield.Zero}
	out := permute(state)
	return fieldElementToHash(out[0]), nil
}
