package mmr

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/bankaixyz/mmr/hasher"
)

// cborProof is the wire shape for Proof: a dedicated struct kept alongside
// the in-memory type, with hash fields widened to plain byte slices so the
// encoding stays a stable, self-describing CBOR map.
type cborProof struct {
	ElementIndex   uint64   `cbor:"1,keyasint"`
	ElementHash    []byte   `cbor:"2,keyasint"`
	SiblingsHashes [][]byte `cbor:"3,keyasint"`
	PeaksHashes    [][]byte `cbor:"4,keyasint"`
	ElementsCount  uint64   `cbor:"5,keyasint"`
}

// MarshalBinary encodes p as CBOR, for persistence or wire transfer of proof
// records.
func (p Proof) MarshalBinary() ([]byte, error) {
	wire := cborProof{
		ElementIndex:   p.ElementIndex,
		ElementHash:    p.ElementHash[:],
		SiblingsHashes: hashesToBytes(p.SiblingsHashes),
		PeaksHashes:    hashesToBytes(p.PeaksHashes),
		ElementsCount:  p.ElementsCount,
	}
	return cbor.Marshal(wire)
}

// UnmarshalBinary decodes a Proof previously produced by MarshalBinary.
func (p *Proof) UnmarshalBinary(data []byte) error {
	var wire cborProof
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("mmr: decoding proof: %w", err)
	}

	elementHash, err := bytesToHash(wire.ElementHash)
	if err != nil {
		return fmt.Errorf("mmr: decoding proof element hash: %w", err)
	}
	siblings, err := bytesToHashes(wire.SiblingsHashes)
	if err != nil {
		return fmt.Errorf("mmr: decoding proof siblings: %w", err)
	}
	peaks, err := bytesToHashes(wire.PeaksHashes)
	if err != nil {
		return fmt.Errorf("mmr: decoding proof peaks: %w", err)
	}

	p.ElementIndex = wire.ElementIndex
	p.ElementHash = elementHash
	p.SiblingsHashes = siblings
	p.PeaksHashes = peaks
	p.ElementsCount = wire.ElementsCount
	return nil
}

func hashesToBytes(hashes []hasher.H) [][]byte {
	out := make([][]byte, len(hashes))
	for i, h := range hashes {
		b := make([]byte, hasher.Size)
		copy(b, h[:])
		out[i] = b
	}
	return out
}

func bytesToHashes(raw [][]byte) ([]hasher.H, error) {
	out := make([]hasher.H, len(raw))
	for i, b := range raw {
		h, err := bytesToHash(b)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func bytesToHash(raw []byte) (hasher.H, error) {
	if len(raw) != hasher.Size {
		return hasher.Zero, fmt.Errorf("%w: got %d bytes", ErrMalformedProofEncoding, len(raw))
	}
	var h hasher.H
	copy(h[:], raw)
	return h, nil
}
