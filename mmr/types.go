package mmr

import (
	"fmt"
	"strings"

	"github.com/bankaixyz/mmr/hasher"
)

// Proof is an inclusion proof for a single element against a particular
// tree size, value-oriented so it can be serialized and checked off-store.
type Proof struct {
	ElementIndex   uint64
	ElementHash    hasher.H
	SiblingsHashes []hasher.H
	PeaksHashes    []hasher.H
	ElementsCount  uint64
}

// String renders a compact debug summary of the proof.
func (p Proof) String() string {
	siblings := make([]string, len(p.SiblingsHashes))
	for i, h := range p.SiblingsHashes {
		siblings[i] = h.String()
	}
	return fmt.Sprintf(
		"Proof{index=%d, hash=%s, siblings=[%s], elements_count=%d}",
		p.ElementIndex, p.ElementHash, strings.Join(siblings, ","), p.ElementsCount,
	)
}

// AppendResult reports the effect of appending a single value.
type AppendResult struct {
	LeavesCount   uint64
	ElementsCount uint64
	ElementIndex  uint64
	RootHash      hasher.H
}

// BatchAppendResult reports the effect of appending a batch of values.
type BatchAppendResult struct {
	AppendedCount     uint64
	FirstElementIndex uint64
	LastElementIndex  uint64
	LeavesCount       uint64
	ElementsCount     uint64
	RootHash          hasher.H
	PeaksHashes       []hasher.H
}
