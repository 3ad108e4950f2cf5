// Package mmr implements a Merkle Mountain Range accumulator: append-only
// insertion, compact inclusion proofs, and root verification over a
// pluggable store and hasher.
package mmr

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/bankaixyz/mmr/hasher"
	"github.com/bankaixyz/mmr/store"
)

var nextMmrID atomic.Uint32

func init() {
	nextMmrID.Store(1)
}

// cachedCounts mirrors the leaves/elements counts last observed in the
// store, so repeated appends on the same Mmr skip a redundant metadata read.
type cachedCounts struct {
	leavesCount   uint64
	elementsCount uint64
	valid         bool
}

// Mmr owns a store and a hasher for one mmr_id and exposes the append,
// proof, and verification operations. An Mmr value is intended for
// single-owner, single-writer use: mutating methods must not be called
// concurrently on the same instance.
type Mmr struct {
	MmrID  uint32
	store  store.Store
	hasher hasher.Hasher
	cache  cachedCounts
	log    logger.Logger
}

// New returns an Mmr over store and hasher. If mmrID is nil, a fresh id is
// allocated from a process-wide monotonic counter.
func New(s store.Store, h hasher.Hasher, mmrID *uint32, opts ...Option) (*Mmr, error) {
	id := uint32(0)
	if mmrID != nil {
		id = *mmrID
	} else {
		id = nextMmrID.Add(1) - 1
	}

	cfg := newEngineConfig(opts)
	return &Mmr{MmrID: id, store: s, hasher: h, log: cfg.log}, nil
}

// CreateFromPeaks initializes a tree from a caller-supplied peaks snapshot.
// The mmr_id must currently be empty (elements count zero).
func CreateFromPeaks(ctx context.Context, s store.Store, h hasher.Hasher, mmrID *uint32, peaksHashes []hasher.H, elementsCount uint64, opts ...Option) (*Mmr, error) {
	m, err := New(s, h, mmrID, opts...)
	if err != nil {
		return nil, err
	}

	currentElementsCount, err := m.GetElementsCount(ctx)
	if err != nil {
		return nil, err
	}
	if currentElementsCount != 0 {
		return nil, ErrNonEmptyMmr
	}

	expectedPeakIndices := FindPeaks(elementsCount)
	if len(expectedPeakIndices) != len(peaksHashes) {
		return nil, ErrInvalidPeaksCountForElements
	}

	leavesCount := MmrSizeToLeafCount(elementsCount)
	if err := m.setLeavesCount(ctx, leavesCount); err != nil {
		return nil, err
	}
	if err := m.setElementsCount(ctx, elementsCount); err != nil {
		return nil, err
	}

	for i, peakIndex := range expectedPeakIndices {
		if err := m.setNodeHash(ctx, peakIndex, peaksHashes[i]); err != nil {
			return nil, err
		}
	}

	bag, err := m.bagPeaksHashes(expectedPeakIndices, peaksHashes)
	if err != nil {
		return nil, err
	}
	rootHash, err := m.CalculateRootHash(elementsCount, bag)
	if err != nil {
		return nil, err
	}
	if err := m.setRootHash(ctx, rootHash); err != nil {
		return nil, err
	}

	m.cache = cachedCounts{leavesCount: leavesCount, elementsCount: elementsCount, valid: true}
	return m, nil
}

// Append adds a single value and returns the resulting counts and root.
func (m *Mmr) Append(ctx context.Context, value hasher.H) (AppendResult, error) {
	batchResult, err := m.BatchAppend(ctx, []hasher.H{value})
	if err != nil {
		return AppendResult{}, err
	}
	return AppendResult{
		LeavesCount:   batchResult.LeavesCount,
		ElementsCount: batchResult.ElementsCount,
		ElementIndex:  batchResult.FirstElementIndex,
		RootHash:      batchResult.RootHash,
	}, nil
}

// BatchAppend adds values in order, staging every node write and metadata
// update into a single atomic store write.
func (m *Mmr) BatchAppend(ctx context.Context, values []hasher.H) (BatchAppendResult, error) {
	if len(values) == 0 {
		return BatchAppendResult{}, ErrEmptyBatchAppend
	}

	appendState, err := m.prepareAppendState(ctx)
	if err != nil {
		return BatchAppendResult{}, err
	}

	computation, err := m.buildAppendWrites(ctx, values, appendState)
	if err != nil {
		return BatchAppendResult{}, err
	}

	err = m.store.SetMany(ctx, computation.stagedWrites)
	m.logDebugf("mmr %d: set_many(%d entries)", m.MmrID, len(computation.stagedWrites))
	if err != nil {
		return BatchAppendResult{}, err
	}

	m.cache = cachedCounts{
		leavesCount:   computation.result.LeavesCount,
		elementsCount: computation.result.ElementsCount,
		valid:         true,
	}
	return computation.result, nil
}

// GetProof returns an inclusion proof for elementIndex against elementsCount
// (or the current persisted count if nil).
func (m *Mmr) GetProof(ctx context.Context, elementIndex uint64, elementsCount *uint64) (Proof, error) {
	if elementIndex == 0 {
		return Proof{}, ErrInvalidElementIndex
	}

	treeSize, err := m.resolveTreeSize(ctx, elementsCount)
	if err != nil {
		return Proof{}, err
	}
	if elementIndex > treeSize {
		return Proof{}, ErrInvalidElementIndex
	}

	peaks := FindPeaks(treeSize)
	siblings, err := FindSiblings(elementIndex, treeSize)
	if err != nil {
		return Proof{}, err
	}

	peaksHashes, err := m.retrievePeaksHashes(ctx, peaks)
	if err != nil {
		return Proof{}, err
	}

	siblingKeys := make([]store.Key, len(siblings))
	for i, idx := range siblings {
		siblingKeys[i] = m.nodeKey(idx)
	}
	siblingValues, err := m.store.GetMany(ctx, siblingKeys)
	m.logDebugf("mmr %d: get_many(%d sibling keys)", m.MmrID, len(siblingKeys))
	if err != nil {
		return Proof{}, err
	}
	var siblingsHashes []hasher.H
	for _, key := range siblingKeys {
		if v, ok := siblingValues[key]; ok {
			h, err := v.ExpectHash(key)
			if err != nil {
				return Proof{}, err
			}
			siblingsHashes = append(siblingsHashes, h)
		}
	}

	elementHash, ok, err := m.getNodeHash(ctx, elementIndex)
	if err != nil {
		return Proof{}, err
	}
	if !ok {
		return Proof{}, fmt.Errorf("%w: %d", ErrNoHashFoundForIndex, elementIndex)
	}

	return Proof{
		ElementIndex:   elementIndex,
		ElementHash:    elementHash,
		SiblingsHashes: siblingsHashes,
		PeaksHashes:    peaksHashes,
		ElementsCount:  treeSize,
	}, nil
}

// VerifyProof checks proof for elementValue against elementsCount (or the
// current persisted count if nil), re-reading the current peaks from the
// store rather than trusting proof.PeaksHashes.
func (m *Mmr) VerifyProof(ctx context.Context, proof Proof, elementValue hasher.H, elementsCount *uint64) (bool, error) {
	treeSize, peakIndex, _, ok, err := m.verifyProofShape(ctx, proof, elementsCount)
	if err != nil || !ok {
		return false, err
	}

	hash, err := m.foldCoPath(proof, elementValue)
	if err != nil {
		return false, err
	}

	currentPeaks, err := m.retrievePeaksHashes(ctx, FindPeaks(treeSize))
	if err != nil {
		return false, err
	}
	if peakIndex >= len(currentPeaks) {
		return false, nil
	}
	return currentPeaks[peakIndex] == hash, nil
}

// VerifyProofStateless checks proof the same way as VerifyProof, but
// compares against proof.PeaksHashes instead of reading the store, so it can
// run without store access (e.g. in an off-chain verifier).
func (m *Mmr) VerifyProofStateless(ctx context.Context, proof Proof, elementValue hasher.H, elementsCount *uint64) (bool, error) {
	_, peakIndex, _, ok, err := m.verifyProofShape(ctx, proof, elementsCount)
	if err != nil || !ok {
		return false, err
	}

	hash, err := m.foldCoPath(proof, elementValue)
	if err != nil {
		return false, err
	}

	if peakIndex >= len(proof.PeaksHashes) {
		return false, nil
	}
	return proof.PeaksHashes[peakIndex] == hash, nil
}

// verifyProofShape applies the checks common to both verify modes and
// returns the resolved tree size and peak coordinates. ok is false when the
// proof's sibling count disagrees with the expected peak height (a
// false-but-no-error verification outcome, not a malformed-proof error).
func (m *Mmr) verifyProofShape(ctx context.Context, proof Proof, elementsCount *uint64) (treeSize uint64, peakIndex int, peakHeight int, ok bool, err error) {
	treeSize, err = m.resolveTreeSize(ctx, elementsCount)
	if err != nil {
		return 0, 0, 0, false, err
	}
	leafCount := MmrSizeToLeafCount(treeSize)
	expectedPeaks := int(LeafCountToPeaksCount(leafCount))

	if len(proof.PeaksHashes) != expectedPeaks {
		return 0, 0, 0, false, ErrInvalidPeaksCount
	}
	if proof.ElementIndex == 0 || proof.ElementIndex > treeSize {
		return 0, 0, 0, false, ErrInvalidElementIndex
	}

	peakIndex, peakHeight = GetPeakInfo(treeSize, proof.ElementIndex)
	if len(proof.SiblingsHashes) != peakHeight {
		return treeSize, peakIndex, peakHeight, false, nil
	}

	return treeSize, peakIndex, peakHeight, true, nil
}

func (m *Mmr) foldCoPath(proof Proof, elementValue hasher.H) (hasher.H, error) {
	hash := elementValue
	leafIndex, err := ElementIndexToLeafIndex(proof.ElementIndex)
	if err != nil {
		return hasher.Zero, err
	}

	for _, siblingHash := range proof.SiblingsHashes {
		isRight := leafIndex%2 == 1
		leafIndex /= 2
		if isRight {
			hash, err = m.hasher.HashPair(siblingHash, hash)
		} else {
			hash, err = m.hasher.HashPair(hash, siblingHash)
		}
		if err != nil {
			return hasher.Zero, err
		}
	}
	return hash, nil
}

// GetPeaks returns the element indices of the current (or given) tree size's peaks.
func (m *Mmr) GetPeaks(ctx context.Context, elementsCount *uint64) ([]uint64, error) {
	treeSize, err := m.resolveTreeSize(ctx, elementsCount)
	if err != nil {
		return nil, err
	}
	return FindPeaks(treeSize), nil
}

// GetPeakHashes returns the node hashes at the current (or given) tree
// size's peaks, in the same order as GetPeaks.
func (m *Mmr) GetPeakHashes(ctx context.Context, elementsCount *uint64) ([]hasher.H, error) {
	treeSize, err := m.resolveTreeSize(ctx, elementsCount)
	if err != nil {
		return nil, err
	}
	return m.retrievePeaksHashes(ctx, FindPeaks(treeSize))
}

// BagThePeaks folds the current (or given) tree size's peak hashes into a
// single bag hash, per the right-associative bagging algorithm.
func (m *Mmr) BagThePeaks(ctx context.Context, elementsCount *uint64) (hasher.H, error) {
	treeSize, err := m.resolveTreeSize(ctx, elementsCount)
	if err != nil {
		return hasher.Zero, err
	}
	peakIdxs := FindPeaks(treeSize)
	peaksHashes, err := m.retrievePeaksHashes(ctx, peakIdxs)
	if err != nil {
		return hasher.Zero, err
	}
	return m.bagPeaksHashes(peakIdxs, peaksHashes)
}

// bagPeaksHashes implements the right-associative bagging fold: zero peaks
// bag to the zero hash, one peak bags to itself, and two or more fold from
// the right, pairing the two rightmost peaks first.
func (m *Mmr) bagPeaksHashes(peakIndices []uint64, peakHashes []hasher.H) (hasher.H, error) {
	switch len(peakIndices) {
	case 0:
		return hasher.Zero, nil
	case 1:
		if len(peakHashes) == 0 {
			return hasher.Zero, fmt.Errorf("%w: %d", ErrNoHashFoundForIndex, peakIndices[0])
		}
		return peakHashes[0], nil
	default:
		if len(peakHashes) < 2 {
			return hasher.Zero, fmt.Errorf("%w: %d", ErrNoHashFoundForIndex, peakIndices[0])
		}

		acc, err := m.hasher.HashPair(peakHashes[len(peakHashes)-2], peakHashes[len(peakHashes)-1])
		if err != nil {
			return hasher.Zero, err
		}

		for i := len(peakHashes) - 3; i >= 0; i-- {
			acc, err = m.hasher.HashPair(peakHashes[i], acc)
			if err != nil {
				return hasher.Zero, err
			}
		}
		return acc, nil
	}
}

// CalculateRootHash combines elementsCount with a bag hash into the root hash.
func (m *Mmr) CalculateRootHash(elementsCount uint64, bag hasher.H) (hasher.H, error) {
	return m.hasher.HashCountAndBag(elementsCount, bag)
}

// GetRootHash returns the currently persisted root hash, if any.
func (m *Mmr) GetRootHash(ctx context.Context) (hasher.H, bool, error) {
	v, ok, err := m.store.Get(ctx, m.rootHashKey())
	if err != nil || !ok {
		return hasher.Zero, false, err
	}
	h, err := v.ExpectHash(m.rootHashKey())
	if err != nil {
		return hasher.Zero, false, err
	}
	return h, true, nil
}

// GetLeavesCount returns the currently persisted leaves count (0 if unset).
func (m *Mmr) GetLeavesCount(ctx context.Context) (uint64, error) {
	v, ok, err := m.store.Get(ctx, m.leafCountKey())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return v.ExpectU64(m.leafCountKey())
}

// GetElementsCount returns the currently persisted elements count (0 if unset).
func (m *Mmr) GetElementsCount(ctx context.Context) (uint64, error) {
	v, ok, err := m.store.Get(ctx, m.elementsCountKey())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return v.ExpectU64(m.elementsCountKey())
}

func (m *Mmr) resolveTreeSize(ctx context.Context, elementsCount *uint64) (uint64, error) {
	if elementsCount != nil {
		return *elementsCount, nil
	}
	return m.GetElementsCount(ctx)
}

func (m *Mmr) retrievePeaksHashes(ctx context.Context, peakIdxs []uint64) ([]hasher.H, error) {
	keys := make([]store.Key, len(peakIdxs))
	for i, idx := range peakIdxs {
		keys[i] = m.nodeKey(idx)
	}
	values, err := m.store.GetMany(ctx, keys)
	m.logDebugf("mmr %d: get_many(%d peak keys)", m.MmrID, len(keys))
	if err != nil {
		return nil, err
	}

	hashes := make([]hasher.H, 0, len(keys))
	for _, key := range keys {
		if v, ok := values[key]; ok {
			h, err := v.ExpectHash(key)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

func (m *Mmr) setLeavesCount(ctx context.Context, value uint64) error {
	return m.store.Set(ctx, m.leafCountKey(), store.U64Value(value))
}

func (m *Mmr) setElementsCount(ctx context.Context, value uint64) error {
	return m.store.Set(ctx, m.elementsCountKey(), store.U64Value(value))
}

func (m *Mmr) setRootHash(ctx context.Context, h hasher.H) error {
	return m.store.Set(ctx, m.rootHashKey(), store.HashValue(h))
}

func (m *Mmr) getNodeHash(ctx context.Context, index uint64) (hasher.H, bool, error) {
	key := m.nodeKey(index)
	v, ok, err := m.store.Get(ctx, key)
	if err != nil || !ok {
		return hasher.Zero, false, err
	}
	h, err := v.ExpectHash(key)
	if err != nil {
		return hasher.Zero, false, err
	}
	return h, true, nil
}

func (m *Mmr) setNodeHash(ctx context.Context, index uint64, h hasher.H) error {
	return m.store.Set(ctx, m.nodeKey(index), store.HashValue(h))
}

func (m *Mmr) leafCountKey() store.Key { return store.MetadataKey(m.MmrID, store.KindLeafCount) }

func (m *Mmr) elementsCountKey() store.Key {
	return store.MetadataKey(m.MmrID, store.KindElementsCount)
}

func (m *Mmr) rootHashKey() store.Key { return store.MetadataKey(m.MmrID, store.KindRootHash) }

func (m *Mmr) nodeKey(index uint64) store.Key {
	return store.NewKey(m.MmrID, store.KindNodeHash, index)
}
