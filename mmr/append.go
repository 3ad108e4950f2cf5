package mmr

import (
	"context"
	"fmt"
	"math"

	"github.com/bankaixyz/mmr/hasher"
	"github.com/bankaixyz/mmr/store"
)

// appendState is the metadata an append batch is staged against: the counts
// observed at the start of the read phase, plus any node hashes the read
// phase already fetched (the tree's peaks before this batch). A cascading
// append merge only ever consumes the rightmost existing peaks, in order,
// so preloaded lets the compute phase avoid a second round trip for them.
type appendState struct {
	leavesCount   uint64
	elementsCount uint64
	preloaded     map[store.Key]store.Value
}

// appendComputation is the output of the pure compute phase: every store
// write the batch produces, plus the result summary to hand back to the caller.
type appendComputation struct {
	stagedWrites map[store.Key]store.Value
	result       BatchAppendResult
}

// prepareAppendState is the read phase of a batch append: a single get_many
// covering the leaf/elements counts and, when a prior cache exists, the
// hashes at the peaks that cache implies. That same read re-confirms the
// counts: if they disagree with the cache, some other writer touched this
// mmr_id between the two appends, which this package does not support, and
// the reconciliation is reported rather than silently overwritten. With no
// prior cache (the first append on this Mmr value), the first get_many reads
// only the counts, and a second get_many then fetches the peaks those counts
// imply (skipped when the tree is empty).
func (m *Mmr) prepareAppendState(ctx context.Context) (appendState, error) {
	keys := []store.Key{m.leafCountKey(), m.elementsCountKey()}
	if m.cache.valid {
		for _, idx := range FindPeaks(m.cache.elementsCount) {
			keys = append(keys, m.nodeKey(idx))
		}
	}

	values, err := m.store.GetMany(ctx, keys)
	m.logDebugf("mmr %d: get_many(%d keys)", m.MmrID, len(keys))
	if err != nil {
		return appendState{}, err
	}

	leavesCount, err := valueAsU64(values, m.leafCountKey())
	if err != nil {
		return appendState{}, err
	}
	elementsCount, err := valueAsU64(values, m.elementsCountKey())
	if err != nil {
		return appendState{}, err
	}

	if m.cache.valid {
		if leavesCount != m.cache.leavesCount || elementsCount != m.cache.elementsCount {
			return appendState{}, fmt.Errorf("%w: mmr metadata changed unexpectedly; multiple writers for same mmr_id are not supported", store.ErrInternal)
		}
		return appendState{leavesCount: leavesCount, elementsCount: elementsCount, preloaded: values}, nil
	}

	// No cache yet: elementsCount was unknown before this read, so its peaks
	// could not have been included in the call above. Now that it is known,
	// fetch them in one more get_many so the compute phase still has every
	// merge partner preloaded.
	if elementsCount != 0 {
		peakKeys := make([]store.Key, 0)
		for _, idx := range FindPeaks(elementsCount) {
			peakKeys = append(peakKeys, m.nodeKey(idx))
		}
		if len(peakKeys) > 0 {
			peakValues, err := m.store.GetMany(ctx, peakKeys)
			m.logDebugf("mmr %d: get_many(%d peak keys)", m.MmrID, len(peakKeys))
			if err != nil {
				return appendState{}, err
			}
			for k, v := range peakValues {
				values[k] = v
			}
		}
	}

	return appendState{leavesCount: leavesCount, elementsCount: elementsCount, preloaded: values}, nil
}

func valueAsU64(values map[store.Key]store.Value, key store.Key) (uint64, error) {
	v, ok := values[key]
	if !ok {
		return 0, nil
	}
	return v.ExpectU64(key)
}

// buildAppendWrites is the compute phase: given the values to append and the
// state read at the start of the batch, it derives every node hash the
// append produces (leaf hashes and the internal nodes they merge into),
// re-resolving peaks and the root hash once at the end. Every merge partner
// is either a node staged earlier in this same call or one of state's
// preloaded peak hashes; an individual store read is only issued as a last
// resort, for a node that state does not carry. Splitting this out from BatchAppend
// keeps the merge arithmetic independently testable and keeps the write
// phase a single, final SetMany.
func (m *Mmr) buildAppendWrites(ctx context.Context, values []hasher.H, state appendState) (appendComputation, error) {
	writes := make(map[store.Key]store.Value)

	leavesCount := state.leavesCount
	elementsCount := state.elementsCount
	firstElementIndex := elementsCount + 1

	for _, leafHash := range values {
		if elementsCount == math.MaxUint64 {
			return appendComputation{}, ErrOverflow
		}
		leafElementIndex := elementsCount + 1
		writes[m.nodeKey(leafElementIndex)] = store.HashValue(leafHash)
		elementsCount++

		height := 0
		currentHash := leafHash
		currentIndex := leafElementIndex

		noMerges := LeafCountToAppendNoMerges(leavesCount)
		for i := uint64(0); i < noMerges; i++ {
			leftIndex := currentIndex - (uint64(2) << height) + 1
			leftHash, err := m.resolveNodeHash(ctx, writes, state.preloaded, leftIndex)
			if err != nil {
				return appendComputation{}, err
			}

			if currentIndex == math.MaxUint64 || elementsCount == math.MaxUint64 {
				return appendComputation{}, ErrOverflow
			}
			parentIndex := currentIndex + 1
			parentHash, err := m.hasher.HashPair(leftHash, currentHash)
			if err != nil {
				return appendComputation{}, err
			}
			writes[m.nodeKey(parentIndex)] = store.HashValue(parentHash)
			elementsCount++

			currentIndex = parentIndex
			currentHash = parentHash
			height++
		}

		if leavesCount == math.MaxUint64 {
			return appendComputation{}, ErrOverflow
		}
		leavesCount++
	}

	lastElementIndex := elementsCount

	writes[m.leafCountKey()] = store.U64Value(leavesCount)
	writes[m.elementsCountKey()] = store.U64Value(elementsCount)

	peakIdxs := FindPeaks(elementsCount)
	if peakIdxs == nil {
		return appendComputation{}, ErrInvalidElementCount
	}

	peaksHashes := make([]hasher.H, 0, len(peakIdxs))
	for _, idx := range peakIdxs {
		h, err := m.resolveNodeHash(ctx, writes, state.preloaded, idx)
		if err != nil {
			return appendComputation{}, err
		}
		peaksHashes = append(peaksHashes, h)
	}

	bag, err := m.bagPeaksHashes(peakIdxs, peaksHashes)
	if err != nil {
		return appendComputation{}, err
	}
	rootHash, err := m.CalculateRootHash(elementsCount, bag)
	if err != nil {
		return appendComputation{}, err
	}
	writes[m.rootHashKey()] = store.HashValue(rootHash)

	return appendComputation{
		stagedWrites: writes,
		result: BatchAppendResult{
			AppendedCount:     uint64(len(values)),
			FirstElementIndex: firstElementIndex,
			LastElementIndex:  lastElementIndex,
			LeavesCount:       leavesCount,
			ElementsCount:     elementsCount,
			RootHash:          rootHash,
			PeaksHashes:       peaksHashes,
		},
	}, nil
}

// resolveNodeHash looks up index's hash among this batch's staged writes,
// then among the state read at the start of the batch, and only as a last
// resort issues an individual store read.
func (m *Mmr) resolveNodeHash(ctx context.Context, writes, preloaded map[store.Key]store.Value, index uint64) (hasher.H, error) {
	key := m.nodeKey(index)

	if h, ok := lookupHash(writes, key); ok {
		return h, nil
	}
	if h, ok := lookupHash(preloaded, key); ok {
		return h, nil
	}

	fetched, found, err := m.getNodeHash(ctx, index)
	if err != nil {
		return hasher.Zero, err
	}
	if !found {
		return hasher.Zero, fmt.Errorf("%w: %d", ErrNoHashFoundForIndex, index)
	}
	return fetched, nil
}

func lookupHash(values map[store.Key]store.Value, key store.Key) (hasher.H, bool) {
	v, ok := values[key]
	if !ok {
		return hasher.Zero, false
	}
	h, err := v.ExpectHash(key)
	if err != nil {
		return hasher.Zero, false
	}
	return h, true
}
