package mmr

import "errors"

var (
	// ErrNonEmptyMmr is returned by CreateFromPeaks when the mmr_id already
	// has a non-zero elements count.
	ErrNonEmptyMmr = errors.New("mmr: cannot initialize from peaks for non-empty mmr")
	// ErrInvalidElementCount is returned when a count does not decompose into
	// a valid MMR peak layout.
	ErrInvalidElementCount = errors.New("mmr: invalid element count")
	// ErrInvalidElementIndex is returned for a zero or out-of-range element index.
	ErrInvalidElementIndex = errors.New("mmr: invalid element index")
	// ErrInvalidPeaksCount is returned when a proof's peaks hash count
	// disagrees with the tree size it is checked against.
	ErrInvalidPeaksCount = errors.New("mmr: invalid peaks count")
	// ErrInvalidPeaksCountForElements is returned by CreateFromPeaks when the
	// supplied peak hashes don't match the declared elements count.
	ErrInvalidPeaksCountForElements = errors.New("mmr: invalid peaks count for the given element count")
	// ErrEmptyBatchAppend is returned by BatchAppend given an empty slice.
	ErrEmptyBatchAppend = errors.New("mmr: cannot batch append an empty list of values")
	// ErrNoHashFoundForIndex is returned when a node expected to exist has no
	// stored hash.
	ErrNoHashFoundForIndex = errors.New("mmr: no hash found for index")
	// ErrOverflow is returned when a 64-bit counter would wrap.
	ErrOverflow = errors.New("mmr: arithmetic overflow")
	// ErrMalformedProofEncoding is returned when a CBOR-decoded proof
	// contains a hash field of the wrong byte width.
	ErrMalformedProofEncoding = errors.New("mmr: malformed proof encoding")
)
