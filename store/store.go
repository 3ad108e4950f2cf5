// Package store defines the typed key/value contract the mmr engine reads
// and writes through, independent of any particular backing database.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bankaixyz/mmr/hasher"
)

// KeyKind identifies which piece of MMR metadata or node data a Key refers to.
type KeyKind uint8

const (
	// KindLeafCount stores the number of leaves appended to an MMR.
	KindLeafCount KeyKind = 0
	// KindElementsCount stores the total element count (leaves and internal nodes) of an MMR.
	KindElementsCount KeyKind = 1
	// KindRootHash stores an MMR's last computed root hash.
	KindRootHash KeyKind = 2
	// KindNodeHash stores the hash at a specific 1-based element index.
	KindNodeHash KeyKind = 3
)

// String renders k using its field name, for logging and error messages.
func (k KeyKind) String() string {
	switch k {
	case KindLeafCount:
		return "leaf_count"
	case KindElementsCount:
		return "elements_count"
	case KindRootHash:
		return "root_hash"
	case KindNodeHash:
		return "node_hash"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Key identifies a single value within one MMR's namespace. Metadata keys
// (LeafCount, ElementsCount, RootHash) leave Index at zero; NodeHash keys
// carry the 1-based element index being addressed.
type Key struct {
	MmrID uint32
	Kind  KeyKind
	Index uint64
}

// NewKey returns a Key addressing a node-scoped value.
func NewKey(mmrID uint32, kind KeyKind, index uint64) Key {
	return Key{MmrID: mmrID, Kind: kind, Index: index}
}

// MetadataKey returns a Key addressing an MMR-scoped metadata value.
func MetadataKey(mmrID uint32, kind KeyKind) Key {
	return NewKey(mmrID, kind, 0)
}

// ValueKind distinguishes the two shapes a Value can carry.
type ValueKind uint8

const (
	// ValueKindU64 marks a Value holding a count.
	ValueKindU64 ValueKind = iota
	// ValueKindHash marks a Value holding a node or root hash.
	ValueKindHash
)

// Value is a tagged union over the two value shapes the store persists:
// counts (u64) and hashes (32 bytes).
type Value struct {
	kind ValueKind
	u64  uint64
	hash hasher.H
}

// U64Value wraps a count as a Value.
func U64Value(v uint64) Value {
	return Value{kind: ValueKindU64, u64: v}
}

// HashValue wraps a hash as a Value.
func HashValue(h hasher.H) Value {
	return Value{kind: ValueKindHash, hash: h}
}

var (
	// ErrInternal wraps backend-specific failures (connection errors,
	// poisoned locks, and similar) that callers cannot act on beyond retrying.
	ErrInternal = errors.New("store: internal error")
	// ErrTypeMismatch is returned when a Value is unwrapped as the wrong kind.
	ErrTypeMismatch = errors.New("store: type mismatch")
)

// ExpectU64 unwraps v as a count, or returns ErrTypeMismatch naming key.
func (v Value) ExpectU64(key Key) (uint64, error) {
	if v.kind != ValueKindU64 {
		return 0, fmt.Errorf("%w for key %+v: expected u64, got %s", ErrTypeMismatch, key, v.kind)
	}
	return v.u64, nil
}

// ExpectHash unwraps v as a hash, or returns ErrTypeMismatch naming key.
func (v Value) ExpectHash(key Key) (hasher.H, error) {
	if v.kind != ValueKindHash {
		return hasher.Zero, fmt.Errorf("%w for key %+v: expected hash32, got %s", ErrTypeMismatch, key, v.kind)
	}
	return v.hash, nil
}

func (k ValueKind) String() string {
	switch k {
	case ValueKindU64:
		return "u64"
	case ValueKindHash:
		return "hash32"
	default:
		return "unknown"
	}
}

// Store is the contract the mmr engine is built against. Implementations
// must be safe for concurrent use by multiple goroutines, and SetMany must
// apply all-or-nothing.
type Store interface {
	Get(ctx context.Context, key Key) (Value, bool, error)
	Set(ctx context.Context, key Key, value Value) error
	// SetMany writes entries atomically: either all values become visible
	// to subsequent Get/GetMany calls, or none do.
	SetMany(ctx context.Context, entries map[Key]Value) error
	GetMany(ctx context.Context, keys []Key) (map[Key]Value, error)
}
