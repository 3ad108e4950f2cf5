package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bankaixyz/mmr/hasher"
	"github.com/bankaixyz/mmr/store"
)

func TestSetManyWritesAllEntries(t *testing.T) {
	ctx := context.Background()
	s := New()
	entries := map[store.Key]store.Value{
		store.MetadataKey(1, store.KindLeafCount): store.U64Value(7),
		store.NewKey(1, store.KindNodeHash, 10):   store.HashValue(hashOf(3)),
	}

	require.NoError(t, s.SetMany(ctx, entries))

	leaf, ok, err := s.Get(ctx, store.MetadataKey(1, store.KindLeafCount))
	require.NoError(t, err)
	require.True(t, ok)
	leafCount, err := leaf.ExpectU64(store.MetadataKey(1, store.KindLeafCount))
	require.NoError(t, err)
	require.Equal(t, uint64(7), leafCount)

	node, ok, err := s.Get(ctx, store.NewKey(1, store.KindNodeHash, 10))
	require.NoError(t, err)
	require.True(t, ok)
	nodeHash, err := node.ExpectHash(store.NewKey(1, store.KindNodeHash, 10))
	require.NoError(t, err)
	require.Equal(t, hashOf(3), nodeHash)
}

func TestGetMissingKeyReturnsNotOk(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, ok, err := s.Get(ctx, store.MetadataKey(1, store.KindLeafCount))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetManyOmitsMissingKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, store.NewKey(1, store.KindNodeHash, 1), store.HashValue(hashOf(1))))

	got, err := s.GetMany(ctx, []store.Key{
		store.NewKey(1, store.KindNodeHash, 1),
		store.NewKey(1, store.KindNodeHash, 2),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, ok := got[store.NewKey(1, store.KindNodeHash, 2)]
	require.False(t, ok)
}

func TestConcurrentSetDoesNotRace(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := uint64(0); i < 100; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			_ = s.Set(ctx, store.NewKey(1, store.KindNodeHash, i), store.U64Value(i))
		}(i)
	}
	wg.Wait()

	got, err := s.GetMany(ctx, []store.Key{store.NewKey(1, store.KindNodeHash, 50)})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func hashOf(b byte) hasher.H {
	var h hasher.H
	h[0] = b
	return h
}
