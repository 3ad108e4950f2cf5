package pgstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bankaixyz/mmr/hasher"
	"github.com/bankaixyz/mmr/store"
)

func TestEncodeValueForNodeHashIsCompact(t *testing.T) {
	key := store.NewKey(1, store.KindNodeHash, 42)
	var h hasher.H
	h[0] = 9
	encoded, err := encodeValue(key, store.HashValue(h))
	require.NoError(t, err)
	require.Len(t, encoded, 32)
}

func TestEncodeValueForCounterIsCompact(t *testing.T) {
	key := store.MetadataKey(1, store.KindLeafCount)
	encoded, err := encodeValue(key, store.U64Value(7))
	require.NoError(t, err)
	require.Len(t, encoded, 8)
}

func TestEncodeValueRejectsTypeMismatch(t *testing.T) {
	key := store.MetadataKey(1, store.KindLeafCount)
	var h hasher.H
	_, err := encodeValue(key, store.HashValue(h))
	require.ErrorIs(t, err, store.ErrTypeMismatch)
}

func TestDecodeValueRoundTrip(t *testing.T) {
	key := store.NewKey(1, store.KindNodeHash, 42)
	var h hasher.H
	h[5] = 3
	encoded, err := encodeValue(key, store.HashValue(h))
	require.NoError(t, err)

	decoded, err := decodeValue(key, encoded)
	require.NoError(t, err)
	got, err := decoded.ExpectHash(key)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeValueRejectsWrongWidth(t *testing.T) {
	key := store.MetadataKey(1, store.KindLeafCount)
	_, err := decodeValue(key, []byte{1, 2, 3})
	require.ErrorIs(t, err, store.ErrInternal)
}

func TestToPgIdxRejectsOutOfRange(t *testing.T) {
	_, err := toPgIdx(1 << 63)
	require.ErrorIs(t, err, store.ErrInternal)
}

func TestCreateTableSQLUsesConfiguredTableName(t *testing.T) {
	s := &Store{tableName: "custom_nodes"}
	require.Contains(t, s.createTableSQL(), "custom_nodes")
}
