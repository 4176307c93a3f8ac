package cachekey_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
)

func TestKeyRoundTrip(t *testing.T) {
	k := cachekey.Key{BlockID: 0x0102030405060708, RowGroupID: 7, ColumnID: 42}
	b := k.Bytes()

	got, err := cachekey.FromBytes(b[:])
	require.NoError(t, err)
	require.Equal(t, k, got)
}

func TestKeyBytesAreBigEndian(t *testing.T) {
	k := cachekey.Key{BlockID: 1, RowGroupID: 0, ColumnID: 0}
	b := k.Bytes()
	require.Equal(t, byte(1), b[7])
	require.Equal(t, byte(0), b[0])
}

func TestKeyOrderingMatchesFieldOrdering(t *testing.T) {
	a := cachekey.Key{BlockID: 1, RowGroupID: 0, ColumnID: 0}.Bytes()
	b := cachekey.Key{BlockID: 2, RowGroupID: 0, ColumnID: 0}.Bytes()
	require.True(t, string(a[:]) < string(b[:]))
}

func TestFromBytesShortBuffer(t *testing.T) {
	_, err := cachekey.FromBytes(make([]byte, 5))
	require.ErrorIs(t, err, cachekey.ErrShortBuffer)
}

func TestIdxRoundTrip(t *testing.T) {
	idx := cachekey.Idx{Offset: 0x123456789A, Length: 4096}
	b := idx.Bytes()

	got, err := cachekey.FromIdxBytes(b[:])
	require.NoError(t, err)
	require.Equal(t, idx, got)
}

func TestIdxOffsetOnlyUsesLower6Bytes(t *testing.T) {
	idx := cachekey.Idx{Offset: 0xFFFFFFFFFFFFFFFF, Length: 1}
	b := idx.Bytes()

	got, err := cachekey.FromIdxBytes(b[:])
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFFFFFF), got.Offset)
}

func TestFromIdxBytesShortBuffer(t *testing.T) {
	_, err := cachekey.FromIdxBytes(make([]byte, 11))
	require.ErrorIs(t, err, cachekey.ErrShortBuffer)
}
