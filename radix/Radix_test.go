package radix_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/radix"
	"github.com/pixelsdb/pixels-cache-go/region"
)

func openTestRegion(t *testing.T, size int64) *region.Region {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radix.bin")
	r, err := region.Open(path, size, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Unmap() })
	return r
}

func key(blockID uint64, rg, col uint16) []byte {
	k := cachekey.Key{BlockID: blockID, RowGroupID: rg, ColumnID: col}
	b := k.Bytes()
	return b[:]
}

func TestGetMissingKey(t *testing.T) {
	tree := radix.New()
	_, found := tree.Get(key(1, 0, 0))
	require.False(t, found)
}

func TestPutGetSingleEntry(t *testing.T) {
	tree := radix.New()
	idx := cachekey.Idx{Offset: 128, Length: 64}
	tree.Put(key(1, 0, 0), idx)

	got, found := tree.Get(key(1, 0, 0))
	require.True(t, found)
	require.Equal(t, idx, got)
}

func TestPutOverwritesExisting(t *testing.T) {
	tree := radix.New()
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 1, Length: 1})
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 2, Length: 2})

	got, found := tree.Get(key(1, 0, 0))
	require.True(t, found)
	require.Equal(t, cachekey.Idx{Offset: 2, Length: 2}, got)
}

func TestPutCausesEdgeSplit(t *testing.T) {
	tree := radix.New()
	// These two keys share the first 11 bytes (blockID, rowGroupID and the
	// high byte of columnId) and diverge only in columnId's low byte,
	// forcing an intermediate split node.
	tree.Put(key(1, 5, 1), cachekey.Idx{Offset: 10, Length: 1})
	tree.Put(key(1, 5, 2), cachekey.Idx{Offset: 20, Length: 2})

	got1, found1 := tree.Get(key(1, 5, 1))
	require.True(t, found1)
	require.Equal(t, cachekey.Idx{Offset: 10, Length: 1}, got1)

	got2, found2 := tree.Get(key(1, 5, 2))
	require.True(t, found2)
	require.Equal(t, cachekey.Idx{Offset: 20, Length: 2}, got2)

	_, found3 := tree.Get(key(1, 5, 3))
	require.False(t, found3)
}

func TestPutKeyThatIsPrefixOfExisting(t *testing.T) {
	tree := radix.New()
	long := append(key(1, 0, 0), 0xFF)
	tree.Put(long, cachekey.Idx{Offset: 1, Length: 1})
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 2, Length: 2})

	got, found := tree.Get(key(1, 0, 0))
	require.True(t, found)
	require.Equal(t, cachekey.Idx{Offset: 2, Length: 2}, got)

	gotLong, foundLong := tree.Get(long)
	require.True(t, foundLong)
	require.Equal(t, cachekey.Idx{Offset: 1, Length: 1}, gotLong)
}

func TestRemoveAll(t *testing.T) {
	tree := radix.New()
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 1, Length: 1})
	tree.RemoveAll()

	_, found := tree.Get(key(1, 0, 0))
	require.False(t, found)
}

func TestSerializeReconstructRoundTrip(t *testing.T) {
	reg := openTestRegion(t, 4096)

	tree := radix.New()
	entries := map[string]cachekey.Idx{
		string(key(1, 0, 0)):  {Offset: 100, Length: 10},
		string(key(1, 0, 1)):  {Offset: 110, Length: 20},
		string(key(1, 1, 0)):  {Offset: 130, Length: 30},
		string(key(2, 0, 0)):  {Offset: 160, Length: 40},
		string(key(99, 3, 7)): {Offset: 200, Length: 50},
	}
	for k, idx := range entries {
		tree.Put([]byte(k), idx)
	}

	nextFree, err := tree.Serialize(reg, 16)
	require.NoError(t, err)
	require.Greater(t, nextFree, int64(16))
	require.LessOrEqual(t, nextFree, reg.Size())

	require.NoError(t, reg.PutBytes(0, []byte(cachekey.Magic)))

	reconstructed, err := radix.Reconstruct(reg, 16)
	require.NoError(t, err)

	for k, want := range entries {
		got, found := reconstructed.Get([]byte(k))
		require.True(t, found)
		require.Equal(t, want, got)
	}
}

func TestReconstructRejectsBadMagic(t *testing.T) {
	reg := openTestRegion(t, 4096)

	tree := radix.New()
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 1, Length: 1})
	_, err := tree.Serialize(reg, 16)
	require.NoError(t, err)

	_, err = radix.Reconstruct(reg, 16)
	require.ErrorIs(t, err, radix.ErrCorruptIndex)
}

func TestReconstructedTreeDeepEqualsOriginal(t *testing.T) {
	reg := openTestRegion(t, 4096)

	tree := radix.New()
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 100, Length: 10})
	tree.Put(key(1, 0, 1), cachekey.Idx{Offset: 110, Length: 20})
	tree.Put(key(1, 1, 0), cachekey.Idx{Offset: 130, Length: 30})

	_, err := tree.Serialize(reg, 16)
	require.NoError(t, err)
	require.NoError(t, reg.PutBytes(0, []byte(cachekey.Magic)))

	reconstructed, err := radix.Reconstruct(reg, 16)
	require.NoError(t, err)

	diff := cmp.Diff(tree.Root(), reconstructed.Root(), cmpopts.EquateEmpty())
	require.Empty(t, diff, "reconstructed tree differs from original (-want +got)")
}

func TestSerializedSizeMatchesSerialize(t *testing.T) {
	reg := openTestRegion(t, 4096)

	tree := radix.New()
	tree.Put(key(1, 0, 0), cachekey.Idx{Offset: 1, Length: 1})
	tree.Put(key(1, 0, 1), cachekey.Idx{Offset: 2, Length: 2})

	want := tree.SerializedSize()
	nextFree, err := tree.Serialize(reg, 16)
	require.NoError(t, err)
	require.Equal(t, int64(16)+want, nextFree)
}
