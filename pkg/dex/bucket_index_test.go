package dex_test

import (
	"fmt"
	"testing"

	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/stretchr/testify/require"
)

func TestIDIndex_AddLocateDelete(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenIDIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, int64(28+dex.DefaultBucketSlots*(4+dex.DefaultEntriesPerBucket*16)), idx.Size())

	id := newID()
	require.NoError(t, idx.Add(id, 4))
	require.NoError(t, idx.Add(id, 4), "adding the same pair twice")
	require.Equal(t, int64(1), idx.Entries())

	addrs, err := idx.Locate(id)
	require.NoError(t, err)
	require.Equal(t, []int64{4}, addrs)

	ok, err := idx.Contains(id, 4)
	require.NoError(t, err)
	require.True(t, ok)

	addrs, err = idx.Locate(newID())
	require.NoError(t, err)
	require.Empty(t, addrs)

	require.NoError(t, idx.Delete(id, 4))
	require.True(t, dex.IsNotFound(idx.Delete(id, 4)))
	require.Equal(t, int64(0), idx.Entries())

	require.True(t, dex.IsInvalid(idx.Add("", 1)))
}

func TestPathIndex_SharedPath(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenPathIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add("/a", 1))
	require.NoError(t, idx.Add("/a", 7))
	require.NoError(t, idx.Add("/b", 2))

	addrs, err := idx.Locate("/a")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 7}, addrs)

	require.NoError(t, idx.Delete("/a", 1))
	addrs, err = idx.Locate("/a")
	require.NoError(t, err)
	require.Equal(t, []int64{7}, addrs)
}

func TestPathIndex_BucketCapacityDoubles(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenPathIndex(ctx, t.TempDir(), dex.WithSlots(1), dex.WithEntriesPerSlot(2))
	require.NoError(t, err)
	defer idx.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Add(fmt.Sprintf("/p/%d", i), int64(i)))
	}
	require.Equal(t, 8, idx.EntriesPerSlot())
	require.Equal(t, int64(1), idx.Slots())
	require.Equal(t, int64(5), idx.Entries())

	for i := 0; i < 5; i++ {
		ok, err := idx.Contains(fmt.Sprintf("/p/%d", i), int64(i))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.InDelta(t, 5.0/8.0, idx.LoadFactor(), 1e-9)
}

func TestPathIndex_SlotsFixedWithEntries(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenPathIndex(ctx, dir, dex.WithSlots(4), dex.WithEntriesPerSlot(2))
	require.NoError(t, err)
	require.Equal(t, int64(28+4*(4+2*16)), idx.Size())

	require.NoError(t, idx.Resize(8, 2), "empty index may change its bucket count")
	require.Equal(t, int64(8), idx.Slots())

	require.NoError(t, idx.Add("/a", 0))
	err = idx.Resize(16, 2)
	require.True(t, dex.IsInvalidState(err))
	var shrink *dex.ShrinkError
	require.ErrorAs(t, err, &shrink)
	require.Equal(t, "slots", shrink.Field)

	require.NoError(t, idx.Resize(8, 4))
	ok, err := idx.Contains("/a", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, idx.Close())

	// Reopening with a different bucket count keeps the stored one.
	idx, err = dex.OpenPathIndex(ctx, dir, dex.WithSlots(32))
	require.NoError(t, err)
	defer idx.Close()
	require.Equal(t, int64(8), idx.Slots())
	ok, err = idx.Contains("/a", 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIDIndex_Clear(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenIDIndex(ctx, t.TempDir(), dex.WithSlots(8), dex.WithEntriesPerSlot(4))
	require.NoError(t, err)
	defer idx.Close()

	id := newID()
	require.NoError(t, idx.Add(id, 0))
	size := idx.Size()

	require.NoError(t, idx.Clear())
	require.Equal(t, size, idx.Size())
	require.Equal(t, int64(0), idx.Entries())
	addrs, err := idx.Locate(id)
	require.NoError(t, err)
	require.Empty(t, addrs)
}
