package dex_test

import (
	"testing"

	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/stretchr/testify/require"
)

func TestVersionIndex_CapacityDoubles(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenVersionIndex(ctx, t.TempDir(), dex.WithValuesPerEntry(8))
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, int64(28), idx.Size())

	other, err := idx.Add(newID(), 0)
	require.NoError(t, err)

	addr, err := idx.Add(newID(), 0)
	require.NoError(t, err)
	for v := int64(1); v <= 8; v++ {
		require.NoError(t, idx.AddVersion(addr, v))
	}

	require.Equal(t, 16, idx.ValuesPerEntry())
	require.Equal(t, int64(28+2*(36+4+16*8)), idx.Size())

	versions, err := idx.Versions(addr)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8}, versions)

	versions, err = idx.Versions(other)
	require.NoError(t, err)
	require.Equal(t, []int64{0}, versions)
}

func TestVersionIndex_AppendIsASet(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenVersionIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	addr, err := idx.Add(newID(), 1)
	require.NoError(t, err)
	require.NoError(t, idx.AddVersion(addr, 0))
	require.NoError(t, idx.AddVersion(addr, 1))

	versions, err := idx.Versions(addr)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 0}, versions)
	require.Equal(t, int64(2), idx.ValueCount())
}

func TestVersionIndex_DeleteVersion(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenVersionIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	addr, err := idx.Add(newID(), 0)
	require.NoError(t, err)
	require.NoError(t, idx.AddVersion(addr, 1))
	require.NoError(t, idx.AddVersion(addr, 2))

	require.NoError(t, idx.DeleteVersion(addr, 1))
	versions, err := idx.Versions(addr)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 2}, versions)

	require.True(t, dex.IsNotFound(idx.DeleteVersion(addr, 9)))

	ok, err := idx.HasVersion(addr, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, idx.DeleteVersion(addr, 0))
	require.NoError(t, idx.DeleteVersion(addr, 2))
	require.Equal(t, int64(0), idx.Entries())
	require.Equal(t, int64(0), idx.ValueCount())

	ok, err = idx.HasVersions(addr)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = idx.Versions(addr)
	require.True(t, dex.IsNotFound(err))

	reused, err := idx.Add(newID(), 5)
	require.NoError(t, err)
	require.Equal(t, addr, reused)
}

func TestVersionIndex_LoadFactor(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenVersionIndex(ctx, t.TempDir(), dex.WithValuesPerEntry(4))
	require.NoError(t, err)
	defer idx.Close()

	require.Zero(t, idx.LoadFactor())

	_, err = idx.Add(newID(), 0)
	require.NoError(t, err)
	addr, err := idx.Add(newID(), 0)
	require.NoError(t, err)
	require.NoError(t, idx.AddVersion(addr, 1))
	require.NoError(t, idx.AddVersion(addr, 2))

	require.InDelta(t, 4.0/8.0, idx.LoadFactor(), 1e-9)
}

func TestVersionIndex_AddAtIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenVersionIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	id := newID()
	require.NoError(t, idx.AddAt(5, id, 3))
	require.NoError(t, idx.AddAt(5, id, 3))
	require.NoError(t, idx.AddAt(5, id, 4))

	require.Equal(t, int64(6), idx.Slots())
	require.Equal(t, int64(1), idx.Entries())

	versions, err := idx.Versions(5)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4}, versions)

	got, err := idx.ID(5)
	require.NoError(t, err)
	require.Equal(t, id, got)

	require.True(t, dex.IsInvalidState(idx.AddAt(5, newID(), 1)))
}

func TestVersionIndex_ReopenAndShrink(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenVersionIndex(ctx, dir)
	require.NoError(t, err)
	id := newID()
	addr, err := idx.Add(id, 0)
	require.NoError(t, err)
	require.NoError(t, idx.AddVersion(addr, 1))
	_, err = idx.Add(newID(), 0)
	require.NoError(t, err)
	require.NoError(t, idx.Delete(1))
	require.NoError(t, idx.Close())

	idx, err = dex.OpenVersionIndex(ctx, dir, dex.WithValuesPerEntry(2), dex.WithIDLength(40))
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, dex.DefaultVersionsPerEntry, idx.ValuesPerEntry())
	require.Equal(t, dex.DefaultIDLength, idx.IDLength(), "identifier width is kept")
	require.Equal(t, int64(2), idx.ValueCount())

	err = idx.Resize(36, 2)
	var shrink *dex.ShrinkError
	require.ErrorAs(t, err, &shrink)
	require.Equal(t, "values per entry", shrink.Field)

	err = idx.Resize(40, 20)
	require.ErrorAs(t, err, &shrink)
	require.Equal(t, "identifier length", shrink.Field)

	require.NoError(t, idx.Resize(36, 20))
	require.Equal(t, 20, idx.ValuesPerEntry())
	versions, err := idx.Versions(addr)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, versions)
	got, err := idx.ID(addr)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestVersionIndex_Clear(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenVersionIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	for i := 0; i < 3; i++ {
		_, err := idx.Add(newID(), 0)
		require.NoError(t, err)
	}
	size := idx.Size()
	require.NoError(t, idx.Clear())
	require.Equal(t, size, idx.Size())
	require.Equal(t, int64(0), idx.Entries())
	require.Zero(t, idx.LoadFactor())
}
