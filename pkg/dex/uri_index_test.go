package dex_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/jlrickert/repodex/pkg/log"
	"github.com/stretchr/testify/require"
)

func TestURIIndex_CreateAndAdd(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, int64(32), idx.Size())
	require.Equal(t, 36+8+128, idx.EntrySize())

	id := newID()
	addr, err := idx.Add(id, "page", "/a/b")
	require.NoError(t, err)
	require.Equal(t, int64(0), addr)
	require.Equal(t, int64(1), idx.Entries())
	require.Equal(t, int64(32+36+8+128), idx.Size())

	rec, err := idx.Record(addr)
	require.NoError(t, err)
	require.Equal(t, dex.URIRecord{ID: id, Type: "page", Path: "/a/b"}, rec)

	info, err := os.Stat(filepath.Join(dir, dex.URIIndexName))
	require.NoError(t, err)
	require.Equal(t, idx.Size(), info.Size())
}

func TestURIIndex_PathGrowsWidth(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	first := newID()
	a, err := idx.Add(first, "page", "/short")
	require.NoError(t, err)

	long := "/" + strings.Repeat("x", 128)
	require.Len(t, long, 129)
	b, err := idx.Add(newID(), "page", long)
	require.NoError(t, err)

	require.Equal(t, 256, idx.PathLength())
	require.Equal(t, int64(32+2*(36+8+256)), idx.Size())

	path, err := idx.Path(b)
	require.NoError(t, err)
	require.Equal(t, long, path)

	rec, err := idx.Record(a)
	require.NoError(t, err)
	require.Equal(t, first, rec.ID)
	require.Equal(t, "/short", rec.Path)
}

func TestURIIndex_TypeMustBeShorterThanField(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Add(newID(), "page", "/")
	require.NoError(t, err)
	require.Equal(t, 8, idx.TypeLength())

	addr, err := idx.Add(newID(), "document", "/doc")
	require.NoError(t, err)
	require.Equal(t, 16, idx.TypeLength())

	typ, err := idx.Type(addr)
	require.NoError(t, err)
	require.Equal(t, "document", typ)

	typ, err = idx.Type(0)
	require.NoError(t, err)
	require.Equal(t, "page", typ)
}

func TestURIIndex_DeleteReusesLowestSlot(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	for i := 0; i < 4; i++ {
		_, err := idx.Add(newID(), "page", "/p")
		require.NoError(t, err)
	}
	require.NoError(t, idx.Delete(2))
	require.NoError(t, idx.Delete(1))
	require.Equal(t, int64(2), idx.Entries())
	require.Equal(t, int64(4), idx.Slots())

	_, err = idx.Record(1)
	require.True(t, dex.IsNotFound(err))

	require.True(t, dex.IsNotFound(idx.Delete(1)), "deleting a tombstone")

	addr, err := idx.Add(newID(), "page", "/q")
	require.NoError(t, err)
	require.Equal(t, int64(1), addr)

	addr, err = idx.Add(newID(), "page", "/r")
	require.NoError(t, err)
	require.Equal(t, int64(2), addr)

	addr, err = idx.Add(newID(), "page", "/s")
	require.NoError(t, err)
	require.Equal(t, int64(4), addr)
	require.Equal(t, int64(5), idx.Entries())
}

func TestURIIndex_UpdateKeepsIdentifier(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	id := newID()
	addr, err := idx.Add(id, "page", "/old")
	require.NoError(t, err)
	require.NoError(t, idx.Update(addr, "file", "/new"))

	rec, err := idx.Record(addr)
	require.NoError(t, err)
	require.Equal(t, dex.URIRecord{ID: id, Type: "file", Path: "/new"}, rec)

	require.True(t, dex.IsNotFound(idx.Update(7, "file", "/x")))
}

func TestURIIndex_AddAt(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	id := newID()
	require.NoError(t, idx.AddAt(3, id, "page", "/three"))
	require.Equal(t, int64(4), idx.Slots())
	require.Equal(t, int64(1), idx.Entries())

	// Replaying the same write is harmless.
	require.NoError(t, idx.AddAt(3, id, "page", "/three"))
	require.Equal(t, int64(1), idx.Entries())

	err = idx.AddAt(3, newID(), "page", "/other")
	require.True(t, dex.IsInvalidState(err))

	// Gap slots are free for reuse.
	addr, err := idx.Add(newID(), "page", "/zero")
	require.NoError(t, err)
	require.Equal(t, int64(0), addr)
}

func TestURIIndex_ShrinkRefused(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Add(newID(), "page", "/a")
	require.NoError(t, err)

	path := filepath.Join(dir, dex.URIIndexName)
	before := readFile(t, path)

	err = idx.Resize(36, 4, 128)
	require.Error(t, err)
	require.True(t, dex.IsInvalidState(err))
	var shrink *dex.ShrinkError
	require.ErrorAs(t, err, &shrink)
	require.Equal(t, "type length", shrink.Field)

	require.Equal(t, before, readFile(t, path))
	_, err = os.Stat(filepath.Join(dir, "uri_resized.idx"))
	require.True(t, os.IsNotExist(err))
}

func TestURIIndex_ResizeKeepsRecords(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	want := map[int64]dex.URIRecord{}
	for _, p := range []string{"/a", "/b", "/c"} {
		id := newID()
		addr, err := idx.Add(id, "page", p)
		require.NoError(t, err)
		want[addr] = dex.URIRecord{ID: id, Type: "page", Path: p}
	}
	require.NoError(t, idx.Delete(1))
	delete(want, 1)

	require.NoError(t, idx.Resize(36, 32, 512))
	require.Equal(t, int64(32+3*(36+32+512)), idx.Size())

	err = idx.Resize(40, 32, 512)
	var shrink *dex.ShrinkError
	require.ErrorAs(t, err, &shrink)
	require.Equal(t, "identifier length", shrink.Field)
	require.Equal(t, 36, idx.IDLength())

	got := map[int64]dex.URIRecord{}
	require.NoError(t, idx.Each(func(addr int64, rec dex.URIRecord) error {
		got[addr] = rec
		return nil
	}))
	require.Equal(t, want, got)
	for addr, rec := range want {
		id, err := idx.ID(addr)
		require.NoError(t, err)
		require.Equal(t, rec.ID, id)
	}
}

func TestURIIndex_IdentifierWidthFixedWithEntries(t *testing.T) {
	t.Parallel()
	ctx, th := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, idx.Resize(40, 8, 128), "empty index may change its identifier width")
	require.NoError(t, idx.Resize(36, 8, 128))
	id := newID()
	addr, err := idx.Add(id, "page", "/a")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = dex.OpenURIIndex(ctx, dir, dex.WithIDLength(40))
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, 36, idx.IDLength())
	rec, err := idx.Record(addr)
	require.NoError(t, err)
	require.Equal(t, dex.URIRecord{ID: id, Type: "page", Path: "/a"}, rec)

	warnings := log.FindEntries(th, func(e log.LoggedEntry) bool {
		return e.Msg == "keeping stored identifier length"
	})
	require.NotEmpty(t, warnings)

	_, err = idx.Add(newID(), "page", "/b")
	require.NoError(t, err)
}

func TestURIIndex_ReopenRestoresState(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	id := newID()
	_, err = idx.Add(newID(), "page", "/a")
	require.NoError(t, err)
	addr, err := idx.Add(id, "page", "/b")
	require.NoError(t, err)
	require.NoError(t, idx.Delete(0))
	require.NoError(t, idx.Close())

	idx, err = dex.OpenURIIndex(ctx, dir, dex.WithPathLength(64))
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, 128, idx.PathLength(), "smaller widths keep the stored ones")
	require.Equal(t, int64(1), idx.Entries())
	rec, err := idx.Record(addr)
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)

	reused, err := idx.Add(newID(), "page", "/c")
	require.NoError(t, err)
	require.Equal(t, int64(0), reused)
}

func TestURIIndex_ReopenGrowsRequestedWidths(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	addr, err := idx.Add(newID(), "page", "/a")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = dex.OpenURIIndex(ctx, dir, dex.WithPathLength(1024))
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, 1024, idx.PathLength())
	path, err := idx.Path(addr)
	require.NoError(t, err)
	require.Equal(t, "/a", path)
}

func TestURIIndex_Clear(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	for i := 0; i < 3; i++ {
		_, err := idx.Add(newID(), "page", "/p")
		require.NoError(t, err)
	}
	size := idx.Size()
	require.NoError(t, idx.Clear())

	require.Equal(t, int64(0), idx.Entries())
	require.Equal(t, int64(3), idx.Slots())
	require.Equal(t, size, idx.Size())
	_, err = idx.Record(0)
	require.True(t, dex.IsNotFound(err))

	addr, err := idx.Add(newID(), "page", "/again")
	require.NoError(t, err)
	require.Equal(t, int64(0), addr)
}

func TestURIIndex_InvalidArguments(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	cases := []struct {
		name string
		id   string
		typ  string
		path string
	}{
		{name: "short identifier", id: "abc", typ: "page", path: "/"},
		{name: "missing type", id: newID(), typ: "", path: "/"},
		{name: "newline in path", id: newID(), typ: "page", path: "/a\nb"},
		{name: "zero byte in type", id: newID(), typ: "pa\x00ge", path: "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := idx.Add(tc.id, tc.typ, tc.path)
			require.True(t, dex.IsInvalid(err), "got %v", err)
		})
	}
	require.Equal(t, int64(0), idx.Entries())
}

func TestURIIndex_ReadOnly(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	_, err := dex.OpenURIIndex(ctx, dir, dex.WithReadOnly())
	require.True(t, dex.IsInvalidState(err), "read only open of a missing file")

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	addr, err := idx.Add(newID(), "page", "/a")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	ro, err := dex.OpenURIIndex(ctx, dir, dex.WithReadOnly())
	require.NoError(t, err)
	defer ro.Close()

	require.True(t, ro.ReadOnly())
	path, err := ro.Path(addr)
	require.NoError(t, err)
	require.Equal(t, "/a", path)

	_, err = ro.Add(newID(), "page", "/b")
	require.True(t, dex.IsUnsupported(err))
	require.True(t, dex.IsUnsupported(ro.Delete(addr)))
	require.True(t, dex.IsUnsupported(ro.Resize(36, 16, 256)))
}

func TestURIIndex_Closed(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)

	idx, err := dex.OpenURIIndex(ctx, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Add(newID(), "page", "/a")
	require.ErrorIs(t, err, dex.ErrClosed)
	_, err = idx.Record(0)
	require.ErrorIs(t, err, dex.ErrClosed)
}

func TestURIIndex_VersionMismatchWarns(t *testing.T) {
	t.Parallel()
	ctx, handler := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	_, err = idx.Add(newID(), "page", "/a")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	path := filepath.Join(dir, dex.URIIndexName)
	data := readFile(t, path)
	binary.BigEndian.PutUint32(data[0:4], 7)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	idx, err = dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	defer idx.Close()
	require.Equal(t, 7, idx.IndexVersion())

	found := log.FindEntries(handler, func(e log.LoggedEntry) bool {
		return strings.Contains(e.Msg, "consider a reindex")
	})
	require.NotEmpty(t, found)
}

func TestURIIndex_CorruptSlot(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	dir := t.TempDir()

	idx, err := dex.OpenURIIndex(ctx, dir)
	require.NoError(t, err)
	_, err = idx.Add(newID(), "page", "/a")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// Fill the path field so it loses its delimiter.
	path := filepath.Join(dir, dex.URIIndexName)
	data := readFile(t, path)
	for i := 32 + 36 + 8; i < len(data); i++ {
		data[i] = 'x'
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	idx, err = dex.OpenURIIndex(ctx, dir, dex.WithRecordCache(-1))
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Record(0)
	require.True(t, dex.IsCorrupt(err))
	require.True(t, dex.IsInvalidState(err))
}
