package repository_test

import (
	"path/filepath"
	"testing"

	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/stretchr/testify/require"
)

func TestIndex_CheckAndRebuild(t *testing.T) {
	t.Parallel()
	ctx, _ := testContext(t)
	root := t.TempDir()
	dir := filepath.Join(root, repository.StructureDir)

	idx, err := repository.Open(ctx, root)
	require.NoError(t, err)
	a := page("/a")
	_, err = idx.Add(ctx, a)
	require.NoError(t, err)
	b := page("/b")
	_, err = idx.Add(ctx, b)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// Lose one id mapping and one version record behind the index's back.
	ids, err := dex.OpenIDIndex(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, ids.Delete(a.ID, 0))
	require.NoError(t, ids.Close())
	versions, err := dex.OpenVersionIndex(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, versions.Delete(1))
	require.NoError(t, versions.Close())

	idx, err = repository.Open(ctx, root)
	require.NoError(t, err)
	defer idx.Close()

	report, err := idx.Check(ctx)
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Len(t, report.Problems, 4)

	require.NoError(t, idx.Rebuild(ctx))

	report, err = idx.Check(ctx)
	require.NoError(t, err)
	require.True(t, report.OK(), "%v", report.Problems)
	require.Equal(t, int64(2), report.Resources)

	id, err := idx.Identifier(ctx, "/a")
	require.NoError(t, err)
	require.Equal(t, a.ID, id)
	versionsOfB, err := idx.Revisions(ctx, repository.URI{ID: b.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{repository.Live}, versionsOfB)
}

func TestIndex_Stats(t *testing.T) {
	t.Parallel()
	ctx, idx, _ := openIndex(t)

	for _, p := range []string{"/a", "/b"} {
		_, err := idx.Add(ctx, page(p))
		require.NoError(t, err)
	}

	stats, err := idx.Stats()
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Resources)
	require.Equal(t, int64(2), stats.Revisions)
	require.Equal(t, dex.FormatVersion, stats.IndexVersion)

	names := make([]string, 0, len(stats.Files))
	for _, f := range stats.Files {
		names = append(names, f.Name)
		require.Equal(t, int64(2), f.Entries, f.Name)
	}
	require.Equal(t, []string{
		dex.URIIndexName,
		dex.IDIndexName,
		dex.PathIndexName,
		dex.VersionIndexName,
		dex.LanguageIndexName,
	}, names)
}
