package repository_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/stretchr/testify/require"
)

func TestParseConfigData(t *testing.T) {
	t.Parallel()

	cfg, err := repository.ParseConfigData([]byte("repodexv: \"2026-10\"\npathLength: 256\nrecordCache: 0\n"))
	require.NoError(t, err)
	require.Equal(t, 256, cfg.PathLength)
	require.Equal(t, 0, cfg.RecordCache)
	require.Equal(t, dex.DefaultIDLength, cfg.IDLength)
	require.Equal(t, int64(dex.DefaultBucketSlots), cfg.IDSlots)

	cases := []struct {
		name string
		data string
	}{
		{"unknown version", "repodexv: 1999-01\n"},
		{"zero width", "typeLength: 0\n"},
		{"negative cache", "recordCache: -1\n"},
		{"not yaml", "pathLength: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repository.ParseConfigData([]byte(tc.data))
			require.Error(t, err)
		})
	}
}

func TestConfig_WriteAndLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, repository.ConfigFileName)

	cfg, err := repository.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, repository.DefaultConfig(), cfg)

	cfg.TypeLength = 16
	cfg.ReadOnly = true
	require.NoError(t, cfg.Write(path))

	loaded, err := repository.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
