package dex_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jlrickert/repodex/pkg/log"
	"github.com/stretchr/testify/require"
)

// testContext returns a context carrying a capturing logger.
func testContext(t *testing.T) (context.Context, *log.TestHandler) {
	t.Helper()
	lg, handler := log.NewTestLogger(t, slog.LevelDebug)
	return log.ContextWithLogger(context.Background(), lg), handler
}

func newID() string {
	return uuid.NewString()
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
