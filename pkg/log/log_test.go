package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jlrickert/repodex/pkg/log"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}
	for _, tc := range cases {
		got, err := log.ParseLevel(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
		} else {
			require.NoError(t, err, tc.in)
		}
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg := log.NewLogger(log.LoggerConfig{Version: "1.2.3", Out: &buf, Level: slog.LevelInfo, JSON: true})
	lg.Debug("hidden")
	lg.Info("resized index", slog.String("index", "uri"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"resized index"`)
	require.Contains(t, out, `"version":"1.2.3"`)
	require.Contains(t, out, `"index":"uri"`)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	lg, handler := log.NewTestLogger(t, slog.LevelInfo)
	ctx := log.ContextWithLogger(context.Background(), lg)

	log.FromContext(ctx).With(slog.String("index", "path")).Warn("consider a reindex", slog.Int("found", 2))
	log.FromContext(ctx).Debug("below level")

	e := log.RequireEntry(t, handler, func(e log.LoggedEntry) bool {
		return e.Msg == "consider a reindex"
	}, time.Second)
	require.Equal(t, slog.LevelWarn, e.Level)
	require.Equal(t, "path", e.Attrs["index"])
	require.Equal(t, int64(2), e.Attrs["found"])
	require.Len(t, handler.Entries(), 1)

	require.Equal(t, slog.Default(), log.FromContext(context.Background()))
}
