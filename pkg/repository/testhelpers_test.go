package repository_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jlrickert/repodex/pkg/log"
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) (context.Context, *log.TestHandler) {
	t.Helper()
	lg, handler := log.NewTestLogger(t, slog.LevelDebug)
	return log.ContextWithLogger(context.Background(), lg), handler
}

// openIndex opens a fresh index in a temp dir and closes it with the test.
func openIndex(t *testing.T, opts ...repository.Option) (context.Context, *repository.Index, string) {
	t.Helper()
	ctx, _ := testContext(t)
	root := t.TempDir()
	idx, err := repository.Open(ctx, root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return ctx, idx, root
}

func page(path string) repository.Resource {
	return repository.Resource{
		URI: repository.URI{ID: uuid.NewString(), Type: "page", Path: path, Version: repository.Live},
	}
}

// recordingSearch remembers the calls it received.
type recordingSearch struct {
	mu    sync.Mutex
	calls []string
	moves map[string]string
}

func (s *recordingSearch) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *recordingSearch) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingSearch) Add(_ context.Context, res repository.Resource) error {
	s.record("add " + res.Path)
	return nil
}

func (s *recordingSearch) Update(_ context.Context, res repository.Resource) error {
	s.record("update " + res.Path)
	return nil
}

func (s *recordingSearch) Delete(_ context.Context, uri repository.URI) error {
	s.record("delete " + uri.ID)
	return nil
}

func (s *recordingSearch) Move(_ context.Context, uri repository.URI, path string) error {
	s.record("move " + path)
	return nil
}

func (s *recordingSearch) Query(_ context.Context, q repository.Query) ([]repository.URI, error) {
	s.record("query " + q.Text)
	return []repository.URI{{Path: "/hit"}}, nil
}

func (s *recordingSearch) Clear(context.Context) error {
	s.record("clear")
	return nil
}

func (s *recordingSearch) Close() error { return nil }

func (s *recordingSearch) IndexVersion() int { return -1 }
