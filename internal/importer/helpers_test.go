package importer

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/meta"
	"github.com/roach88/wikisync/internal/store"
	"github.com/roach88/wikisync/internal/testutil"
)

var importTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	s.SetClock(testutil.NewFixedClock(importTime).Now)
	t.Cleanup(func() { s.Close() })
	return s
}

func testOptions(logs *bytes.Buffer) Options {
	var w io.Writer = io.Discard
	if logs != nil {
		w = logs
	}
	return Options{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})),
		RunIDs: testutil.NewFixedRunIDGenerator("import-run"),
		Now:    testutil.NewFixedClock(importTime).Now,
	}
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func writeDoc(t *testing.T, root, rel string, md meta.Metadata, content string) {
	t.Helper()
	writeFile(t, root, rel, []byte(meta.Encode(md, content)))
}
