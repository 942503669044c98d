package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/store"
	"github.com/roach88/wikisync/internal/testutil"
	"github.com/roach88/wikisync/internal/wiki"
)

const (
	testRunID     = "run-test"
	seedPath      = "docs/intro"
	seedTitle     = "Intro"
	seedContent   = `<p>Hello <img src="cat.png"></p>`
	seedImageName = "cat.png"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func noEnv(string) (string, bool) { return "", false }

func testRootOptions() *RootOptions {
	return &RootOptions{
		RunIDs:    testutil.NewFixedRunIDGenerator(testRunID),
		Now:       testutil.NewFixedClock(testEpoch).Now,
		LookupEnv: noEnv,
	}
}

// runCLI executes the root command with args and returns the exit code and
// captured output.
func runCLI(t *testing.T, opts *RootOptions, args ...string) (int, string, string) {
	t.Helper()
	return runCLIContext(t, context.Background(), opts, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, opts *RootOptions, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--env-file", "")
	code := execute(ctx, newRootCommand(opts), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// seedDatabase creates a database holding one page with one version, one
// user and one image referenced by the page.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.db")
	st := openTestStore(t, path)
	defer st.Close()

	ctx := context.Background()
	user, err := st.CreateUser(ctx, "alice", "Alice")
	require.NoError(t, err)
	p, err := st.CreatePage(ctx, wiki.PageData{
		Path:      seedPath,
		Title:     seedTitle,
		Content:   seedContent,
		Published: true,
	})
	require.NoError(t, err)
	_, err = st.CreateVersion(ctx, wiki.VersionData{
		PageID:        p.ID,
		VersionNumber: 1,
		Title:         seedTitle,
		Content:       seedContent,
		Path:          seedPath,
		EditedBy:      "alice",
	})
	require.NoError(t, err)
	_, err = st.CreateImage(ctx, wiki.ImageData{
		Filename: seedImageName,
		MimeType: "image/png",
		Data:     []byte("\x89PNG fake"),
		UserID:   user.ID,
	})
	require.NoError(t, err)
	return path
}

func openTestStore(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	st.SetClock(testutil.NewFixedClock(testEpoch).Now)
	return st
}
