package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/importer"
)

// exportSeed exports a seeded database and returns the export directory.
func exportSeed(t *testing.T, extra ...string) string {
	t.Helper()
	db := seedDatabase(t)
	out := filepath.Join(t.TempDir(), "export")
	args := append([]string{"export", "--db", db}, extra...)
	code, _, stderr := runCLI(t, testRootOptions(), append(args, out)...)
	require.Equal(t, ExitSuccess, code, stderr)
	return out
}

func decodeSummary(t *testing.T, stdout string) importer.Summary {
	t.Helper()
	var resp struct {
		Status string           `json:"status"`
		Data   importer.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestImport_RoundTrip(t *testing.T) {
	src := exportSeed(t, "--all-versions")
	db := filepath.Join(t.TempDir(), "target.db")

	code, stdout, stderr := runCLI(t, testRootOptions(),
		"import", "--db", db, "--import-versions", "--format", "json", src)
	require.Equal(t, ExitSuccess, code, stderr)

	summary := decodeSummary(t, stdout)
	assert.Equal(t, testRunID, summary.RunID)
	assert.Equal(t, "skip-existing", summary.Mode)
	assert.Equal(t, 1, summary.Pages.Created)
	assert.Equal(t, 1, summary.Versions.Created)

	st := openTestStore(t, db)
	defer st.Close()
	p, err := st.FindPageByPath(context.Background(), seedPath)
	require.NoError(t, err)
	assert.Equal(t, seedTitle, p.Title)
	assert.Equal(t, seedContent, p.Content)
}

func TestImport_TextSummary(t *testing.T) {
	src := exportSeed(t)
	db := filepath.Join(t.TempDir(), "target.db")

	code, stdout, _ := runCLI(t, testRootOptions(), "import", "--db", db, src)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Import summary (run "+testRunID+", mode skip-existing)")
	assert.Contains(t, stdout, "pages:    created 1")
}

func TestImport_SkipThenUpdate(t *testing.T) {
	src := exportSeed(t)
	db := filepath.Join(t.TempDir(), "target.db")

	code, _, _ := runCLI(t, testRootOptions(), "import", "--db", db, src)
	require.Equal(t, ExitSuccess, code)

	code, stdout, _ := runCLI(t, testRootOptions(), "import", "--db", db, "--format", "json", src)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, 1, decodeSummary(t, stdout).Pages.Skipped)

	code, stdout, _ = runCLI(t, testRootOptions(), "import", "--db", db, "--update-existing", "--format", "json", src)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, 1, decodeSummary(t, stdout).Pages.Updated)
}

func TestImport_ConflictingPolicyFlags(t *testing.T) {
	src := exportSeed(t)

	code, _, stderr := runCLI(t, testRootOptions(),
		"import", "--db", filepath.Join(t.TempDir(), "x.db"), "--update-existing", "--skip-existing", src)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "update-existing")
}

func TestImport_MissingSource(t *testing.T) {
	db := filepath.Join(t.TempDir(), "target.db")

	code, _, stderr := runCLI(t, testRootOptions(), "import", "--db", db, filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "source directory not found")
}

func TestSync_SecondRunChangesNothing(t *testing.T) {
	src := exportSeed(t)
	db := filepath.Join(t.TempDir(), "target.db")

	code, stdout, stderr := runCLI(t, testRootOptions(), "sync", "--db", db, "--author", "bob", "--format", "json", src)
	require.Equal(t, ExitSuccess, code, stderr)
	first := decodeSummary(t, stdout)
	assert.Equal(t, "sync", first.Mode)
	assert.Equal(t, 1, first.Pages.Created)
	assert.Equal(t, 1, first.Versions.Created)

	st := openTestStore(t, db)
	p, err := st.FindPageByPath(context.Background(), seedPath)
	require.NoError(t, err)
	v, err := st.LatestVersion(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", v.EditedBy)
	require.NoError(t, st.Close())

	code, stdout, _ = runCLI(t, testRootOptions(), "sync", "--db", db, "--format", "json", src)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, 0, decodeSummary(t, stdout).Mutations())
}

func TestSync_DryRun(t *testing.T) {
	src := exportSeed(t)
	db := filepath.Join(t.TempDir(), "target.db")

	code, stdout, _ := runCLI(t, testRootOptions(), "sync", "--db", db, "--dry-run", "--format", "json", src)
	require.Equal(t, ExitSuccess, code)
	summary := decodeSummary(t, stdout)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Pages.Created)

	st := openTestStore(t, db)
	defer st.Close()
	pages, err := st.ListPages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}
