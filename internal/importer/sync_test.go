package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wikisync/internal/exporter"
	"github.com/roach88/wikisync/internal/meta"
	"github.com/roach88/wikisync/internal/wiki"
)

// upstream builds a store whose page has two versions, head matching content.
func exportUpstream(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	src := openStore(t)
	p, err := src.CreatePage(ctx, wiki.PageData{Path: "/guides/intro", Title: "Intro", Content: "<p>v1</p>"})
	require.NoError(t, err)
	_, err = src.CreateVersion(ctx, wiki.VersionData{PageID: p.ID, VersionNumber: 1, Title: "Intro", Content: "<p>v1</p>", Path: p.Path})
	require.NoError(t, err)
	_, _, err = src.UpdatePageContent(ctx, p.ID, "<p>v2</p>", "alice", "second")
	require.NoError(t, err)

	root := t.TempDir()
	opts := exporter.Options{AllVersions: true, Logger: testOptions(nil).Logger}
	_, err = exporter.New(src, opts).Export(ctx, root)
	require.NoError(t, err)
	return root
}

func versionsOf(t *testing.T, s interface {
	FindPageByPath(context.Context, string) (wiki.Page, error)
	ListVersions(context.Context, int64) ([]wiki.PageVersion, error)
}, path string) []wiki.PageVersion {
	t.Helper()
	ctx := context.Background()
	p, err := s.FindPageByPath(ctx, path)
	require.NoError(t, err)
	versions, err := s.ListVersions(ctx, p.ID)
	require.NoError(t, err)
	return versions
}

func TestSync_ImportsHistoryWithoutExtraVersion(t *testing.T) {
	ctx := context.Background()
	root := exportUpstream(t)
	s := openStore(t)

	sum, err := New(s, testOptions(nil)).Sync(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "sync", sum.Mode)
	assert.Equal(t, 1, sum.Pages.Created)
	assert.Equal(t, 2, sum.Versions.Created)

	versions := versionsOf(t, s, "/guides/intro")
	require.Len(t, versions, 2)
	assert.Equal(t, "<p>v2</p>", versions[1].Content)
}

func TestSync_UnchangedSecondRunCreatesNothing(t *testing.T) {
	ctx := context.Background()
	root := exportUpstream(t)
	s := openStore(t)

	_, err := New(s, testOptions(nil)).Sync(ctx, root)
	require.NoError(t, err)

	sum, err := New(s, testOptions(nil)).Sync(ctx, root)
	require.NoError(t, err)
	assert.Zero(t, sum.Mutations())
	assert.Equal(t, 1, sum.Pages.Skipped)
	assert.Len(t, versionsOf(t, s, "/guides/intro"), 2)
}

func TestSync_ChangedPageCreatesExactlyOneVersion(t *testing.T) {
	ctx := context.Background()
	root := exportUpstream(t)
	s := openStore(t)

	_, err := New(s, testOptions(nil)).Sync(ctx, root)
	require.NoError(t, err)

	writeDoc(t, root, "guides/Intro.html", meta.Metadata{Title: "Intro", Path: "/guides/intro"}, "<p>v3</p>")

	opts := testOptions(nil)
	opts.Author = "backup-bot"
	sum, err := New(s, opts).Sync(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pages.Updated)
	assert.Equal(t, 1, sum.Versions.Created)

	versions := versionsOf(t, s, "/guides/intro")
	require.Len(t, versions, 3)
	head := versions[2]
	assert.Equal(t, 3, head.VersionNumber)
	assert.Equal(t, "<p>v3</p>", head.Content)
	assert.Equal(t, "backup-bot", head.EditedBy)
	assert.Equal(t, SyncChangeSummary, head.ChangeSummary)

	again, err := New(s, opts).Sync(ctx, root)
	require.NoError(t, err)
	assert.Zero(t, again.Mutations())
}

func TestSync_PageWithoutHistoryGetsFirstVersion(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeDoc(t, root, "a.html", meta.Metadata{Title: "A", Path: "/a"}, "<p>a</p>")

	s := openStore(t)
	sum, err := New(s, testOptions(nil)).Sync(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Versions.Created)

	versions := versionsOf(t, s, "/a")
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, DefaultAuthor, versions[0].EditedBy)
}

func TestSync_ToleratesVersionGaps(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeDoc(t, root, "a.html", meta.Metadata{Title: "A", Path: "/a"}, "<p>now</p>")
	writeDoc(t, root, "versions/A_v2.html", meta.Metadata{Title: "A", Path: "/a", Version: 2}, "<p>two</p>")
	writeDoc(t, root, "versions/A_v5.html", meta.Metadata{Title: "A", Path: "/a", Version: 5}, "<p>five</p>")

	s := openStore(t)
	sum, err := New(s, testOptions(nil)).Sync(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Versions.Created)

	versions := versionsOf(t, s, "/a")
	require.Len(t, versions, 3)
	assert.Equal(t, 6, versions[2].VersionNumber)
	assert.Equal(t, "<p>now</p>", versions[2].Content)
}

func TestSync_DryRunMutatesNothing(t *testing.T) {
	ctx := context.Background()
	root := exportUpstream(t)
	s := openStore(t)

	opts := testOptions(nil)
	opts.DryRun = true
	sum, err := New(s, opts).Sync(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pages.Created)

	pages, err := s.ListPages(ctx)
	require.NoError(t, err)
	assert.Empty(t, pages)
}
