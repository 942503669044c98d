package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/wikisync/internal/testutil"
	"github.com/roach88/wikisync/internal/wiki"
)

var testEpoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.SetClock(testutil.NewFixedClock(testEpoch).Now)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPage creates a page with minimal required fields.
func createTestPage(t *testing.T, s *Store, path string) wiki.Page {
	t.Helper()
	p, err := s.CreatePage(context.Background(), wiki.PageData{
		Path:    path,
		Title:   "Title of " + path,
		Content: "<p>" + path + "</p>",
	})
	if err != nil {
		t.Fatalf("CreatePage(%q) failed: %v", path, err)
	}
	return p
}

// createTestVersion creates a version snapshot of page with the given number.
func createTestVersion(t *testing.T, s *Store, page wiki.Page, number int) wiki.PageVersion {
	t.Helper()
	v, err := s.CreateVersion(context.Background(), wiki.VersionData{
		PageID:        page.ID,
		VersionNumber: number,
		Title:         page.Title,
		Content:       page.Content,
		Path:          page.Path,
		EditedBy:      "tester",
	})
	if err != nil {
		t.Fatalf("CreateVersion(%d) failed: %v", number, err)
	}
	return v
}
