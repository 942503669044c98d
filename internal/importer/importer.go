// Package importer loads an export tree back into a wiki store.
//
// Files are discovered recursively and classified by position: HTML files in
// a versions directory are version files, other HTML files are page files,
// and files under the top-level images directory are image payloads. Pages
// are processed first so that versions can attach to them, then versions,
// then images. Every item is independent: a failure is logged and counted
// and the run continues.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/wikisync/internal/pathmap"
	"github.com/roach88/wikisync/internal/wiki"
)

// DefaultAuthor is recorded on versions created by smart sync.
const DefaultAuthor = "wikisync"

// Target is the write side of the store the importer populates.
type Target interface {
	FindPageByPath(ctx context.Context, path string) (wiki.Page, error)
	CreatePage(ctx context.Context, data wiki.PageData) (wiki.Page, error)
	UpdatePage(ctx context.Context, id int64, data wiki.PageData) (wiki.Page, error)

	FindVersion(ctx context.Context, pageID int64, number int) (wiki.PageVersion, error)
	LatestVersion(ctx context.Context, pageID int64) (wiki.PageVersion, error)
	CreateVersion(ctx context.Context, data wiki.VersionData) (wiki.PageVersion, error)
	UpdateVersion(ctx context.Context, id int64, data wiki.VersionData) (wiki.PageVersion, error)

	FindImageByFilename(ctx context.Context, filename string) (wiki.Image, error)
	ReadImageData(ctx context.Context, id int64) ([]byte, error)
	CreateImage(ctx context.Context, data wiki.ImageData) (wiki.Image, error)
	UpdateImage(ctx context.Context, id int64, data wiki.ImageData) (wiki.Image, error)

	FindUserByID(ctx context.Context, id int64) (wiki.User, error)
	FindUserByUsername(ctx context.Context, username string) (wiki.User, error)
	ListUsers(ctx context.Context) ([]wiki.User, error)
}

// Policy decides what happens to an item that already exists in the target.
type Policy int

const (
	// SkipExisting leaves existing items untouched.
	SkipExisting Policy = iota
	// UpdateExisting overwrites existing items with the imported data.
	UpdateExisting
)

func (p Policy) String() string {
	if p == UpdateExisting {
		return "update-existing"
	}
	return "skip-existing"
}

// Options controls an import or sync run.
type Options struct {
	Policy         Policy
	ImportVersions bool
	DryRun         bool

	// Author is recorded as edited_by on versions created by Sync.
	// Empty means DefaultAuthor.
	Author string

	// Logger receives per-item outcomes. Nil means slog.Default().
	Logger *slog.Logger

	// RunIDs generates the summary run ID. Nil means UUIDv7.
	RunIDs wiki.RunIDGenerator

	// Now supplies default timestamps for items whose metadata has none.
	// Nil means time.Now.
	Now func() time.Time
}

// Importer applies an export tree to a Target.
type Importer struct {
	tgt  Target
	opts Options
	log  *slog.Logger

	smart   bool
	summary *Summary

	// planned holds paths of pages a dry run would have created, so that
	// their versions are reported as creatable instead of orphaned.
	planned map[string]bool

	// synced holds the resulting state of every page a sync touched or
	// confirmed unchanged, keyed by path.
	synced map[string]wiki.Page
	order  []string
}

// New creates an Importer writing to tgt.
func New(tgt Target, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = wiki.UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Author == "" {
		opts.Author = DefaultAuthor
	}
	return &Importer{tgt: tgt, opts: opts, log: opts.Logger}
}

// Import applies the tree under root using the configured policy.
// Only a missing or unreadable root is fatal.
func (im *Importer) Import(ctx context.Context, root string) (Summary, error) {
	return im.run(ctx, root, false)
}

// Sync is the smart variant of Import. Pages are written only when their
// content hash differs from the stored page, version files are imported
// first-writer-wins, and every synced page whose head version does not match
// its content gets exactly one new version.
func (im *Importer) Sync(ctx context.Context, root string) (Summary, error) {
	return im.run(ctx, root, true)
}

func (im *Importer) run(ctx context.Context, root string, smart bool) (Summary, error) {
	im.smart = smart
	im.planned = make(map[string]bool)
	im.synced = make(map[string]wiki.Page)
	im.order = nil
	im.summary = &Summary{
		RunID:  im.opts.RunIDs.Generate(),
		Mode:   im.mode(),
		DryRun: im.opts.DryRun,
	}

	files, err := discover(root, im.log)
	if err != nil {
		return *im.summary, err
	}
	im.log.Info("import started", "root", root, "mode", im.summary.Mode,
		"pages", len(files.pages), "versions", len(files.versions), "images", len(files.images),
		"dry_run", im.opts.DryRun)

	for _, rel := range files.pages {
		im.importPage(ctx, root, rel)
	}

	if im.opts.ImportVersions || smart {
		for _, rel := range files.versions {
			im.importVersion(ctx, root, rel)
		}
	} else if len(files.versions) > 0 {
		im.log.Debug("version files ignored", "count", len(files.versions))
	}

	for _, rel := range files.images {
		im.importImage(ctx, root, rel)
	}

	if smart {
		for _, p := range im.order {
			im.syncHead(ctx, im.synced[p])
		}
	}

	s := *im.summary
	im.log.Info("import complete", "run_id", s.RunID,
		"pages_created", s.Pages.Created, "pages_updated", s.Pages.Updated, "pages_skipped", s.Pages.Skipped,
		"versions_created", s.Versions.Created, "images_created", s.Images.Created,
		"errors", s.Pages.Errors+s.Versions.Errors+s.Images.Errors)
	return s, nil
}

func (im *Importer) mode() string {
	if im.smart {
		return "sync"
	}
	return im.opts.Policy.String()
}

// now returns the default timestamp for items without one.
func (im *Importer) now() time.Time {
	return im.opts.Now().UTC()
}

// tree lists the slash-separated relative paths of the files found under root.
type tree struct {
	pages    []string
	versions []string
	images   []string
}

// discover walks root and classifies content files. Hidden directories such
// as .git are skipped; the manifest and unknown files are ignored.
func discover(root string, log *slog.Logger) (tree, error) {
	var t tree

	info, err := os.Stat(root)
	if err != nil {
		return t, fmt.Errorf("import root: %w", err)
	}
	if !info.IsDir() {
		return t, fmt.Errorf("import root %s: not a directory", root)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			log.Warn("cannot read path, skipping", "file", p, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case strings.HasPrefix(rel, pathmap.ImagesDir+"/"):
			if path.Ext(rel) != pathmap.SidecarExtension {
				t.images = append(t.images, rel)
			}
		case strings.EqualFold(path.Ext(rel), pathmap.Extension):
			if pathmap.IsVersionFile(rel) {
				t.versions = append(t.versions, rel)
			} else {
				t.pages = append(t.pages, rel)
			}
		}
		return nil
	})
	if err != nil {
		return t, fmt.Errorf("walk %s: %w", root, err)
	}
	return t, nil
}

func readRel(root, rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
}

func isNotFound(err error) bool {
	return errors.Is(err, wiki.ErrNotFound)
}

func orNow(t time.Time, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
