// Package exporter writes the contents of a wiki store to a git-friendly
// directory tree: one HTML file per page, optional version history, images
// with JSON sidecars, and a manifest summarizing the run.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/wikisync/internal/meta"
	"github.com/roach88/wikisync/internal/pathmap"
	"github.com/roach88/wikisync/internal/wiki"
)

// FormatVersion identifies the layout of the export tree.
const FormatVersion = 1

// ManifestFile is written at the export root after everything else.
const ManifestFile = "manifest.json"

// Source is the read side of the store the exporter walks.
type Source interface {
	ListPages(ctx context.Context) ([]wiki.Page, error)
	ListVersions(ctx context.Context, pageID int64) ([]wiki.PageVersion, error)
	ListImages(ctx context.Context) ([]wiki.Image, error)
	ReadImageData(ctx context.Context, id int64) ([]byte, error)
	FindUserByID(ctx context.Context, id int64) (wiki.User, error)
}

// Options controls what is exported and how.
type Options struct {
	IncludeDrafts bool // export draft versions (only with AllVersions)
	AllVersions   bool // export every version in addition to the latest page content
	DryRun        bool // read and log everything, write nothing
	SkipImages    bool

	// Logger receives per-item outcomes. Nil means slog.Default().
	Logger *slog.Logger

	// RunIDs generates the manifest run ID. Nil means UUIDv7.
	RunIDs wiki.RunIDGenerator

	// Now is the manifest clock. Nil means time.Now.
	Now func() time.Time
}

// Stats counts exported items. Errors are per-item failures that did not
// stop the run.
type Stats struct {
	Pages         int `json:"pages"`
	Versions      int `json:"versions"`
	Images        int `json:"images"`
	SkippedDrafts int `json:"skipped_drafts"`
	Errors        int `json:"errors"`
}

// Manifest describes one export run.
type Manifest struct {
	FormatVersion int             `json:"format_version"`
	RunID         string          `json:"run_id"`
	ExportedAt    time.Time       `json:"exported_at"`
	Options       ManifestOptions `json:"options"`
	Counts        Stats           `json:"counts"`
}

// ManifestOptions records the options a run was made with.
type ManifestOptions struct {
	IncludeDrafts bool `json:"include_drafts"`
	AllVersions   bool `json:"all_versions"`
	SkipImages    bool `json:"skip_images"`
}

// Exporter writes a store to a directory tree.
type Exporter struct {
	src  Source
	opts Options
	log  *slog.Logger

	// used holds lower-cased relative paths claimed in this run, so names
	// that differ only by case are also disambiguated.
	used map[string]bool
}

// New creates an Exporter reading from src.
func New(src Source, opts Options) *Exporter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = wiki.UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{src: src, opts: opts, log: opts.Logger}
}

// Export writes the tree under root and returns the manifest describing the
// run. Failing to list pages or to create root is fatal; failures on single
// items are logged and counted in the manifest.
func (e *Exporter) Export(ctx context.Context, root string) (Manifest, error) {
	e.used = make(map[string]bool)
	m := Manifest{
		FormatVersion: FormatVersion,
		RunID:         e.opts.RunIDs.Generate(),
		ExportedAt:    e.opts.Now().UTC(),
		Options: ManifestOptions{
			IncludeDrafts: e.opts.IncludeDrafts,
			AllVersions:   e.opts.AllVersions,
			SkipImages:    e.opts.SkipImages,
		},
	}

	if !e.opts.DryRun {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return m, fmt.Errorf("create export root: %w", err)
		}
	}

	pages, err := e.src.ListPages(ctx)
	if err != nil {
		return m, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		e.exportPage(ctx, root, p, &m.Counts)
	}

	if !e.opts.SkipImages {
		images, err := e.src.ListImages(ctx)
		if err != nil {
			e.log.Error("list images failed", "error", err)
			m.Counts.Errors++
		}
		for _, img := range images {
			e.exportImage(ctx, root, img, &m.Counts)
		}
	}

	if e.opts.DryRun {
		e.log.Info("dry run complete, manifest not written", "run_id", m.RunID)
		return m, nil
	}
	if err := e.writeJSON(filepath.Join(root, ManifestFile), m); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}
	e.log.Info("export complete", "run_id", m.RunID, "pages", m.Counts.Pages,
		"versions", m.Counts.Versions, "images", m.Counts.Images, "errors", m.Counts.Errors)
	return m, nil
}

func (e *Exporter) exportPage(ctx context.Context, root string, p wiki.Page, stats *Stats) {
	rel := pathmap.PageFile(p.Path, p.Title)
	suffix := ""
	if e.claim(rel) {
		suffix = strconv.FormatInt(p.ID, 10)
		rel = pathmap.WithSuffix(rel, suffix)
		e.claim(rel)
		e.log.Warn("file name collision, using page id suffix", "path", p.Path, "file", rel)
	}

	doc := meta.Encode(pageMetadata(p), p.Content)
	if e.opts.DryRun {
		e.log.Info("would export page", "path", p.Path, "file", rel)
	} else {
		if err := e.writeFile(root, rel, []byte(doc)); err != nil {
			e.log.Error("export page failed", "path", p.Path, "file", rel, "error", err)
			stats.Errors++
			return
		}
		e.log.Debug("exported page", "path", p.Path, "file", rel)
	}
	stats.Pages++

	if e.opts.AllVersions {
		e.exportVersions(ctx, root, p, suffix, stats)
	}
}

func (e *Exporter) exportVersions(ctx context.Context, root string, p wiki.Page, suffix string, stats *Stats) {
	versions, err := e.src.ListVersions(ctx, p.ID)
	if err != nil {
		e.log.Error("list versions failed", "path", p.Path, "page_id", p.ID, "error", err)
		stats.Errors++
		return
	}
	for _, v := range versions {
		if v.IsDraft && !e.opts.IncludeDrafts {
			stats.SkippedDrafts++
			continue
		}
		// Versions live next to their page's current file, whatever the
		// version's own title was.
		rel := pathmap.VersionFile(p.Path, p.Title, v.VersionNumber)
		if suffix != "" {
			rel = pathmap.WithSuffix(rel, suffix)
		}

		doc := meta.Encode(versionMetadata(p, v), v.Content)
		if e.opts.DryRun {
			e.log.Info("would export version", "path", p.Path, "version", v.VersionNumber, "file", rel)
		} else if err := e.writeFile(root, rel, []byte(doc)); err != nil {
			e.log.Error("export version failed", "path", p.Path, "version", v.VersionNumber, "error", err)
			stats.Errors++
			continue
		}
		stats.Versions++
	}
}

func (e *Exporter) exportImage(ctx context.Context, root string, img wiki.Image, stats *Stats) {
	rel := pathmap.ImageFile(img.Filename)
	if e.claim(rel) {
		rel = pathmap.WithSuffix(rel, strconv.FormatInt(img.ID, 10))
		e.claim(rel)
		e.log.Warn("image file name collision, using image id suffix", "filename", img.Filename, "file", rel)
	}

	sidecar := meta.ImageSidecar{
		ID:        img.ID,
		Filename:  img.Filename,
		MimeType:  img.MimeType,
		CreatedAt: img.CreatedAt,
	}
	if img.UserID != 0 {
		id := img.UserID
		sidecar.UserID = &id
		if u, err := e.src.FindUserByID(ctx, img.UserID); err == nil {
			sidecar.UserName = u.Username
		} else {
			e.log.Warn("image owner not found", "filename", img.Filename, "user_id", img.UserID, "error", err)
		}
	}

	if e.opts.DryRun {
		e.log.Info("would export image", "filename", img.Filename, "file", rel)
		stats.Images++
		return
	}

	data, err := e.src.ReadImageData(ctx, img.ID)
	if err != nil {
		e.log.Error("read image failed", "filename", img.Filename, "image_id", img.ID, "error", err)
		stats.Errors++
		return
	}
	if err := e.writeFile(root, rel, data); err != nil {
		e.log.Error("export image failed", "filename", img.Filename, "error", err)
		stats.Errors++
		return
	}
	doc, err := meta.EncodeSidecar(sidecar)
	if err == nil {
		err = e.writeFile(root, rel+pathmap.SidecarExtension, doc)
	}
	if err != nil {
		e.log.Error("export image sidecar failed", "filename", img.Filename, "error", err)
		stats.Errors++
		return
	}
	e.log.Debug("exported image", "filename", img.Filename, "file", rel)
	stats.Images++
}

// claim records rel as used and reports whether it was already taken.
func (e *Exporter) claim(rel string) bool {
	key := strings.ToLower(rel)
	if e.used[key] {
		return true
	}
	e.used[key] = true
	return false
}

func (e *Exporter) writeFile(root, rel string, data []byte) error {
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func (e *Exporter) writeJSON(full string, v any) error {
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	if err := encodeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pageMetadata(p wiki.Page) meta.Metadata {
	return meta.Metadata{
		Title:      p.Title,
		Path:       p.Path,
		Published:  p.Published,
		Date:       p.UpdatedAt,
		Created:    p.CreatedAt,
		EditGroups: p.EditGroups,
		ViewGroups: p.ViewGroups,
	}
}

// versionMetadata carries the page's current path rather than the version's
// historical one so that import can attach the version to its page.
func versionMetadata(p wiki.Page, v wiki.PageVersion) meta.Metadata {
	return meta.Metadata{
		Title:         v.Title,
		Path:          p.Path,
		Published:     p.Published,
		Date:          v.CreatedAt,
		Created:       p.CreatedAt,
		EditGroups:    v.EditGroups,
		ViewGroups:    v.ViewGroups,
		Version:       v.VersionNumber,
		EditedBy:      v.EditedBy,
		ChangeSummary: v.ChangeSummary,
		IsDraft:       v.IsDraft,
	}
}
