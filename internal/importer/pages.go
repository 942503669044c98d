package importer

import (
	"context"

	"github.com/roach88/wikisync/internal/meta"
	"github.com/roach88/wikisync/internal/pathmap"
	"github.com/roach88/wikisync/internal/restrict"
	"github.com/roach88/wikisync/internal/wiki"
)

func (im *Importer) importPage(ctx context.Context, root, rel string) {
	c := &im.summary.Pages

	raw, err := readRel(root, rel)
	if err != nil {
		im.log.Error("read page file failed", "file", rel, "error", err)
		c.Errors++
		return
	}
	md, content := meta.Decode(string(raw))
	if md == nil {
		im.log.Warn("page file has no metadata, skipping", "file", rel)
		c.Skipped++
		return
	}

	logical := im.resolvePath(md, rel)
	data := wiki.PageData{
		Path:       logical,
		Title:      md.Title,
		Content:    restrict.ResolveForSave(content),
		Published:  md.Published,
		ViewGroups: md.ViewGroups,
		EditGroups: md.EditGroups,
		CreatedAt:  md.Created,
		UpdatedAt:  md.Date,
	}
	if data.Title == "" {
		data.Title = pathmap.BaseName(logical, "")
	}

	existing, err := im.tgt.FindPageByPath(ctx, logical)
	switch {
	case err == nil:
		im.updatePage(ctx, rel, existing, data)
	case isNotFound(err):
		im.createPage(ctx, rel, data)
	default:
		im.log.Error("page lookup failed", "file", rel, "path", logical, "error", err)
		c.Errors++
	}
}

// resolvePath prefers the metadata path. The location-derived path is a
// degraded fallback and is flagged when used.
func (im *Importer) resolvePath(md *meta.Metadata, rel string) string {
	if md.Path != "" {
		return md.Path
	}
	derived := pathmap.DerivePath(rel)
	im.log.Warn("metadata has no path, deriving from file location", "file", rel, "path", derived)
	return derived
}

func (im *Importer) createPage(ctx context.Context, rel string, data wiki.PageData) {
	c := &im.summary.Pages
	data.CreatedAt = orNow(data.CreatedAt, im.now())
	data.UpdatedAt = orNow(data.UpdatedAt, data.CreatedAt)

	if im.opts.DryRun {
		im.log.Info("would create page", "file", rel, "path", data.Path)
		im.planned[data.Path] = true
		im.record(pageFromData(0, data))
		c.Created++
		return
	}

	p, err := im.tgt.CreatePage(ctx, data)
	if err != nil {
		im.log.Error("create page failed", "file", rel, "path", data.Path, "error", err)
		c.Errors++
		return
	}
	im.log.Info("created page", "file", rel, "path", p.Path, "page_id", p.ID)
	im.record(p)
	c.Created++
}

func (im *Importer) updatePage(ctx context.Context, rel string, existing wiki.Page, data wiki.PageData) {
	c := &im.summary.Pages

	if im.smart {
		changed, err := pageChanged(existing, data)
		if err != nil {
			im.log.Error("hash page failed", "file", rel, "path", existing.Path, "error", err)
			c.Errors++
			return
		}
		if !changed {
			im.log.Debug("page unchanged", "file", rel, "path", existing.Path)
			im.record(existing)
			c.Skipped++
			return
		}
	} else if im.opts.Policy == SkipExisting {
		im.log.Debug("page exists, skipping", "file", rel, "path", existing.Path)
		c.Skipped++
		return
	}

	// Tags are not carried by the file format and survive the update.
	merged := existing.Data()
	merged.Title = data.Title
	merged.Content = data.Content
	merged.Published = data.Published
	merged.ViewGroups = data.ViewGroups
	merged.EditGroups = data.EditGroups
	if !data.CreatedAt.IsZero() {
		merged.CreatedAt = data.CreatedAt
	}
	merged.UpdatedAt = orNow(data.UpdatedAt, im.now())

	if im.opts.DryRun {
		im.log.Info("would update page", "file", rel, "path", existing.Path, "page_id", existing.ID)
		im.record(pageFromData(existing.ID, merged))
		c.Updated++
		return
	}

	p, err := im.tgt.UpdatePage(ctx, existing.ID, merged)
	if err != nil {
		im.log.Error("update page failed", "file", rel, "path", existing.Path, "error", err)
		c.Errors++
		return
	}
	im.log.Info("updated page", "file", rel, "path", p.Path, "page_id", p.ID)
	im.record(p)
	c.Updated++
}

func (im *Importer) importVersion(ctx context.Context, root, rel string) {
	c := &im.summary.Versions

	raw, err := readRel(root, rel)
	if err != nil {
		im.log.Error("read version file failed", "file", rel, "error", err)
		c.Errors++
		return
	}
	md, content := meta.Decode(string(raw))
	if md == nil {
		im.log.Warn("version file has no metadata, skipping", "file", rel)
		c.Skipped++
		return
	}
	// Attaching a version needs an explicit owner, never a guessed one.
	if md.Path == "" {
		im.log.Warn("version file has no path metadata, skipping", "file", rel)
		c.Skipped++
		return
	}
	number := md.Version
	if number == 0 {
		number = pathmap.VersionFromFile(rel)
	}
	if number == 0 {
		im.log.Warn("version file has no version number, skipping", "file", rel)
		c.Skipped++
		return
	}

	page, err := im.tgt.FindPageByPath(ctx, md.Path)
	if isNotFound(err) {
		if im.opts.DryRun && im.planned[md.Path] {
			im.log.Info("would create version", "file", rel, "path", md.Path, "version", number)
			c.Created++
			return
		}
		im.log.Warn("no page for version, skipping", "file", rel, "path", md.Path, "version", number)
		c.Skipped++
		return
	}
	if err != nil {
		im.log.Error("page lookup failed", "file", rel, "path", md.Path, "error", err)
		c.Errors++
		return
	}

	data := wiki.VersionData{
		PageID:        page.ID,
		VersionNumber: number,
		Title:         md.Title,
		Content:       restrict.ResolveForSave(content),
		Path:          md.Path,
		ViewGroups:    md.ViewGroups,
		EditGroups:    md.EditGroups,
		EditedBy:      md.EditedBy,
		ChangeSummary: md.ChangeSummary,
		IsDraft:       md.IsDraft,
		CreatedAt:     orNow(md.Date, im.now()),
	}
	if data.Title == "" {
		data.Title = page.Title
	}

	existing, err := im.tgt.FindVersion(ctx, page.ID, number)
	switch {
	case err == nil:
		if im.smart || im.opts.Policy == SkipExisting {
			im.log.Debug("version exists, skipping", "file", rel, "path", md.Path, "version", number)
			c.Skipped++
			return
		}
		if im.opts.DryRun {
			im.log.Info("would update version", "file", rel, "path", md.Path, "version", number)
			c.Updated++
			return
		}
		if _, err := im.tgt.UpdateVersion(ctx, existing.ID, data); err != nil {
			im.log.Error("update version failed", "file", rel, "path", md.Path, "version", number, "error", err)
			c.Errors++
			return
		}
		im.log.Info("updated version", "file", rel, "path", md.Path, "version", number)
		c.Updated++
	case isNotFound(err):
		if im.opts.DryRun {
			im.log.Info("would create version", "file", rel, "path", md.Path, "version", number)
			c.Created++
			return
		}
		if _, err := im.tgt.CreateVersion(ctx, data); err != nil {
			im.log.Error("create version failed", "file", rel, "path", md.Path, "version", number, "error", err)
			c.Errors++
			return
		}
		im.log.Info("created version", "file", rel, "path", md.Path, "version", number)
		c.Created++
	default:
		im.log.Error("version lookup failed", "file", rel, "path", md.Path, "version", number, "error", err)
		c.Errors++
	}
}

func pageFromData(id int64, d wiki.PageData) wiki.Page {
	return wiki.Page{
		ID:         id,
		Path:       d.Path,
		Title:      d.Title,
		Content:    d.Content,
		Published:  d.Published,
		Tags:       d.Tags,
		ViewGroups: d.ViewGroups,
		EditGroups: d.EditGroups,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
