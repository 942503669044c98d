package importer

import (
	"context"

	"github.com/roach88/wikisync/internal/wiki"
)

// SyncChangeSummary is recorded on versions created by Sync.
const SyncChangeSummary = "Synchronized from export"

// record remembers the post-import state of a page for the head-version pass.
func (im *Importer) record(p wiki.Page) {
	if !im.smart {
		return
	}
	if _, ok := im.synced[p.Path]; !ok {
		im.order = append(im.order, p.Path)
	}
	im.synced[p.Path] = p
}

// pageChanged reports whether imported data differs from the stored page in
// any hashed field.
func pageChanged(existing wiki.Page, data wiki.PageData) (bool, error) {
	stored, err := wiki.PageHash(existing)
	if err != nil {
		return false, err
	}
	incoming, err := wiki.ContentHash(data.Title, data.Content, data.ViewGroups, data.EditGroups)
	if err != nil {
		return false, err
	}
	return stored != incoming, nil
}

// syncHead appends one version to p when its head version does not match its
// content, or when it has no versions at all.
func (im *Importer) syncHead(ctx context.Context, p wiki.Page) {
	c := &im.summary.Versions

	pageHash, err := wiki.PageHash(p)
	if err != nil {
		im.log.Error("hash page failed", "path", p.Path, "error", err)
		c.Errors++
		return
	}

	next := 1
	if p.ID != 0 {
		head, err := im.tgt.LatestVersion(ctx, p.ID)
		switch {
		case err == nil:
			headHash, err := wiki.VersionHash(head)
			if err != nil {
				im.log.Error("hash version failed", "path", p.Path, "version", head.VersionNumber, "error", err)
				c.Errors++
				return
			}
			if headHash == pageHash {
				im.log.Debug("head version current", "path", p.Path, "version", head.VersionNumber)
				return
			}
			next = head.VersionNumber + 1
		case isNotFound(err):
		default:
			im.log.Error("head version lookup failed", "path", p.Path, "error", err)
			c.Errors++
			return
		}
	}

	data := wiki.VersionData{
		PageID:        p.ID,
		VersionNumber: next,
		Title:         p.Title,
		Content:       p.Content,
		Path:          p.Path,
		ViewGroups:    p.ViewGroups,
		EditGroups:    p.EditGroups,
		EditedBy:      im.opts.Author,
		ChangeSummary: SyncChangeSummary,
		CreatedAt:     im.now(),
	}
	if im.opts.DryRun {
		im.log.Info("would create version", "path", p.Path, "version", next)
		c.Created++
		return
	}
	if _, err := im.tgt.CreateVersion(ctx, data); err != nil {
		im.log.Error("create head version failed", "path", p.Path, "version", next, "error", err)
		c.Errors++
		return
	}
	im.log.Info("created version", "path", p.Path, "version", next, "edited_by", im.opts.Author)
	c.Created++
}
