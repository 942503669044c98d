package importer

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/roach88/wikisync/internal/meta"
	"github.com/roach88/wikisync/internal/pathmap"
	"github.com/roach88/wikisync/internal/wiki"
)

func (im *Importer) importImage(ctx context.Context, root, rel string) {
	c := &im.summary.Images

	payload, err := readRel(root, rel)
	if err != nil {
		im.log.Error("read image failed", "file", rel, "error", err)
		c.Errors++
		return
	}
	sc := im.readSidecar(root, rel)

	filename := sc.Filename
	if filename == "" {
		filename = path.Base(rel)
	}
	mimeType := sc.MimeType
	if mimeType == "" {
		mimeType = detectMIME(filename, payload)
	}
	data := wiki.ImageData{
		Filename:  filename,
		MimeType:  mimeType,
		Data:      payload,
		CreatedAt: orNow(sc.CreatedAt, im.now()),
	}

	existing, err := im.tgt.FindImageByFilename(ctx, filename)
	switch {
	case err == nil:
		im.updateImage(ctx, rel, existing, data, sc)
	case isNotFound(err):
		im.createImage(ctx, rel, data, sc)
	default:
		im.log.Error("image lookup failed", "file", rel, "filename", filename, "error", err)
		c.Errors++
	}
}

func (im *Importer) createImage(ctx context.Context, rel string, data wiki.ImageData, sc meta.ImageSidecar) {
	c := &im.summary.Images
	owner, ok := im.resolveOwner(ctx, sc)
	if !ok {
		im.log.Warn("no user can own image, skipping", "file", rel, "filename", data.Filename)
		c.Skipped++
		return
	}
	data.UserID = owner

	if im.opts.DryRun {
		im.log.Info("would create image", "file", rel, "filename", data.Filename)
		c.Created++
		return
	}
	img, err := im.tgt.CreateImage(ctx, data)
	if err != nil {
		im.log.Error("create image failed", "file", rel, "filename", data.Filename, "error", err)
		c.Errors++
		return
	}
	im.log.Info("created image", "file", rel, "filename", img.Filename, "image_id", img.ID)
	c.Created++
}

func (im *Importer) updateImage(ctx context.Context, rel string, existing wiki.Image, data wiki.ImageData, sc meta.ImageSidecar) {
	c := &im.summary.Images

	if im.smart {
		stored, err := im.tgt.ReadImageData(ctx, existing.ID)
		if err != nil {
			im.log.Error("read stored image failed", "file", rel, "image_id", existing.ID, "error", err)
			c.Errors++
			return
		}
		if bytes.Equal(stored, data.Data) && existing.MimeType == data.MimeType {
			im.log.Debug("image unchanged", "file", rel, "filename", data.Filename)
			c.Skipped++
			return
		}
	} else if im.opts.Policy == SkipExisting {
		im.log.Debug("image exists, skipping", "file", rel, "filename", data.Filename)
		c.Skipped++
		return
	}

	owner, ok := im.resolveOwner(ctx, sc)
	if !ok {
		im.log.Warn("no user can own image, skipping", "file", rel, "filename", data.Filename)
		c.Skipped++
		return
	}
	data.UserID = owner
	if sc.CreatedAt.IsZero() {
		data.CreatedAt = existing.CreatedAt
	}

	if im.opts.DryRun {
		im.log.Info("would update image", "file", rel, "filename", data.Filename, "image_id", existing.ID)
		c.Updated++
		return
	}
	if _, err := im.tgt.UpdateImage(ctx, existing.ID, data); err != nil {
		im.log.Error("update image failed", "file", rel, "filename", data.Filename, "error", err)
		c.Errors++
		return
	}
	im.log.Info("updated image", "file", rel, "filename", data.Filename, "image_id", existing.ID)
	c.Updated++
}

// readSidecar loads the optional metadata sidecar of an image. A missing or
// malformed sidecar yields the zero value.
func (im *Importer) readSidecar(root, rel string) meta.ImageSidecar {
	raw, err := readRel(root, rel+pathmap.SidecarExtension)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			im.log.Warn("read image sidecar failed", "file", rel, "error", err)
		}
		return meta.ImageSidecar{}
	}
	sc, err := meta.DecodeSidecar(raw)
	if err != nil {
		im.log.Warn("malformed image sidecar ignored", "file", rel, "error", err)
		return meta.ImageSidecar{}
	}
	return sc
}

// resolveOwner finds a real user for an image: the sidecar's user ID, then
// its username, then any user at all.
func (im *Importer) resolveOwner(ctx context.Context, sc meta.ImageSidecar) (int64, bool) {
	if sc.UserID != nil {
		if u, err := im.tgt.FindUserByID(ctx, *sc.UserID); err == nil {
			return u.ID, true
		}
	}
	if sc.UserName != "" {
		if u, err := im.tgt.FindUserByUsername(ctx, sc.UserName); err == nil {
			return u.ID, true
		}
	}
	users, err := im.tgt.ListUsers(ctx)
	if err != nil {
		im.log.Error("list users failed", "error", err)
		return 0, false
	}
	if len(users) == 0 {
		return 0, false
	}
	im.log.Debug("image owner not found, using fallback user",
		"user_id", sc.UserID, "user_name", sc.UserName, "fallback", users[0].Username)
	return users[0].ID, true
}

// detectMIME guesses a MIME type from the file extension, then from content.
func detectMIME(filename string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	t := http.DetectContentType(data)
	if base, _, err := mime.ParseMediaType(t); err == nil {
		return base
	}
	return t
}
