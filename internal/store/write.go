package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/wikisync/internal/wiki"
)

// CreatePage inserts a new page. Zero timestamps default to now; a zero
// UpdatedAt defaults to CreatedAt.
// Returns wiki.ErrConflict if a page with the same path exists.
func (s *Store) CreatePage(ctx context.Context, data wiki.PageData) (wiki.Page, error) {
	data = s.defaultPageTimes(data)
	args, err := pageArgs(data)
	if err != nil {
		return wiki.Page{}, fmt.Errorf("create page %q: %w", data.Path, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pages
		(path, title, content, published, tags, view_groups, edit_groups, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return wiki.Page{}, fmt.Errorf("create page %q: %w", data.Path, mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return wiki.Page{}, fmt.Errorf("create page %q: last insert id: %w", data.Path, err)
	}
	return s.GetPage(ctx, id)
}

// UpdatePage overwrites every mutable field of an existing page. It does not
// append a version; see UpdatePageContent.
// Returns wiki.ErrNotFound if the page does not exist.
func (s *Store) UpdatePage(ctx context.Context, id int64, data wiki.PageData) (wiki.Page, error) {
	data = s.defaultPageTimes(data)
	args, err := pageArgs(data)
	if err != nil {
		return wiki.Page{}, fmt.Errorf("update page %d: %w", id, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE pages SET
			path = ?, title = ?, content = ?, published = ?, tags = ?,
			view_groups = ?, edit_groups = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, append(args, id)...)
	if err != nil {
		return wiki.Page{}, fmt.Errorf("update page %d: %w", id, mapError(err))
	}
	if err := requireAffected(result); err != nil {
		return wiki.Page{}, fmt.Errorf("update page %d: %w", id, err)
	}
	return s.GetPage(ctx, id)
}

// UpdatePageContent replaces a page's content and appends a version holding the
// new snapshot, in one transaction. This is the save path used by editors and
// the API; the new version number is one past the current highest.
func (s *Store) UpdatePageContent(ctx context.Context, id int64, content, editedBy, summary string) (wiki.Page, wiki.PageVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wiki.Page{}, wiki.PageVersion{}, fmt.Errorf("update page content %d: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	page, err := scanPage(tx.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
	if err != nil {
		return wiki.Page{}, wiki.PageVersion{}, fmt.Errorf("update page content %d: %w", id, mapError(err))
	}

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx, `UPDATE pages SET content = ?, updated_at = ? WHERE id = ?`,
		content, formatTime(now), id); err != nil {
		return wiki.Page{}, wiki.PageVersion{}, fmt.Errorf("update page content %d: %w", id, err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version_number), 0) + 1 FROM page_versions WHERE page_id = ?`,
		id).Scan(&next); err != nil {
		return wiki.Page{}, wiki.PageVersion{}, fmt.Errorf("update page content %d: next version: %w", id, err)
	}

	vdata := wiki.VersionData{
		PageID:        id,
		VersionNumber: next,
		Title:         page.Title,
		Content:       content,
		Path:          page.Path,
		ViewGroups:    page.ViewGroups,
		EditGroups:    page.EditGroups,
		EditedBy:      editedBy,
		ChangeSummary: summary,
		CreatedAt:     now,
	}
	vid, err := insertVersion(ctx, tx, vdata)
	if err != nil {
		return wiki.Page{}, wiki.PageVersion{}, fmt.Errorf("update page content %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return wiki.Page{}, wiki.PageVersion{}, fmt.Errorf("update page content %d: commit: %w", id, err)
	}

	page.Content = content
	page.UpdatedAt = now
	version := versionFromData(vid, vdata)
	return page, version, nil
}

// CreateVersion inserts a version snapshot for an existing page.
// Returns wiki.ErrConflict if the page already has that version number.
func (s *Store) CreateVersion(ctx context.Context, data wiki.VersionData) (wiki.PageVersion, error) {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.timestamp()
	}
	id, err := insertVersion(ctx, s.db, data)
	if err != nil {
		return wiki.PageVersion{}, fmt.Errorf("create version %d of page %d: %w", data.VersionNumber, data.PageID, err)
	}
	return versionFromData(id, data), nil
}

// UpdateVersion overwrites an existing version snapshot.
func (s *Store) UpdateVersion(ctx context.Context, id int64, data wiki.VersionData) (wiki.PageVersion, error) {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.timestamp()
	}
	view, err := marshalList(data.ViewGroups)
	if err != nil {
		return wiki.PageVersion{}, fmt.Errorf("update version %d: %w", id, err)
	}
	edit, err := marshalList(data.EditGroups)
	if err != nil {
		return wiki.PageVersion{}, fmt.Errorf("update version %d: %w", id, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE page_versions SET
			page_id = ?, version_number = ?, title = ?, content = ?, path = ?,
			view_groups = ?, edit_groups = ?, edited_by = ?, change_summary = ?,
			is_draft = ?, created_at = ?
		WHERE id = ?
	`,
		data.PageID, data.VersionNumber, data.Title, data.Content, data.Path,
		view, edit, data.EditedBy, data.ChangeSummary,
		boolToInt(data.IsDraft), formatTime(data.CreatedAt), id,
	)
	if err != nil {
		return wiki.PageVersion{}, fmt.Errorf("update version %d: %w", id, mapError(err))
	}
	if err := requireAffected(result); err != nil {
		return wiki.PageVersion{}, fmt.Errorf("update version %d: %w", id, err)
	}
	return versionFromData(id, data), nil
}

// CreateImage inserts an image. A zero UserID stores no owner.
func (s *Store) CreateImage(ctx context.Context, data wiki.ImageData) (wiki.Image, error) {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.timestamp()
	}
	if data.Data == nil {
		data.Data = []byte{}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO images (filename, mimetype, data, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, data.Filename, data.MimeType, data.Data, nullableID(data.UserID), formatTime(data.CreatedAt))
	if err != nil {
		return wiki.Image{}, fmt.Errorf("create image %q: %w", data.Filename, mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return wiki.Image{}, fmt.Errorf("create image %q: last insert id: %w", data.Filename, err)
	}
	return imageFromData(id, data), nil
}

// UpdateImage replaces an image's payload and metadata.
func (s *Store) UpdateImage(ctx context.Context, id int64, data wiki.ImageData) (wiki.Image, error) {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.timestamp()
	}
	if data.Data == nil {
		data.Data = []byte{}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE images SET filename = ?, mimetype = ?, data = ?, user_id = ?, created_at = ?
		WHERE id = ?
	`, data.Filename, data.MimeType, data.Data, nullableID(data.UserID), formatTime(data.CreatedAt), id)
	if err != nil {
		return wiki.Image{}, fmt.Errorf("update image %d: %w", id, mapError(err))
	}
	if err := requireAffected(result); err != nil {
		return wiki.Image{}, fmt.Errorf("update image %d: %w", id, err)
	}
	return imageFromData(id, data), nil
}

// CreateUser inserts a user.
// Returns wiki.ErrConflict if the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, displayName string) (wiki.User, error) {
	now := s.timestamp()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, display_name, created_at) VALUES (?, ?, ?)
	`, username, displayName, formatTime(now))
	if err != nil {
		return wiki.User{}, fmt.Errorf("create user %q: %w", username, mapError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return wiki.User{}, fmt.Errorf("create user %q: last insert id: %w", username, err)
	}
	return wiki.User{ID: id, Username: username, DisplayName: displayName, CreatedAt: now}, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertVersion(ctx context.Context, db execer, data wiki.VersionData) (int64, error) {
	view, err := marshalList(data.ViewGroups)
	if err != nil {
		return 0, err
	}
	edit, err := marshalList(data.EditGroups)
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO page_versions
		(page_id, version_number, title, content, path, view_groups, edit_groups,
		 edited_by, change_summary, is_draft, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		data.PageID, data.VersionNumber, data.Title, data.Content, data.Path,
		view, edit, data.EditedBy, data.ChangeSummary,
		boolToInt(data.IsDraft), formatTime(data.CreatedAt),
	)
	if err != nil {
		return 0, mapError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *Store) defaultPageTimes(data wiki.PageData) wiki.PageData {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.timestamp()
	}
	if data.UpdatedAt.IsZero() {
		data.UpdatedAt = data.CreatedAt
	}
	return data
}

func pageArgs(data wiki.PageData) ([]any, error) {
	tags, err := marshalList(data.Tags)
	if err != nil {
		return nil, err
	}
	view, err := marshalList(data.ViewGroups)
	if err != nil {
		return nil, err
	}
	edit, err := marshalList(data.EditGroups)
	if err != nil {
		return nil, err
	}
	return []any{
		data.Path, data.Title, data.Content, boolToInt(data.Published), tags,
		view, edit, formatTime(data.CreatedAt), formatTime(data.UpdatedAt),
	}, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return wiki.ErrNotFound
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func versionFromData(id int64, data wiki.VersionData) wiki.PageVersion {
	return wiki.PageVersion{
		ID:            id,
		PageID:        data.PageID,
		VersionNumber: data.VersionNumber,
		Title:         data.Title,
		Content:       data.Content,
		Path:          data.Path,
		ViewGroups:    emptyToNil(data.ViewGroups),
		EditGroups:    emptyToNil(data.EditGroups),
		EditedBy:      data.EditedBy,
		ChangeSummary: data.ChangeSummary,
		IsDraft:       data.IsDraft,
		CreatedAt:     data.CreatedAt.UTC(),
	}
}

func imageFromData(id int64, data wiki.ImageData) wiki.Image {
	return wiki.Image{
		ID:        id,
		Filename:  data.Filename,
		MimeType:  data.MimeType,
		UserID:    data.UserID,
		CreatedAt: data.CreatedAt.UTC(),
	}
}

func emptyToNil(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	return items
}
