package store

import (
	"context"
	"fmt"

	"github.com/roach88/wikisync/internal/wiki"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const pageColumns = `id, path, title, content, published, tags, view_groups, edit_groups, created_at, updated_at`

const versionColumns = `id, page_id, version_number, title, content, path, view_groups, edit_groups,
	edited_by, change_summary, is_draft, created_at`

const imageColumns = `id, filename, mimetype, COALESCE(user_id, 0), created_at`

const userColumns = `id, username, display_name, created_at`

// FindPageByPath returns the live page with the given path.
// Returns wiki.ErrNotFound if no page has that path.
func (s *Store) FindPageByPath(ctx context.Context, path string) (wiki.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE path = ?`, path)
	p, err := scanPage(row)
	if err != nil {
		return wiki.Page{}, fmt.Errorf("find page %q: %w", path, mapError(err))
	}
	return p, nil
}

// GetPage returns a page with its full content.
// Returns wiki.ErrNotFound if the page does not exist.
func (s *Store) GetPage(ctx context.Context, id int64) (wiki.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if err != nil {
		return wiki.Page{}, fmt.Errorf("get page %d: %w", id, mapError(err))
	}
	return p, nil
}

// ListPages returns all pages ordered by path.
// Returns an empty slice (not nil) when the store has no pages.
func (s *Store) ListPages(ctx context.Context) ([]wiki.Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY path ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	pages := []wiki.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

// FindVersion returns the version of a page with the given number.
// Returns wiki.ErrNotFound if it does not exist.
func (s *Store) FindVersion(ctx context.Context, pageID int64, number int) (wiki.PageVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM page_versions
		WHERE page_id = ? AND version_number = ?
	`, pageID, number)
	v, err := scanVersion(row)
	if err != nil {
		return wiki.PageVersion{}, fmt.Errorf("find version %d of page %d: %w", number, pageID, mapError(err))
	}
	return v, nil
}

// LatestVersion returns the highest-numbered version of a page.
// Returns wiki.ErrNotFound if the page has no versions.
func (s *Store) LatestVersion(ctx context.Context, pageID int64) (wiki.PageVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM page_versions
		WHERE page_id = ?
		ORDER BY version_number DESC
		LIMIT 1
	`, pageID)
	v, err := scanVersion(row)
	if err != nil {
		return wiki.PageVersion{}, fmt.Errorf("latest version of page %d: %w", pageID, mapError(err))
	}
	return v, nil
}

// ListVersions returns all versions of a page in ascending version order.
func (s *Store) ListVersions(ctx context.Context, pageID int64) ([]wiki.PageVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+`
		FROM page_versions
		WHERE page_id = ?
		ORDER BY version_number ASC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions := []wiki.PageVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// FindImageByFilename returns the newest image with the given filename.
// Returns wiki.ErrNotFound if none exists.
func (s *Store) FindImageByFilename(ctx context.Context, filename string) (wiki.Image, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+`
		FROM images
		WHERE filename = ?
		ORDER BY id DESC
		LIMIT 1
	`, filename)
	img, err := scanImage(row)
	if err != nil {
		return wiki.Image{}, fmt.Errorf("find image %q: %w", filename, mapError(err))
	}
	return img, nil
}

// GetImage returns image metadata without the payload.
func (s *Store) GetImage(ctx context.Context, id int64) (wiki.Image, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	img, err := scanImage(row)
	if err != nil {
		return wiki.Image{}, fmt.Errorf("get image %d: %w", id, mapError(err))
	}
	return img, nil
}

// ReadImageData returns the binary payload of an image.
func (s *Store) ReadImageData(ctx context.Context, id int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM images WHERE id = ?`, id).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("read image %d: %w", id, mapError(err))
	}
	return data, nil
}

// ListImages returns metadata for all images ordered by ID. Payloads are not
// loaded; use ReadImageData.
func (s *Store) ListImages(ctx context.Context) ([]wiki.Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	images := []wiki.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// FindUserByID returns the user with the given ID.
func (s *Store) FindUserByID(ctx context.Context, id int64) (wiki.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return wiki.User{}, fmt.Errorf("find user %d: %w", id, mapError(err))
	}
	return u, nil
}

// FindUserByUsername returns the user with the given username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (wiki.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return wiki.User{}, fmt.Errorf("find user %q: %w", username, mapError(err))
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]wiki.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []wiki.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanPage(r rowScanner) (wiki.Page, error) {
	var (
		p                    wiki.Page
		published            int
		tags, view, edit     string
		createdAt, updatedAt string
	)
	if err := r.Scan(&p.ID, &p.Path, &p.Title, &p.Content, &published, &tags, &view, &edit, &createdAt, &updatedAt); err != nil {
		return wiki.Page{}, err
	}
	p.Published = published != 0

	var err error
	if p.Tags, err = unmarshalList(tags); err != nil {
		return wiki.Page{}, fmt.Errorf("scan page %d tags: %w", p.ID, err)
	}
	if p.ViewGroups, err = unmarshalList(view); err != nil {
		return wiki.Page{}, fmt.Errorf("scan page %d view_groups: %w", p.ID, err)
	}
	if p.EditGroups, err = unmarshalList(edit); err != nil {
		return wiki.Page{}, fmt.Errorf("scan page %d edit_groups: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return wiki.Page{}, fmt.Errorf("scan page %d: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return wiki.Page{}, fmt.Errorf("scan page %d: %w", p.ID, err)
	}
	return p, nil
}

func scanVersion(r rowScanner) (wiki.PageVersion, error) {
	var (
		v          wiki.PageVersion
		view, edit string
		isDraft    int
		createdAt  string
	)
	if err := r.Scan(&v.ID, &v.PageID, &v.VersionNumber, &v.Title, &v.Content, &v.Path, &view, &edit,
		&v.EditedBy, &v.ChangeSummary, &isDraft, &createdAt); err != nil {
		return wiki.PageVersion{}, err
	}
	v.IsDraft = isDraft != 0

	var err error
	if v.ViewGroups, err = unmarshalList(view); err != nil {
		return wiki.PageVersion{}, fmt.Errorf("scan version %d view_groups: %w", v.ID, err)
	}
	if v.EditGroups, err = unmarshalList(edit); err != nil {
		return wiki.PageVersion{}, fmt.Errorf("scan version %d edit_groups: %w", v.ID, err)
	}
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return wiki.PageVersion{}, fmt.Errorf("scan version %d: %w", v.ID, err)
	}
	return v, nil
}

func scanImage(r rowScanner) (wiki.Image, error) {
	var (
		img       wiki.Image
		createdAt string
	)
	if err := r.Scan(&img.ID, &img.Filename, &img.MimeType, &img.UserID, &createdAt); err != nil {
		return wiki.Image{}, err
	}
	var err error
	if img.CreatedAt, err = parseTime(createdAt); err != nil {
		return wiki.Image{}, fmt.Errorf("scan image %d: %w", img.ID, err)
	}
	return img, nil
}

func scanUser(r rowScanner) (wiki.User, error) {
	var (
		u         wiki.User
		createdAt string
	)
	if err := r.Scan(&u.ID, &u.Username, &u.DisplayName, &createdAt); err != nil {
		return wiki.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return wiki.User{}, fmt.Errorf("scan user %d: %w", u.ID, err)
	}
	return u, nil
}
