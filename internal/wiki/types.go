package wiki

import "time"

// Page is the live state of a wiki document.
type Page struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"` // unique across live pages
	Title      string    `json:"title"`
	Content    string    `json:"content"` // HTML, opaque except for image references
	Published  bool      `json:"published"`
	Tags       []string  `json:"tags"`
	ViewGroups []string  `json:"view_groups"`
	EditGroups []string  `json:"edit_groups"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PageSummary is the listing form of a page, without content.
type PageSummary struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageVersion is an immutable snapshot of a page at the time of an edit.
type PageVersion struct {
	ID            int64     `json:"id"`
	PageID        int64     `json:"page_id"`
	VersionNumber int       `json:"version_number"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Path          string    `json:"path"`
	ViewGroups    []string  `json:"view_groups"`
	EditGroups    []string  `json:"edit_groups"`
	EditedBy      string    `json:"edited_by"` // free text, not necessarily a live user
	ChangeSummary string    `json:"change_summary"`
	IsDraft       bool      `json:"is_draft"`
	CreatedAt     time.Time `json:"created_at"`
}

// Image is an uploaded media item. Data is only populated when explicitly read.
type Image struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimetype"`
	Data      []byte    `json:"-"`
	UserID    int64     `json:"user_id"` // 0 when the owner is unknown
	CreatedAt time.Time `json:"created_at"`
}

// User is an account that can own images.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PageData carries the mutable fields of a page for create and update calls.
type PageData struct {
	Path       string
	Title      string
	Content    string
	Published  bool
	Tags       []string
	ViewGroups []string
	EditGroups []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VersionData carries the fields of a version for create and update calls.
type VersionData struct {
	PageID        int64
	VersionNumber int
	Title         string
	Content       string
	Path          string
	ViewGroups    []string
	EditGroups    []string
	EditedBy      string
	ChangeSummary string
	IsDraft       bool
	CreatedAt     time.Time
}

// ImageData carries the fields of an image for create and update calls.
type ImageData struct {
	Filename  string
	MimeType  string
	Data      []byte
	UserID    int64
	CreatedAt time.Time
}

// Summary returns the listing form of the page.
func (p Page) Summary() PageSummary {
	return PageSummary{
		ID:        p.ID,
		Path:      p.Path,
		Title:     p.Title,
		Tags:      p.Tags,
		UpdatedAt: p.UpdatedAt,
	}
}

// Data returns the mutable fields of the page.
func (p Page) Data() PageData {
	return PageData{
		Path:       p.Path,
		Title:      p.Title,
		Content:    p.Content,
		Published:  p.Published,
		Tags:       p.Tags,
		ViewGroups: p.ViewGroups,
		EditGroups: p.EditGroups,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
