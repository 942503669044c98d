// Package meta encodes page and version metadata as a plain-text header that
// precedes the HTML body of an exported file:
//
//	<!--
//	title: Getting Started
//	path: /guides/intro
//	published: true
//	...
//	-->
//
//	<p>content</p>
//
// Decoding is lenient. Unknown keys are ignored, missing keys take their zero
// value, and a document without a header decodes to nil metadata with the whole
// input as content.
package meta

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Recognized header keys, in encoding order.
const (
	KeyTitle         = "title"
	KeyPath          = "path"
	KeyPublished     = "published"
	KeyDate          = "date"
	KeyCreated       = "created"
	KeyEditGroups    = "edit_groups"
	KeyViewGroups    = "view_groups"
	KeyVersion       = "version"
	KeyEditedBy      = "edited_by"
	KeyChangeSummary = "change_summary"
	KeyIsDraft       = "is_draft"
)

const (
	headerOpen  = "<!--\n"
	headerClose = "\n-->\n\n"
	listSep     = ", "
)

// headerPattern matches a header block at the start of a document. A leading
// BOM and whitespace are tolerated, as are CRLF line endings.
var headerPattern = regexp.MustCompile(`^\x{FEFF}?\s*<!--\r?\n((?s:.*?))\r?\n-->(?:\r?\n){0,2}`)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Metadata is the structured header of a page or version file.
// Version is zero for page files.
type Metadata struct {
	Title         string
	Path          string
	Published     bool
	Date          time.Time
	Created       time.Time
	EditGroups    []string
	ViewGroups    []string
	Version       int
	EditedBy      string
	ChangeSummary string
	IsDraft       bool
}

// IsVersion reports whether the metadata describes a version snapshot.
func (m Metadata) IsVersion() bool {
	return m.Version > 0
}

// Encode renders the header followed by content.
func Encode(m Metadata, content string) string {
	var sb strings.Builder
	sb.WriteString(headerOpen)
	sb.WriteString(encodeLines(m))
	sb.WriteString(headerClose)
	sb.WriteString(content)
	return sb.String()
}

func encodeLines(m Metadata) string {
	var lines []string
	add := func(key, value string) {
		lines = append(lines, key+": "+quoteIfNeeded(value))
	}

	add(KeyTitle, m.Title)
	add(KeyPath, m.Path)
	add(KeyPublished, strconv.FormatBool(m.Published))
	if !m.Date.IsZero() {
		add(KeyDate, formatTime(m.Date))
	}
	if !m.Created.IsZero() {
		add(KeyCreated, formatTime(m.Created))
	}
	lines = append(lines, KeyEditGroups+": "+joinList(m.EditGroups))
	lines = append(lines, KeyViewGroups+": "+joinList(m.ViewGroups))

	// Version files always carry the full version key set.
	full := m.IsVersion()
	if full {
		add(KeyVersion, strconv.Itoa(m.Version))
	}
	if full || m.EditedBy != "" {
		add(KeyEditedBy, m.EditedBy)
	}
	if full || m.ChangeSummary != "" {
		add(KeyChangeSummary, m.ChangeSummary)
	}
	if full || m.IsDraft {
		add(KeyIsDraft, strconv.FormatBool(m.IsDraft))
	}

	return strings.Join(lines, "\n")
}

// Decode splits a document into metadata and content. It returns nil metadata
// and the unchanged input when the document has no header, or when the leading
// comment carries none of the recognized keys.
func Decode(doc string) (*Metadata, string) {
	loc := headerPattern.FindStringSubmatchIndex(doc)
	if loc == nil {
		return nil, doc
	}
	body := doc[loc[2]:loc[3]]
	content := doc[loc[1]:]

	var m Metadata
	recognized := 0
	for _, line := range strings.Split(body, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = unquote(strings.TrimSpace(value))
		if decodeKey(&m, key, value) {
			recognized++
		}
	}

	if recognized == 0 {
		return nil, doc
	}
	return &m, content
}

// decodeKey assigns one header value and reports whether the key is known.
func decodeKey(m *Metadata, key, value string) bool {
	switch key {
	case KeyTitle:
		m.Title = value
	case KeyPath:
		m.Path = value
	case KeyPublished:
		m.Published = parseBool(value)
	case KeyDate:
		m.Date = parseTime(value)
	case KeyCreated:
		m.Created = parseTime(value)
	case KeyEditGroups:
		m.EditGroups = splitList(value)
	case KeyViewGroups:
		m.ViewGroups = splitList(value)
	case KeyVersion:
		n, err := strconv.Atoi(value)
		if err == nil && n > 0 {
			m.Version = n
		}
	case KeyEditedBy:
		m.EditedBy = value
	case KeyChangeSummary:
		m.ChangeSummary = value
	case KeyIsDraft:
		m.IsDraft = parseBool(value)
	default:
		return false
	}
	return true
}

func joinList(items []string) string {
	return strings.Join(items, listSep)
}

// splitList returns nil for an empty value so that absent and empty lists
// decode identically.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// quoteIfNeeded keeps values that would not survive the line format intact:
// multi-line text, surrounding whitespace, a leading quote, and the comment
// terminator.
func quoteIfNeeded(value string) string {
	if value == "" {
		return value
	}
	needs := strings.ContainsAny(value, "\r\n") ||
		strings.TrimSpace(value) != value ||
		strings.HasPrefix(value, `"`) ||
		strings.Contains(value, "-->")
	if !needs {
		return value
	}
	return strings.ReplaceAll(strconv.Quote(value), "-->", `--\u003e`)
}

func unquote(value string) string {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return value
	}
	if s, err := strconv.Unquote(value); err == nil {
		return s
	}
	return value
}
