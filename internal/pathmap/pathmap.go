// Package pathmap maps logical wiki paths to export-tree file paths and back.
//
// Export is exact: the directory chain comes from the logical path and the
// file name from the sanitized title. Import is a best-effort inverse used only
// when a file carries no path metadata.
package pathmap

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// Separator splits logical page paths.
	Separator = "/"

	// Extension is appended to every page and version file.
	Extension = ".html"

	// VersionsDir holds version files beneath a page's directory.
	VersionsDir = "versions"

	// ImagesDir holds image payloads and sidecars at the export root.
	ImagesDir = "images"

	// SidecarExtension is appended to an image filename for its metadata file.
	SidecarExtension = ".meta"

	// versionSuffix separates a sanitized title from its version number.
	versionSuffix = "_v"

	maxNameBytes = 200
	fallbackName = "untitled"
)

var (
	dashRuns        = regexp.MustCompile(`-{2,}`)
	versionSuffixRe = regexp.MustCompile(`_v\d+$`)

	reservedNames = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}
)

// Sanitize turns a title or path segment into a file name that is valid on
// Linux, macOS and Windows. Unsafe characters and whitespace runs become a
// single dash, repeated dashes collapse, and leading or trailing dashes and dots
// are trimmed. The result is never empty.
func Sanitize(name string) string {
	name = norm.NFC.String(name)

	var sb strings.Builder
	for _, r := range name {
		if isUnsafe(r) || unicode.IsSpace(r) {
			sb.WriteByte('-')
			continue
		}
		sb.WriteRune(r)
	}

	out := dashRuns.ReplaceAllString(sb.String(), "-")
	out = strings.Trim(out, "-.")
	out = truncate(out, maxNameBytes)
	out = strings.TrimRight(out, "-.")

	if out == "" {
		return fallbackName
	}
	if reservedNames[strings.ToUpper(out)] {
		out += "-page"
	}
	return out
}

func isUnsafe(r rune) bool {
	switch r {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		return true
	}
	return r < 0x20 || r == 0x7f
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Segments splits a logical path into its non-empty segments.
func Segments(logicalPath string) []string {
	var out []string
	for _, seg := range strings.Split(logicalPath, Separator) {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// PageDir returns the slash-separated directory of a page's file relative to
// the export root: every segment of the logical path except the last.
func PageDir(logicalPath string) string {
	segs := Segments(logicalPath)
	if len(segs) <= 1 {
		return ""
	}
	dirs := make([]string, len(segs)-1)
	for i, seg := range segs[:len(segs)-1] {
		dirs[i] = escapeDir(Sanitize(seg))
	}
	return strings.Join(dirs, "/")
}

// escapeDir keeps page directories out of the names the export tree reserves
// for itself: a segment that is "images" or "versions" (in any case, after
// any number of leading underscores) gains one more leading underscore.
func escapeDir(seg string) string {
	if isReservedDir(seg) {
		return "_" + seg
	}
	return seg
}

// unescapeDir reverses escapeDir.
func unescapeDir(seg string) string {
	if strings.HasPrefix(seg, "_") && isReservedDir(seg) {
		return seg[1:]
	}
	return seg
}

func isReservedDir(seg string) bool {
	bare := strings.TrimLeft(seg, "_")
	return strings.EqualFold(bare, ImagesDir) || strings.EqualFold(bare, VersionsDir)
}

// BaseName returns the file stem for a page: the sanitized title, or the last
// path segment when the title is empty.
func BaseName(logicalPath, title string) string {
	if strings.TrimSpace(title) == "" {
		segs := Segments(logicalPath)
		if len(segs) > 0 {
			title = segs[len(segs)-1]
		}
	}
	return Sanitize(title)
}

// PageFile returns the slash-separated export path of a page file.
func PageFile(logicalPath, title string) string {
	return path.Join(PageDir(logicalPath), BaseName(logicalPath, title)+Extension)
}

// VersionFile returns the slash-separated export path of a version file.
func VersionFile(logicalPath, title string, version int) string {
	name := fmt.Sprintf("%s%s%d%s", BaseName(logicalPath, title), versionSuffix, version, Extension)
	return path.Join(PageDir(logicalPath), VersionsDir, name)
}

// WithSuffix inserts suffix before the extension of a slash-separated file
// path. Used to disambiguate two pages that sanitize to the same file.
func WithSuffix(filePath, suffix string) string {
	ext := path.Ext(filePath)
	stem := strings.TrimSuffix(filePath, ext)
	if versionSuffixRe.MatchString(stem) {
		loc := versionSuffixRe.FindStringIndex(stem)
		return stem[:loc[0]] + "-" + suffix + stem[loc[0]:] + ext
	}
	return stem + "-" + suffix + ext
}

// ImageFile returns the slash-separated export path of an image payload.
func ImageFile(filename string) string {
	return path.Join(ImagesDir, Sanitize(path.Base(filename)))
}

// ImageSidecar returns the export path of an image's metadata sidecar.
func ImageSidecar(filename string) string {
	return ImageFile(filename) + SidecarExtension
}

// IsVersionFile reports whether a slash-separated relative path lies in a
// versions directory.
func IsVersionFile(relPath string) bool {
	dir := path.Dir(relPath)
	return path.Base(dir) == VersionsDir
}

// DerivePath reconstructs a logical path from a file's position in the export
// tree. The "versions" segment and any version-number suffix are stripped and
// escaped directory names are restored.
// The last segment is a sanitized title rather than the original slug, so the
// result only approximates the exported page's path.
func DerivePath(relPath string) string {
	relPath = strings.TrimSuffix(relPath, path.Ext(relPath))

	parts := strings.Split(relPath, "/")
	var segs []string
	for i, seg := range parts {
		if seg == "" || seg == "." || seg == VersionsDir {
			continue
		}
		if i < len(parts)-1 {
			seg = unescapeDir(seg)
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return Separator
	}
	segs[len(segs)-1] = versionSuffixRe.ReplaceAllString(segs[len(segs)-1], "")
	return Separator + strings.Join(segs, Separator)
}

// VersionFromFile extracts the version number suffixed into a version file
// name. It returns 0 when the name carries no suffix.
func VersionFromFile(relPath string) int {
	stem := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
	loc := versionSuffixRe.FindStringIndex(stem)
	if loc == nil {
		return 0
	}
	n, err := strconv.Atoi(stem[loc[0]+len(versionSuffix):])
	if err != nil {
		return 0
	}
	return n
}
