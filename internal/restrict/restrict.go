// Package restrict handles restricted blocks embedded in page content.
//
// A restricted block is any element carrying data-restricted-block, with its
// own view and edit group lists:
//
//	<div data-restricted-block data-view-groups="hr, admin" data-edit-groups="admin" data-title="Salaries">…</div>
//
// Viewers outside the view groups see a placeholder instead. The placeholder
// keeps the block's attributes and a base64 copy of the original element so
// that an unprivileged edit-and-save cannot destroy it. ResolveForSave must run
// on every content string before it is persisted.
//
// Both directions locate elements with an HTML tokenizer and splice byte ranges;
// everything outside the affected elements is left byte-for-byte unchanged.
package restrict

import (
	"encoding/base64"
	"html"
	"strings"
)

// Markup attributes.
const (
	AttrBlock       = "data-restricted-block"
	AttrPlaceholder = "data-restricted-placeholder"
	AttrViewGroups  = "data-view-groups"
	AttrEditGroups  = "data-edit-groups"
	AttrTitle       = "data-title"
	AttrOriginal    = "data-original-content"
)

const placeholderNotice = "This section is restricted."

// Block describes a restricted block found in content.
type Block struct {
	Tag        string
	Title      string
	ViewGroups []string
	EditGroups []string
}

// CanView reports whether a viewer in groups may see the block. A block with no
// view groups is visible to everyone.
func (b Block) CanView(groups []string) bool {
	if len(b.ViewGroups) == 0 {
		return true
	}
	for _, want := range b.ViewGroups {
		for _, have := range groups {
			if want == have {
				return true
			}
		}
	}
	return false
}

// ResolveForSave replaces every placeholder with the restricted block it stands
// for. Content without placeholders is returned unchanged. A placeholder whose
// original copy cannot be decoded is left in place rather than dropped.
func ResolveForSave(content string) string {
	spans := findElements(content, AttrPlaceholder)
	if len(spans) == 0 {
		return content
	}

	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		sb.WriteString(content[last:sp.start])
		if restored, ok := restore(sp); ok {
			sb.WriteString(restored)
		} else {
			sb.WriteString(content[sp.start:sp.end])
		}
		last = sp.end
	}
	sb.WriteString(content[last:])
	return sb.String()
}

// HasPlaceholders reports whether content contains at least one placeholder.
func HasPlaceholders(content string) bool {
	return len(findElements(content, AttrPlaceholder)) > 0
}

func restore(sp span) (string, bool) {
	encoded, ok := sp.attrs[AttrOriginal]
	if !ok {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	original := ResolveForSave(string(raw))

	// The original copy normally holds the full element. Older placeholders
	// carry only the inner HTML, so rebuild the block around it.
	if inner := findElements(original, AttrBlock); len(inner) == 1 && inner[0].start == 0 && inner[0].end == len(original) {
		return original, true
	}
	b := blockFromAttrs(sp.tag, sp.attrs)
	return startTag(b, AttrBlock) + original + "</" + b.Tag + ">", true
}

// MaskForViewer replaces every restricted block the viewer cannot see with a
// placeholder. Blocks the viewer can see are kept, and nested blocks inside
// them are masked in turn.
func MaskForViewer(content string, viewerGroups []string) string {
	spans := findElements(content, AttrBlock)
	if len(spans) == 0 {
		return content
	}

	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		sb.WriteString(content[last:sp.start])
		b := blockFromAttrs(sp.tag, sp.attrs)
		if b.CanView(viewerGroups) {
			sb.WriteString(content[sp.start:sp.innerStart])
			sb.WriteString(MaskForViewer(content[sp.innerStart:sp.innerEnd], viewerGroups))
			sb.WriteString(content[sp.innerEnd:sp.end])
		} else {
			sb.WriteString(placeholder(b, content[sp.start:sp.end]))
		}
		last = sp.end
	}
	sb.WriteString(content[last:])
	return sb.String()
}

// Blocks lists the top-level restricted blocks in content.
func Blocks(content string) []Block {
	spans := findElements(content, AttrBlock)
	out := make([]Block, 0, len(spans))
	for _, sp := range spans {
		out = append(out, blockFromAttrs(sp.tag, sp.attrs))
	}
	return out
}

func placeholder(b Block, original string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(startTag(b, AttrPlaceholder), ">"))
	sb.WriteString(` ` + AttrOriginal + `="`)
	sb.WriteString(base64.StdEncoding.EncodeToString([]byte(original)))
	sb.WriteString(`">`)
	sb.WriteString(placeholderNotice)
	sb.WriteString("</" + b.Tag + ">")
	return sb.String()
}

func startTag(b Block, marker string) string {
	var sb strings.Builder
	sb.WriteString("<" + b.Tag + " " + marker)
	writeAttr(&sb, AttrViewGroups, strings.Join(b.ViewGroups, ", "))
	writeAttr(&sb, AttrEditGroups, strings.Join(b.EditGroups, ", "))
	writeAttr(&sb, AttrTitle, b.Title)
	sb.WriteString(">")
	return sb.String()
}

func writeAttr(sb *strings.Builder, key, value string) {
	sb.WriteString(" " + key + `="` + html.EscapeString(value) + `"`)
}

func blockFromAttrs(tag string, attrs map[string]string) Block {
	if tag == "" {
		tag = "div"
	}
	return Block{
		Tag:        tag,
		Title:      attrs[AttrTitle],
		ViewGroups: splitGroups(attrs[AttrViewGroups]),
		EditGroups: splitGroups(attrs[AttrEditGroups]),
	}
}

func splitGroups(value string) []string {
	var out []string
	for _, g := range strings.Split(value, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
