package linkresolver

import (
	"regexp"
	"sort"
)

// Kind tags the pattern family that found a reference.
type Kind int

const (
	KindAttribute     Kind = iota // src="…", href="…", data-src="…"
	KindBracketLink               // [alt](target) and ![alt](target)
	KindBareFilename              // name.png in running text
	KindCanonicalPath             // /api/images/name.png
	KindCanonicalID               // /api/images/42
)

var kindNames = [...]string{"attribute", "bracket_link", "bare_filename", "canonical_path", "canonical_id"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText renders the kind by name in reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const imageExt = `(?:png|jpe?g|gif|webp|svg|bmp|ico|tiff?|avif)`

var (
	attributeRe     = regexp.MustCompile(`(?i)\b(?:src|href|data-src)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	bracketLinkRe   = regexp.MustCompile(`!?\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	bareFilenameRe  = regexp.MustCompile(`(?i)[\w.-]+\.` + imageExt)
	canonicalPathRe = regexp.MustCompile(`(?i)/api/images/[\w.%-]+\.` + imageExt)
	canonicalIDRe   = regexp.MustCompile(`/api/images/(\d+)`)
)

// Occurrence is one reference found in content. Start and End delimit the
// reference itself, excluding any surrounding syntax such as quotes.
type Occurrence struct {
	Kind  Kind
	Ref   string
	Start int
	End   int
}

// Extract runs every pattern family over content and returns all
// occurrences ordered by position. Families overlap by design; callers
// deduplicate by reference and by range.
func Extract(content string) []Occurrence {
	var out []Occurrence

	for _, loc := range attributeRe.FindAllStringSubmatchIndex(content, -1) {
		for g := 1; g <= 2; g++ {
			s, e := loc[2*g], loc[2*g+1]
			if s >= 0 && e > s {
				out = append(out, Occurrence{KindAttribute, content[s:e], s, e})
			}
		}
	}
	for _, loc := range bracketLinkRe.FindAllStringSubmatchIndex(content, -1) {
		s, e := loc[2], loc[3]
		out = append(out, Occurrence{KindBracketLink, content[s:e], s, e})
	}
	for _, loc := range bareFilenameRe.FindAllStringIndex(content, -1) {
		s, e := loc[0], loc[1]
		if !bareBoundary(content, s, e) {
			continue
		}
		out = append(out, Occurrence{KindBareFilename, content[s:e], s, e})
	}
	for _, loc := range canonicalPathRe.FindAllStringIndex(content, -1) {
		s, e := loc[0], loc[1]
		if continuesToken(content, e) {
			continue
		}
		out = append(out, Occurrence{KindCanonicalPath, content[s:e], s, e})
	}
	for _, loc := range canonicalIDRe.FindAllStringIndex(content, -1) {
		s, e := loc[0], loc[1]
		if continuesToken(content, e) {
			continue
		}
		out = append(out, Occurrence{KindCanonicalID, content[s:e], s, e})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

// bareBoundary rejects bare names that are part of a path or a longer token.
func bareBoundary(content string, s, e int) bool {
	if s > 0 && (content[s-1] == '/' || content[s-1] == '\\') {
		return false
	}
	return !continuesToken(content, e)
}

// continuesToken reports whether the text at e extends the token ending there.
// A dot only does so when another name character follows it, so sentence
// punctuation still ends a reference.
func continuesToken(content string, e int) bool {
	if e >= len(content) {
		return false
	}
	switch b := content[e]; {
	case b == '/':
		return true
	case b == '.':
		return e+1 < len(content) && isNameByte(content[e+1]) && content[e+1] != '.'
	default:
		return isNameByte(b)
	}
}

func isNameByte(b byte) bool {
	return b == '_' || b == '-' || b == '.' ||
		('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// UniqueRefs returns the deduplicated reference strings of occurrences in
// sorted order.
func UniqueRefs(occs []Occurrence) []string {
	seen := make(map[string]bool, len(occs))
	var out []string
	for _, o := range occs {
		if !seen[o.Ref] {
			seen[o.Ref] = true
			out = append(out, o.Ref)
		}
	}
	sort.Strings(out)
	return out
}
