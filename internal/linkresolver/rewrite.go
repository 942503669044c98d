package linkresolver

import (
	"net/url"
	"strconv"
	"strings"
)

// Status is the outcome of resolving one reference.
type Status int

const (
	StatusUnresolved Status = iota // no image matches; left alone
	StatusResolved                 // rewritten to a canonical link
	StatusCanonical                // already the correct canonical link
	StatusInvalid                  // canonical link to an image that does not exist
)

// Resolve maps a reference to its canonical link. Resolution order: exact
// filename key, then the trailing filename of a canonical store path, then
// the identifier of a canonical id link. A canonical id link is never
// rewritten; a missing identifier is reported as invalid, not guessed.
func (m *Mapping) Resolve(ref string) (string, Status) {
	if img, ok := m.Lookup(ref); ok {
		return m.linkFor(ref, img.ID)
	}

	i := strings.LastIndex(ref, CanonicalPrefix)
	if i < 0 {
		return ref, StatusUnresolved
	}
	tail := ref[i+len(CanonicalPrefix):]
	if j := strings.IndexAny(tail, "?#"); j >= 0 {
		tail = tail[:j]
	}
	if unescaped, err := url.PathUnescape(tail); err == nil {
		tail = unescaped
	}
	if tail == "" {
		return ref, StatusUnresolved
	}

	if isDigits(tail) {
		id, err := strconv.ParseInt(tail, 10, 64)
		if err == nil && m.HasID(id) {
			return ref, StatusCanonical
		}
		return ref, StatusInvalid
	}
	if img, ok := m.Lookup(tail); ok {
		return m.linkFor(ref, img.ID)
	}
	return ref, StatusUnresolved
}

func (m *Mapping) linkFor(ref string, id int64) (string, Status) {
	link := CanonicalLink(id)
	if link == ref {
		return ref, StatusCanonical
	}
	return link, StatusResolved
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Rewrite is one distinct reference replaced in a page.
type Rewrite struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Kind  Kind   `json:"kind"`
	Count int    `json:"count"`
}

// Result is the outcome of rewriting one content string.
type Result struct {
	Content  string
	Rewrites []Rewrite
	Invalid  []string
	Before   []string
	After    []string
}

// Changed reports whether the content was modified.
func (r Result) Changed() bool {
	return len(r.Rewrites) > 0
}

type edit struct {
	start, end int
	to         string
}

// RewriteContent replaces every resolvable image reference in content with
// its canonical link. Each replacement covers exactly the reference's own
// byte range, so adjacent text is never touched, and a range already
// claimed by an earlier or longer occurrence is not rewritten twice.
// Rewriting the output again yields no changes.
func RewriteContent(content string, m *Mapping) Result {
	occs := Extract(content)
	res := Result{Before: UniqueRefs(occs)}

	type resolution struct {
		to     string
		status Status
	}
	cache := make(map[string]resolution)
	invalid := make(map[string]bool)
	byFrom := make(map[string]int)

	var edits []edit
	covered := 0
	for _, o := range occs {
		r, ok := cache[o.Ref]
		if !ok {
			to, status := m.Resolve(o.Ref)
			r = resolution{to, status}
			cache[o.Ref] = r
		}
		if r.status == StatusInvalid && !invalid[o.Ref] {
			invalid[o.Ref] = true
			res.Invalid = append(res.Invalid, o.Ref)
		}
		if o.Start < covered {
			continue
		}
		if r.status != StatusResolved {
			// An unresolved link target is kept whole: a name inside it,
			// such as a query parameter, is not a reference of its own.
			if o.Kind == KindAttribute || o.Kind == KindBracketLink {
				covered = o.End
			}
			continue
		}
		edits = append(edits, edit{o.Start, o.End, r.to})
		covered = o.End

		if i, seen := byFrom[o.Ref]; seen {
			res.Rewrites[i].Count++
		} else {
			byFrom[o.Ref] = len(res.Rewrites)
			res.Rewrites = append(res.Rewrites, Rewrite{From: o.Ref, To: r.to, Kind: o.Kind, Count: 1})
		}
	}

	if len(edits) == 0 {
		res.Content = content
		res.After = res.Before
		return res
	}

	var sb strings.Builder
	sb.Grow(len(content))
	last := 0
	for _, e := range edits {
		sb.WriteString(content[last:e.start])
		sb.WriteString(e.to)
		last = e.end
	}
	sb.WriteString(content[last:])
	res.Content = sb.String()
	res.After = UniqueRefs(Extract(res.Content))
	return res
}
