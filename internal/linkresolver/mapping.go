package linkresolver

import (
	"path"
	"sort"
	"strconv"

	"github.com/roach88/wikisync/internal/wiki"
)

// CanonicalPrefix is the store path every resolved image link points into.
const CanonicalPrefix = "/api/images/"

// CanonicalLink returns the identifier-based link for an image.
func CanonicalLink(id int64) string {
	return CanonicalPrefix + strconv.FormatInt(id, 10)
}

// Mapping looks images up by filename and by identifier. It is built once per
// run and only read afterwards.
type Mapping struct {
	byName map[string]wiki.Image
	byID   map[int64]wiki.Image

	// ambiguous lists filenames shared by several images, with every
	// candidate ID in creation order.
	ambiguous map[string][]int64
}

// BuildMapping indexes images by their full stored filename, their bare
// filename, the canonical "store-path/filename" form and their identifier.
// When several images share a filename the most recently created one wins.
func BuildMapping(images []wiki.Image) *Mapping {
	sorted := make([]wiki.Image, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	m := &Mapping{
		byName:    make(map[string]wiki.Image),
		byID:      make(map[int64]wiki.Image),
		ambiguous: make(map[string][]int64),
	}
	seen := make(map[string][]int64)
	for _, img := range sorted {
		m.byID[img.ID] = img
		if img.Filename == "" {
			continue
		}
		bare := path.Base(img.Filename)
		seen[bare] = append(seen[bare], img.ID)
		for _, key := range keysFor(img.Filename) {
			m.byName[key] = img
		}
	}
	for name, ids := range seen {
		if len(ids) > 1 {
			m.ambiguous[name] = ids
		}
	}
	return m
}

// keysFor lists the lookup keys of a stored filename. A name made only of
// digits gets no canonical-path key, since "/api/images/<digits>" always
// means an identifier.
func keysFor(filename string) []string {
	bare := path.Base(filename)
	keys := []string{filename}
	if !isDigits(filename) {
		keys = append(keys, CanonicalPrefix+filename)
	}
	if bare != filename {
		keys = append(keys, bare)
		if !isDigits(bare) {
			keys = append(keys, CanonicalPrefix+bare)
		}
	}
	return keys
}

// Lookup finds an image by any of its filename keys.
func (m *Mapping) Lookup(name string) (wiki.Image, bool) {
	img, ok := m.byName[name]
	return img, ok
}

// HasID reports whether an image with the identifier exists.
func (m *Mapping) HasID(id int64) bool {
	_, ok := m.byID[id]
	return ok
}

// Len returns the number of images indexed.
func (m *Mapping) Len() int {
	return len(m.byID)
}

// Entries lists one entry per image, ordered by ID.
func (m *Mapping) Entries() []MappingEntry {
	out := make([]MappingEntry, 0, len(m.byID))
	for _, img := range m.byID {
		out = append(out, MappingEntry{ID: img.ID, Filename: img.Filename, Link: CanonicalLink(img.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ambiguities lists filenames shared by several images, ordered by filename.
func (m *Mapping) Ambiguities() []Ambiguity {
	out := make([]Ambiguity, 0, len(m.ambiguous))
	for name, ids := range m.ambiguous {
		out = append(out, Ambiguity{Filename: name, IDs: ids, Chosen: ids[len(ids)-1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}
