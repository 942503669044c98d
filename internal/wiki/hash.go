package wiki

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// DomainPageContent is the domain prefix for page content hashes.
// The version suffix allows the hashed field set to change later.
const DomainPageContent = "wikisync/page-content/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the change-detection hash of a page snapshot.
//
// Only the fields a reader can observe are hashed: title, content and the two
// group lists. Group order is not significant. Timestamps, authors and IDs are
// excluded so the same snapshot hashes identically in every environment.
func ContentHash(title, content string, viewGroups, editGroups []string) (string, error) {
	obj := map[string]any{
		"title":       title,
		"content":     content,
		"view_groups": sortedCopy(viewGroups),
		"edit_groups": sortedCopy(editGroups),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hashWithDomain(DomainPageContent, canonical), nil
}

// PageHash is ContentHash over a live page.
func PageHash(p Page) (string, error) {
	return ContentHash(p.Title, p.Content, p.ViewGroups, p.EditGroups)
}

// VersionHash is ContentHash over a version snapshot.
func VersionHash(v PageVersion) (string, error) {
	return ContentHash(v.Title, v.Content, v.ViewGroups, v.EditGroups)
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	slices.Sort(out)
	return out
}
