package linkresolver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Page outcomes recorded in the report.
const (
	PageUpdated     = "updated"
	PageWouldUpdate = "would_update"
	PageUnchanged   = "unchanged"
	PageFailed      = "failed"
	PageExcluded    = "excluded"
)

// MappingEntry is one image in the filename mapping.
type MappingEntry struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Link     string `json:"link"`
}

// Ambiguity is a filename shared by several images. Chosen is the image
// references to that filename resolve to.
type Ambiguity struct {
	Filename string  `json:"filename"`
	IDs      []int64 `json:"ids"`
	Chosen   int64   `json:"chosen"`
}

// PageReport records what happened to one page.
type PageReport struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Before   []string  `json:"before"`
	After    []string  `json:"after"`
	Rewrites []Rewrite `json:"rewrites,omitempty"`
	Invalid  []string  `json:"invalid,omitempty"`
	Error    string    `json:"error,omitempty"`

	// ExcludedBy is the tag that kept an excluded page out of the run.
	ExcludedBy string `json:"excluded_by,omitempty"`
}

// Counts aggregates a run.
type Counts struct {
	Images              int `json:"images"`
	PagesScanned        int `json:"pages_scanned"`
	PagesUpdated        int `json:"pages_updated"`
	PagesUnchanged      int `json:"pages_unchanged"`
	PagesFailed         int `json:"pages_failed"`
	PagesExcluded       int `json:"pages_excluded"`
	ReferencesRewritten int `json:"references_rewritten"`
	InvalidReferences   int `json:"invalid_references"`
}

// Report is the audit record of one resolver run. Pages lists every page
// that was rewritten, failed, excluded by tag or carries invalid references.
type Report struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	DryRun      bool           `json:"dry_run"`
	Counts      Counts         `json:"counts"`
	Mappings    []MappingEntry `json:"mappings"`
	Ambiguous   []Ambiguity    `json:"ambiguous"`
	Pages       []PageReport   `json:"pages"`
}

// Encode writes the report as indented JSON.
func (r *Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteFile writes the report to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (r *Report) String() string {
	c := r.Counts
	var sb strings.Builder
	fmt.Fprintf(&sb, "Link resolution (run %s", r.RunID)
	if r.DryRun {
		sb.WriteString(", dry run")
	}
	sb.WriteString(")\n")
	fmt.Fprintf(&sb, "  images:     %d (%d ambiguous filenames)\n", c.Images, len(r.Ambiguous))
	fmt.Fprintf(&sb, "  pages:      scanned %d, updated %d, unchanged %d, failed %d, excluded %d\n",
		c.PagesScanned, c.PagesUpdated, c.PagesUnchanged, c.PagesFailed, c.PagesExcluded)
	fmt.Fprintf(&sb, "  references: rewritten %d, invalid %d", c.ReferencesRewritten, c.InvalidReferences)
	return sb.String()
}
