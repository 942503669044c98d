package importer

import (
	"fmt"
	"strings"
)

// Counts tallies per-item outcomes for one category.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Mutations returns the number of items written or that would be written.
func (c Counts) Mutations() int {
	return c.Created + c.Updated
}

// Summary reports the outcome of an import or sync run. A dry run produces
// the same shape with no mutations applied.
type Summary struct {
	RunID    string `json:"run_id"`
	Mode     string `json:"mode"`
	DryRun   bool   `json:"dry_run"`
	Pages    Counts `json:"pages"`
	Versions Counts `json:"versions"`
	Images   Counts `json:"images"`
}

// Errors returns the total number of failed items.
func (s Summary) Errors() int {
	return s.Pages.Errors + s.Versions.Errors + s.Images.Errors
}

// Mutations returns the total number of created and updated items.
func (s Summary) Mutations() int {
	return s.Pages.Mutations() + s.Versions.Mutations() + s.Images.Mutations()
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Import summary (run %s, mode %s", s.RunID, s.Mode)
	if s.DryRun {
		sb.WriteString(", dry run")
	}
	sb.WriteString(")\n")
	for _, row := range []struct {
		name string
		c    Counts
	}{
		{"pages", s.Pages},
		{"versions", s.Versions},
		{"images", s.Images},
	} {
		fmt.Fprintf(&sb, "  %-9s created %d, updated %d, skipped %d, errors %d\n",
			row.name+":", row.c.Created, row.c.Updated, row.c.Skipped, row.c.Errors)
	}
	return strings.TrimRight(sb.String(), "\n")
}
