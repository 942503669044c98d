// Package linkresolver rewrites image references in page content to the
// canonical identifier form /api/images/<id>.
//
// Image identifiers are assigned by the target store, so references are
// resolved after import, against the images that actually exist there. A
// run moves through Idle, BuildingMapping, ScanningPages, Rewriting,
// Reporting and Done. Rewriting is idempotent: a second run over its own
// output changes nothing.
package linkresolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/wikisync/internal/apiclient"
	"github.com/roach88/wikisync/internal/wiki"
)

// Defaults for Options.
const (
	DefaultRetryDelay    = 2 * time.Second
	DefaultAuthor        = "link-resolver"
	DefaultChangeSummary = "Resolve image links"
)

// Backend is the store the resolver reads images and pages from and writes
// page updates to. Updating a page is expected to record a new version.
type Backend interface {
	ListImages(ctx context.Context) ([]wiki.Image, error)
	ListPages(ctx context.Context) ([]wiki.PageSummary, error)
	FetchPage(ctx context.Context, id int64) (wiki.Page, error)
	UpdatePage(ctx context.Context, id int64, content, editedBy, summary string) error
}

// State is the phase of a run.
type State int

const (
	StateIdle State = iota
	StateBuildingMapping
	StateScanningPages
	StateRewriting
	StateReporting
	StateDone
)

var stateNames = [...]string{"idle", "building_mapping", "scanning_pages", "rewriting", "reporting", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Options controls a resolver run.
type Options struct {
	DryRun bool

	// ExcludeTags skips pages carrying any of these tags.
	ExcludeTags []string

	// RetryDelay is the pause before the single retry of a transient
	// failure. Zero means DefaultRetryDelay.
	RetryDelay time.Duration

	// Author and ChangeSummary are attached to page updates.
	Author        string
	ChangeSummary string

	// IsTransient classifies errors worth one retry.
	// Nil means apiclient.IsTransient.
	IsTransient func(error) bool

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
	RunIDs wiki.RunIDGenerator
	Now    func() time.Time
}

// Resolver runs link resolution against a Backend.
type Resolver struct {
	backend Backend
	opts    Options
	log     *slog.Logger
	state   State
}

// New creates a Resolver.
func New(backend Backend, opts Options) *Resolver {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Author == "" {
		opts.Author = DefaultAuthor
	}
	if opts.ChangeSummary == "" {
		opts.ChangeSummary = DefaultChangeSummary
	}
	if opts.IsTransient == nil {
		opts.IsTransient = apiclient.IsTransient
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = wiki.UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{backend: backend, opts: opts, log: opts.Logger}
}

// State returns the current phase.
func (r *Resolver) State() State {
	return r.state
}

func (r *Resolver) enter(s State) {
	r.state = s
	r.log.Debug("link resolver state", "state", s.String())
}

// planned is a scanned page awaiting its update.
type planned struct {
	summary wiki.PageSummary
	result  Result
}

// Run resolves links in every page. Failing to list images or pages is fatal;
// failures on single pages are recorded in the report.
func (r *Resolver) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       r.opts.RunIDs.Generate(),
		GeneratedAt: r.opts.Now().UTC(),
		DryRun:      r.opts.DryRun,
		Pages:       []PageReport{},
	}

	r.enter(StateBuildingMapping)
	images, err := r.backend.ListImages(ctx)
	if err != nil {
		r.enter(StateIdle)
		return nil, fmt.Errorf("list images: %w", err)
	}
	mapping := BuildMapping(images)
	report.Mappings = mapping.Entries()
	report.Ambiguous = mapping.Ambiguities()
	report.Counts.Images = mapping.Len()
	for _, a := range report.Ambiguous {
		r.log.Warn("ambiguous image filename, using newest image", "filename", a.Filename, "ids", a.IDs, "chosen", a.Chosen)
	}

	r.enter(StateScanningPages)
	pages, err := r.backend.ListPages(ctx)
	if err != nil {
		r.enter(StateIdle)
		return nil, fmt.Errorf("list pages: %w", err)
	}

	var work []planned
	for _, ps := range pages {
		if tag, ok := r.excluded(ps); ok {
			r.log.Debug("page excluded by tag", "path", ps.Path, "tag", tag)
			report.Counts.PagesExcluded++
			pr := pageReport(ps, PageExcluded, Result{}, nil)
			pr.ExcludedBy = tag
			report.Pages = append(report.Pages, pr)
			continue
		}
		report.Counts.PagesScanned++

		var page wiki.Page
		err := r.withRetry(ctx, "fetch page", ps, func() error {
			var err error
			page, err = r.backend.FetchPage(ctx, ps.ID)
			return err
		})
		if err != nil {
			r.log.Error("fetch page failed", "path", ps.Path, "page_id", ps.ID, "error", err)
			report.Counts.PagesFailed++
			report.Pages = append(report.Pages, pageReport(ps, PageFailed, Result{}, err))
			continue
		}

		res := RewriteContent(page.Content, mapping)
		for _, ref := range res.Invalid {
			r.log.Warn("invalid image reference", "path", ps.Path, "page_id", ps.ID, "ref", ref)
		}
		report.Counts.InvalidReferences += len(res.Invalid)
		if !res.Changed() {
			report.Counts.PagesUnchanged++
			if len(res.Invalid) > 0 {
				report.Pages = append(report.Pages, pageReport(ps, PageUnchanged, res, nil))
			}
			continue
		}
		work = append(work, planned{summary: ps, result: res})
	}

	r.enter(StateRewriting)
	for _, w := range work {
		ps, res := w.summary, w.result
		if r.opts.DryRun {
			r.log.Info("would update page", "path", ps.Path, "page_id", ps.ID, "rewrites", len(res.Rewrites))
			report.Counts.PagesUpdated++
			report.Counts.ReferencesRewritten += countRewrites(res)
			report.Pages = append(report.Pages, pageReport(ps, PageWouldUpdate, res, nil))
			continue
		}

		err := r.withRetry(ctx, "update page", ps, func() error {
			return r.backend.UpdatePage(ctx, ps.ID, res.Content, r.opts.Author, r.opts.ChangeSummary)
		})
		if err != nil {
			r.log.Error("update page failed", "path", ps.Path, "page_id", ps.ID, "error", err)
			report.Counts.PagesFailed++
			report.Pages = append(report.Pages, pageReport(ps, PageFailed, res, err))
			continue
		}
		r.log.Info("updated page", "path", ps.Path, "page_id", ps.ID, "rewrites", len(res.Rewrites))
		report.Counts.PagesUpdated++
		report.Counts.ReferencesRewritten += countRewrites(res)
		report.Pages = append(report.Pages, pageReport(ps, PageUpdated, res, nil))
	}

	r.enter(StateReporting)
	c := report.Counts
	r.log.Info("link resolution complete", "run_id", report.RunID, "dry_run", r.opts.DryRun,
		"scanned", c.PagesScanned, "updated", c.PagesUpdated, "failed", c.PagesFailed,
		"rewritten", c.ReferencesRewritten, "invalid", c.InvalidReferences)

	r.enter(StateDone)
	return report, nil
}

func (r *Resolver) excluded(ps wiki.PageSummary) (string, bool) {
	for _, tag := range ps.Tags {
		if slices.Contains(r.opts.ExcludeTags, tag) {
			return tag, true
		}
	}
	return "", false
}

// withRetry runs fn and retries it once after RetryDelay if the first
// failure is transient. Not-found errors are never retried.
func (r *Resolver) withRetry(ctx context.Context, op string, ps wiki.PageSummary, fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, wiki.ErrNotFound) || !r.opts.IsTransient(err) {
		return err
	}
	r.log.Warn("transient error, retrying once", "op", op, "path", ps.Path, "page_id", ps.ID,
		"delay", r.opts.RetryDelay, "error", err)
	if serr := r.opts.Sleep(ctx, r.opts.RetryDelay); serr != nil {
		return errors.Join(err, serr)
	}
	return fn()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func countRewrites(res Result) int {
	n := 0
	for _, rw := range res.Rewrites {
		n += rw.Count
	}
	return n
}

func pageReport(ps wiki.PageSummary, status string, res Result, err error) PageReport {
	pr := PageReport{
		ID:       ps.ID,
		Path:     ps.Path,
		Title:    ps.Title,
		Status:   status,
		Before:   nonNil(res.Before),
		After:    nonNil(res.After),
		Rewrites: res.Rewrites,
		Invalid:  res.Invalid,
	}
	if err != nil {
		pr.Error = err.Error()
	}
	return pr
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
