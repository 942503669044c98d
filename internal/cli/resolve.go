package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wikisync/internal/apiclient"
	"github.com/roach88/wikisync/internal/config"
	"github.com/roach88/wikisync/internal/linkresolver"
)

// ResolveOptions holds flags for the resolve-links command.
type ResolveOptions struct {
	*RootOptions
	BaseURL     string
	APIKey      string
	DryRun      bool
	ExcludeTags []string
	ReportPath  string
	RetryDelay  time.Duration
	Timeout     time.Duration
	Author      string

	// Sleep overrides the retry wait (for testing).
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewResolveLinksCommand creates the resolve-links command.
func NewResolveLinksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve-links",
		Short: "Rewrite image references in pages to canonical links",
		Long: `Rewrite every image reference in page content (src/href attributes,
markdown-style links, bare filenames and filename-based store paths) to the
canonical /api/images/<id> link. References to images that do not exist are
reported and left alone.

With --base-url the pages are read and written through the wiki API;
otherwise the database given by --db is used directly.

Example:
  wikisync resolve-links --base-url https://wiki.example.com --api-key $KEY
  wikisync resolve-links --db wiki.db --dry-run --report report.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolveLinks(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "wiki API base URL")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "wiki API key")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report rewrites without saving pages")
	cmd.Flags().StringSliceVar(&opts.ExcludeTags, "exclude-tags", nil, "skip pages with any of these tags")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "write a JSON audit report to this file")
	cmd.Flags().DurationVar(&opts.RetryDelay, "retry-delay", linkresolver.DefaultRetryDelay, "pause before retrying a transient failure")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", config.DefaultAPITimeout, "limit for each wiki API request")
	cmd.Flags().StringVar(&opts.Author, "author", "", "edited_by for rewritten pages")

	return cmd
}

func runResolveLinks(opts *ResolveOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	log := newLogger(cmd, opts.RootOptions)
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	override(cmd, "base-url", &cfg.BaseURL, opts.BaseURL)
	override(cmd, "api-key", &cfg.APIKey, opts.APIKey)
	override(cmd, "exclude-tags", &cfg.ExcludeTags, opts.ExcludeTags)
	override(cmd, "report", &cfg.ReportPath, opts.ReportPath)
	override(cmd, "retry-delay", &cfg.RetryDelay, opts.RetryDelay)
	override(cmd, "timeout", &cfg.APITimeout, opts.Timeout)
	override(cmd, "author", &cfg.Author, opts.Author)

	var backend linkresolver.Backend
	if cfg.BaseURL != "" {
		client, err := apiclient.New(cfg.BaseURL, cfg.APIKey,
			apiclient.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid base url", err)
		}
		if err := client.Health(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeAPI, "api health check failed: "+client.BaseURL(), err)
		}
		formatter.VerboseLog("Using API %s", client.BaseURL())
		backend = client
	} else {
		st, err := openStoreOrFail(formatter, cfg.Database, true)
		if err != nil {
			return err
		}
		defer closeStore(st, log)
		backend = linkresolver.NewStoreBackend(st)
	}

	resolver := linkresolver.New(backend, linkresolver.Options{
		DryRun:      opts.DryRun,
		ExcludeTags: cfg.ExcludeTags,
		RetryDelay:  cfg.RetryDelay,
		Author:      cfg.Author,
		Sleep:       opts.Sleep,
		Logger:      log,
		RunIDs:      opts.RunIDs,
		Now:         opts.Now,
	})
	report, err := resolver.Run(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRun, "link resolution failed", err)
	}

	if cfg.ReportPath != "" {
		if err := report.WriteFile(cfg.ReportPath); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeReport, "failed to write report", err)
		}
		formatter.VerboseLog("Wrote report to %s", cfg.ReportPath)
	}
	return formatter.SuccessWithRun(report.RunID, report)
}
