package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wikisync/internal/exporter"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	IncludeDrafts bool
	AllVersions   bool
	DryRun        bool
	SkipImages    bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Export pages, versions and images to a directory tree",
		Long: `Export every page as an HTML file with embedded metadata, optionally every
version of every page, and every image with a JSON sidecar. A manifest.json
describing the run is written last.

Example:
  wikisync export --db wiki.db ./export
  wikisync export --all-versions --include-drafts ./export
  wikisync export --dry-run ./export`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.IncludeDrafts, "include-drafts", false, "export draft versions (with --all-versions)")
	cmd.Flags().BoolVar(&opts.AllVersions, "all-versions", false, "export every version of every page")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log what would be exported without writing")
	cmd.Flags().BoolVar(&opts.SkipImages, "skip-images", false, "do not export images")

	return cmd
}

func runExport(opts *ExportOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	log := newLogger(cmd, opts.RootOptions)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if opts.IncludeDrafts && !opts.AllVersions {
		log.Warn("--include-drafts has no effect without --all-versions")
	}

	st, err := openStoreOrFail(formatter, cfg.Database, true)
	if err != nil {
		return err
	}
	defer closeStore(st, log)

	exp := exporter.New(st, exporter.Options{
		IncludeDrafts: opts.IncludeDrafts,
		AllVersions:   opts.AllVersions,
		DryRun:        opts.DryRun,
		SkipImages:    opts.SkipImages,
		Logger:        log,
		RunIDs:        opts.RunIDs,
		Now:           opts.Now,
	})
	manifest, err := exp.Export(cmd.Context(), dir)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRun, "export failed", err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessWithRun(manifest.RunID, manifest)
	}

	c := manifest.Counts
	verb := "Exported"
	if opts.DryRun {
		verb = "Would export"
	}
	fmt.Fprintf(formatter.Writer, "%s %d page(s), %d version(s), %d image(s) to %s\n",
		verb, c.Pages, c.Versions, c.Images, dir)
	if c.SkippedDrafts > 0 {
		fmt.Fprintf(formatter.Writer, "Skipped %d draft version(s)\n", c.SkippedDrafts)
	}
	if c.Errors > 0 {
		fmt.Fprintf(formatter.Writer, "%d item(s) failed, see log\n", c.Errors)
	}
	fmt.Fprintf(formatter.Writer, "Run %s\n", manifest.RunID)
	return nil
}
