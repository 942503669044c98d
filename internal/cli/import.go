package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/wikisync/internal/importer"
)

// ImportOptions holds flags for the import and sync commands.
type ImportOptions struct {
	*RootOptions
	UpdateExisting bool
	SkipExisting   bool
	ImportVersions bool
	DryRun         bool
	Author         string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import an exported directory tree",
		Long: `Import pages, images and (with --import-versions) page versions from a
directory tree produced by export. Existing items are skipped unless
--update-existing is given. Per-item failures are logged and counted; they
do not stop the run.

Example:
  wikisync import --db wiki.db ./export
  wikisync import --update-existing --import-versions ./export`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd, false)
		},
	}

	addPolicyFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.ImportVersions, "import-versions", false, "also import version files")

	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <dir>",
		Short: "Smart-sync an exported directory tree",
		Long: `Synchronise a directory tree into the database by content hash. Unchanged
pages are left alone, version files are imported first-writer-wins, and each
page whose content no longer matches its latest version gets exactly one new
version. Running sync twice on the same tree changes nothing the second time.

Example:
  wikisync sync --db wiki.db ./export
  wikisync sync --dry-run --format json ./export`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd, true)
		},
	}

	addPolicyFlags(cmd, opts)

	return cmd
}

func addPolicyFlags(cmd *cobra.Command, opts *ImportOptions) {
	cmd.Flags().BoolVar(&opts.UpdateExisting, "update-existing", false, "overwrite items that already exist")
	cmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing", false, "leave existing items untouched (default)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().StringVar(&opts.Author, "author", "", "edited_by for versions created by the run")
	cmd.MarkFlagsMutuallyExclusive("update-existing", "skip-existing")
}

func runImport(opts *ImportOptions, dir string, cmd *cobra.Command, smart bool) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	log := newLogger(cmd, opts.RootOptions)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	override(cmd, "author", &cfg.Author, opts.Author)

	if err := requireDir(dir); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "source directory not found: "+dir, err)
	}

	st, err := openStoreOrFail(formatter, cfg.Database, false)
	if err != nil {
		return err
	}
	defer closeStore(st, log)

	policy := importer.SkipExisting
	if opts.UpdateExisting {
		policy = importer.UpdateExisting
	}
	im := importer.New(st, importer.Options{
		Policy:         policy,
		ImportVersions: opts.ImportVersions,
		DryRun:         opts.DryRun,
		Author:         cfg.Author,
		Logger:         log,
		RunIDs:         opts.RunIDs,
		Now:            opts.Now,
	})

	run := im.Import
	if smart {
		run = im.Sync
	}
	summary, err := run(cmd.Context(), dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to read source directory", err)
	}
	return formatter.SuccessWithRun(summary.RunID, summary)
}
