package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/wikisync/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
	APIKey string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wiki JSON API",
		Long: `Serve pages and images from the database over HTTP. The API is what
resolve-links talks to with --base-url, and /api/images/<id> is the target of
every canonical image link.

Example:
  wikisync serve --db wiki.db --listen 127.0.0.1:8080 --api-key $KEY`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "require this bearer key")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	log := newLogger(cmd, opts.RootOptions)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	override(cmd, "listen", &cfg.ListenAddr, opts.Listen)
	override(cmd, "api-key", &cfg.APIKey, opts.APIKey)

	st, err := openStoreOrFail(formatter, cfg.Database, false)
	if err != nil {
		return err
	}
	defer closeStore(st, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.APIKey == "" {
		log.Warn("serving without an api key")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving wiki API on %s. Press Ctrl-C to stop.\n", cfg.ListenAddr)

	srv := server.New(st, server.Options{APIKey: cfg.APIKey, Logger: log})
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRun, "server error", err)
	}
	log.Info("server stopped gracefully")
	return nil
}
