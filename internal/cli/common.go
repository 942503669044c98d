package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/wikisync/internal/config"
	"github.com/roach88/wikisync/internal/store"
)

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger builds the run logger: text on stderr, Debug with --verbose.
func newLogger(cmd *cobra.Command, opts *RootOptions) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// loadConfig resolves the configuration and applies the global flags that
// were set explicitly. Command flags are applied by each command.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(config.Sources{
		File:      opts.ConfigFile,
		EnvFile:   opts.EnvFile,
		LookupEnv: opts.LookupEnv,
	})
	if err != nil {
		return config.Config{}, err
	}
	override(cmd, "db", &cfg.Database, opts.Database)
	return cfg, nil
}

// override sets *dst to v when the named flag was given on the command line.
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

// requireDir fails unless path is an existing directory.
func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", path)
	}
	return nil
}

var errDatabaseNotFound = errors.New("database not found")

// openStore opens the database. With mustExist a missing file is an error
// instead of a new empty database.
func openStore(path string, mustExist bool) (*store.Store, error) {
	if mustExist {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errDatabaseNotFound, path)
		}
	}
	return store.Open(path)
}

// openStoreOrFail opens the store, reporting failures through f.
func openStoreOrFail(f *OutputFormatter, path string, mustExist bool) (*store.Store, error) {
	st, err := openStore(path, mustExist)
	if errors.Is(err, errDatabaseNotFound) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, "database not found: "+path, err)
	}
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	f.VerboseLog("Using database %s", path)
	return st, nil
}

func closeStore(st *store.Store, log *slog.Logger) {
	if err := st.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
}
