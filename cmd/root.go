package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/config"
	"github.com/illarion/notelock/internal/keys"
	"github.com/illarion/notelock/internal/logging"
	"github.com/illarion/notelock/internal/prompt"
	"github.com/illarion/notelock/internal/storage"
)

// app holds the collaborators shared by every command. The store is opened
// on demand so that credential commands work without a database.
type app struct {
	configFile string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
	keys   *keys.Manager
	store  *storage.Store
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	a.logger, err = logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.keys = keys.New(cfg.Keyring.Service, cfg.Keyring.Account, a.logger)
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

// openStore opens the notes database, creating the data directory if needed
func (a *app) openStore() (*storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	path := a.cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(path, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("opened notes database", zap.String("path", path))
	a.store = store
	return store, nil
}

// closeStore closes the database opened by openStore. Commands defer it
// because cobra skips post-run hooks when a command fails.
func (a *app) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close notes database", zap.Error(err))
	}
	a.store = nil
}

// newPrompter reads passcodes from the command's input. Pass lines when the
// command already buffers its input.
func newPrompter(cmd *cobra.Command, lines *bufio.Reader) *prompt.Reader {
	return prompt.New(cmd.InOrStdin(), lines, cmd.ErrOrStderr())
}

// NewRootCmd builds the notelock command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "notelock",
		Short: "Passcode-locked notes",
		Long: `notelock keeps notes and tags in a local database and guards them
with an offline passcode and fingerprint preference stored in the OS keyring.

Use 'notelock session' to drive the lock lifecycle interactively.`,
		SilenceErrors:      true,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/notelock/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newPasscodeCmd(a))
	root.AddCommand(newFingerprintCmd(a))
	root.AddCommand(newTimingCmd(a))
	root.AddCommand(newNotesCmd(a))
	root.AddCommand(newTagsCmd(a))
	root.AddCommand(newCompactCmd(a))
	root.AddCommand(newSessionCmd(a))

	return root
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		HandleError(err)
	}
}
