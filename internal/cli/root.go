// Package cli implements the taskbook command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"taskbook/internal/config"
	"taskbook/internal/models"
	"taskbook/internal/store"
	"taskbook/internal/tasks"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	backend    string
	path       string
	logLevel   string
}

// Execute runs the CLI with the given arguments and returns the exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "taskbook",
		Short:         "A personal task list with tags and due dates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "Storage backend (json or sqlite)")
	cmd.PersistentFlags().StringVar(&flags.path, "path", "", "Path of the task file or database")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(flags),
		newAddCmd(flags),
		newListCmd(flags),
		newEditCmd(flags),
		newDoneCmd(flags, "done", "Mark a task as completed", true),
		newDoneCmd(flags, "undo", "Mark a task as not completed", false),
		newRmCmd(flags),
		newTagsCmd(flags),
		newDueCmd(flags),
		newAgendaCmd(flags),
	)

	return cmd
}

// loadConfig resolves configuration: defaults, then the config file, then the
// environment, then command-line flags.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if flags.backend != "" {
		cfg.Storage.Backend = flags.backend
	}
	if flags.path != "" {
		cfg.Storage.Path = flags.path
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, _ := config.ParseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openStore loads the configuration and opens the task store it selects.
// The caller must Close the returned store.
func openStore(cmd *cobra.Command, flags *globalFlags) (*tasks.Store, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	backend, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	s, err := tasks.New(cmd.Context(), backend, tasks.WithLogger(logger))
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	logger.Debug("storage opened", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	return s, cfg, logger, nil
}

// withStore runs fn against an opened store and closes it afterwards.
func withStore(cmd *cobra.Command, flags *globalFlags, fn func(*tasks.Store) error) error {
	s, _, _, err := openStore(cmd, flags)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func parseIDArg(arg string) (models.TaskID, error) {
	id, err := models.ParseTaskID(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}
