package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jlrickert/repodex/pkg/log"
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// RootEnv names the environment variable consulted when --root is not
// given.
const RootEnv = "REPODEX_ROOT"

// Deps is shared by every command of one invocation.
type Deps struct {
	Root     string
	ReadOnly bool

	// DiscardJournal drops a pending journal that fails its checksum.
	DiscardJournal bool

	LogFile  string
	LogLevel string
	LogJSON  bool

	// Logger is used as is when set, which lets tests capture output.
	Logger *slog.Logger

	// Search is attached to every index the commands open.
	Search repository.SearchIndex

	Shutdown func()
}

func NewRootCmd(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = &Deps{}
	}
	if deps.Shutdown == nil {
		deps.Shutdown = func() {}
	}

	cmd := &cobra.Command{
		Use:           "repodex",
		Short:         "maintain the structural index of a content repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if deps.Root == "" {
				deps.Root = os.Getenv(RootEnv)
			}
			if deps.Root == "" {
				deps.Root = "."
			}
			root, err := filepath.Abs(deps.Root)
			if err != nil {
				return err
			}
			deps.Root = root

			if deps.Logger == nil {
				lg, err := newLogger(cmd, deps)
				if err != nil {
					return err
				}
				deps.Logger = lg
			}

			cmd.SetContext(log.ContextWithLogger(ctx, deps.Logger))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&deps.Root, "root", "r", "", "repository index root (default $"+RootEnv+" or the working directory)")
	cmd.PersistentFlags().BoolVar(&deps.ReadOnly, "read-only", false, "refuse to modify the index")
	cmd.PersistentFlags().BoolVar(&deps.DiscardJournal, "discard-journal", false, "drop a corrupt journal instead of refusing to open")
	cmd.PersistentFlags().StringVar(&deps.LogFile, "log-file", "", "write logs to file (default stderr)")
	cmd.PersistentFlags().StringVar(&deps.LogLevel, "log-level", "warn", "minimum log level")
	cmd.PersistentFlags().BoolVar(&deps.LogJSON, "log-json", false, "output logs as JSON")

	cmd.AddCommand(
		NewInitCmd(deps),
		NewAddCmd(deps),
		NewUpdateCmd(deps),
		NewRemoveCmd(deps),
		NewMoveCmd(deps),
		NewInfoCmd(deps),
		NewListCmd(deps),
		NewStatsCmd(deps),
		NewCheckCmd(deps),
		NewReindexCmd(deps),
		NewLangCmd(deps),
	)

	return cmd
}

func newLogger(cmd *cobra.Command, deps *Deps) (*slog.Logger, error) {
	level, err := log.ParseLevel(deps.LogLevel)
	if err != nil {
		return nil, err
	}

	var out io.Writer = cmd.ErrOrStderr()
	if deps.LogFile != "" {
		f, err := os.OpenFile(deps.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		prev := deps.Shutdown
		deps.Shutdown = func() {
			prev()
			f.Close()
		}
		out = f
	}

	return log.NewLogger(log.LoggerConfig{
		Out:     out,
		Level:   level,
		JSON:    deps.LogJSON,
		Version: Version,
	}), nil
}

// openIndex opens the index at the resolved root. Commands that only read
// open it read only, which also works while another process owns it.
func openIndex(cmd *cobra.Command, deps *Deps, writable bool) (*repository.Index, error) {
	var opts []repository.Option
	if !writable || deps.ReadOnly {
		opts = append(opts, repository.WithReadOnly())
	}
	if deps.DiscardJournal {
		opts = append(opts, repository.WithDiscardJournal())
	}
	if deps.Search != nil {
		opts = append(opts, repository.WithSearch(deps.Search))
	}
	idx, err := repository.Open(cmd.Context(), deps.Root, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", deps.Root, err)
	}
	return idx, nil
}

// withIndex runs fn against an opened index and closes it afterwards.
func withIndex(cmd *cobra.Command, deps *Deps, writable bool, fn func(*repository.Index) error) (err error) {
	idx, err := openIndex(cmd, deps, writable)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := idx.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(idx)
}
