package cli

import (
	"fmt"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// NewCheckCmd returns the `check` cobra command. It exits non-zero when
// the index files disagree.
func NewCheckCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "verify the index files agree with each other",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, deps, false, func(idx *repository.Index) error {
				report, err := idx.Check(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report.PendingJournal {
					fmt.Fprintln(out, "pending journal: an interrupted change is replayed on the next writable open")
				}
				for _, p := range report.Problems {
					fmt.Fprintln(out, p)
				}
				if !report.OK() {
					return fmt.Errorf("index at %s is inconsistent, run reindex: %w", idx.Root(), repository.ErrInvalidState)
				}
				fmt.Fprintf(out, "ok: %d resources, %d revisions\n", report.Resources, report.Revisions)
				return nil
			})
		},
	}
}

// NewReindexCmd returns the `reindex` cobra command.
func NewReindexCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the id and path indexes from the uri index",
		Long: `Regenerate the id and path indexes from the uri index, repair missing or
stray version and language records and stamp every file with the current
format version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, deps, true, func(idx *repository.Index) error {
				if err := idx.Rebuild(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d resources\n", idx.Size())
				return nil
			})
		},
	}
}
