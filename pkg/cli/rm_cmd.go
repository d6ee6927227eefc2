package cli

import (
	"fmt"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// NewRemoveCmd returns the `rm` cobra command.
//
// Usage examples:
//
//	repodex rm /docs/intro
//	repodex rm --id 3f0c... --version work
func NewRemoveCmd(deps *Deps) *cobra.Command {
	var flags uriFlags

	cmd := &cobra.Command{
		Use:     "rm [PATH]",
		Aliases: []string{"remove"},
		Short:   "remove a version of a resource",
		Long: `Remove one version of a resource. Removing the last version removes the
resource from every index file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := flags.uri(args)
			if err != nil {
				return err
			}
			return withIndex(cmd, deps, true, func(idx *repository.Index) error {
				ok, err := idx.Delete(cmd.Context(), uri)
				if err != nil {
					return err
				}
				if !ok {
					return &repository.NotFoundError{URI: uri}
				}
				return nil
			})
		},
	}

	bindURIFlags(cmd, &flags)
	return cmd
}

// NewMoveCmd returns the `mv` cobra command.
func NewMoveCmd(deps *Deps) *cobra.Command {
	var flags uriFlags

	cmd := &cobra.Command{
		Use:     "mv [PATH] NEW_PATH",
		Aliases: []string{"move"},
		Short:   "move the live version of a resource",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[len(args)-1]
			uri, err := flags.uri(args[:len(args)-1])
			if err != nil {
				return err
			}
			return withIndex(cmd, deps, true, func(idx *repository.Index) error {
				if err := idx.Move(cmd.Context(), uri, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", uri, target)
				return nil
			})
		},
	}

	bindURIFlags(cmd, &flags)
	return cmd
}
