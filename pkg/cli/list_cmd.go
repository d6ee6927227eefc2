package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jlrickert/repodex/pkg/internal"
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// NewListCmd returns the `ls` cobra command.
//
// Usage examples:
//
//	repodex ls
//	repodex ls /docs --depth 1 --version all
func NewListCmd(deps *Deps) *cobra.Command {
	var (
		opts    repository.ListOptions
		version string
		idsOnly bool
	)

	cmd := &cobra.Command{
		Use:     "ls [PATH]",
		Aliases: []string{"list"},
		Short:   "list indexed resources",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Path = args[0]
			}
			opts.Version = repository.AnyVersion
			if !strings.EqualFold(version, "all") {
				v, err := repository.ParseVersion(version)
				if err != nil {
					return err
				}
				opts.Version = v
			}

			return withIndex(cmd, deps, false, func(idx *repository.Index) error {
				uris, err := idx.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if idsOnly {
					for _, uri := range uris {
						fmt.Fprintln(out, uri.ID)
					}
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				if internal.IsTerminal(out) {
					fmt.Fprintln(w, "PATH\tTYPE\tVERSION\tID")
				}
				for _, uri := range uris {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", uri.Path, uri.Type, repository.VersionName(uri.Version), uri.ID)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Depth, "depth", "d", 0, "levels below PATH to list (0 lists all)")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "only list this resource type")
	cmd.Flags().StringVarP(&version, "version", "V", "all", `version to list: "all", "live", "work" or a number`)
	cmd.Flags().BoolVar(&idsOnly, "id-only", false, "show only identifiers")

	return cmd
}
