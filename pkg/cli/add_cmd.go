package cli

import (
	"fmt"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// NewAddCmd returns the `add` cobra command.
//
// Usage examples:
//
//	repodex add /docs/intro --type page
//	repodex add /docs/intro --version work --lang en,de
func NewAddCmd(deps *Deps) *cobra.Command {
	var (
		flags   uriFlags
		langs   []string
		indexed bool
	)

	cmd := &cobra.Command{
		Use:   "add PATH",
		Short: "index a resource or a new version of it",
		Long: `Index a resource under PATH. An identifier is generated unless --id is given.

Adding a version to a known identifier or path attaches it to that resource.
Adding a version the resource already has fails with a conflict.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := flags.uri(args)
			if err != nil {
				return err
			}
			tags, err := parseLanguages(langs)
			if err != nil {
				return err
			}
			res := repository.Resource{URI: uri, Languages: tags, Indexed: indexed}

			return withIndex(cmd, deps, true, func(idx *repository.Index) error {
				added, err := idx.Add(cmd.Context(), res)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), added.ID)
				return nil
			})
		},
	}

	bindURIFlags(cmd, &flags)
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "languages the resource is available in")
	cmd.Flags().BoolVar(&indexed, "search", false, "hand the resource to the search index")

	return cmd
}
