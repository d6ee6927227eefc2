package cli

import (
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// NewUpdateCmd returns the `update` cobra command.
func NewUpdateCmd(deps *Deps) *cobra.Command {
	var (
		flags   uriFlags
		newPath string
		langs   []string
		indexed bool
	)

	cmd := &cobra.Command{
		Use:   "update [PATH]",
		Short: "change type, path or languages of a resource",
		Long: `Rewrite the stored type and path of the live version and, when --lang is
given, replace the languages of the resource.`,
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

			return withIndex(cmd, deps, true, func(idx *repository.Index) error {
				if uri.ID == "" {
					id, err := idx.Identifier(cmd.Context(), uri.Path)
					if err != nil {
						return err
					}
					uri.ID = id
				}
				uri.Path = newPath
				return idx.Update(cmd.Context(), repository.Resource{URI: uri, Languages: tags, Indexed: indexed})
			})
		},
	}

	bindURIFlags(cmd, &flags)
	cmd.Flags().StringVar(&newPath, "path", "", "new path of the live version")
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "replace the languages of the resource")
	cmd.Flags().BoolVar(&indexed, "search", false, "hand the resource to the search index")

	return cmd
}
