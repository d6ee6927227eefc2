package cli

import (
	"fmt"
	"strings"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type resourceInfo struct {
	ID        string   `yaml:"id"`
	Type      string   `yaml:"type"`
	Path      string   `yaml:"path,omitempty"`
	Versions  []string `yaml:"versions"`
	Languages []string `yaml:"languages,omitempty"`
}

// NewInfoCmd returns the `info` cobra command. It prints what the index
// knows about one resource as YAML.
func NewInfoCmd(deps *Deps) *cobra.Command {
	var flags uriFlags

	cmd := &cobra.Command{
		Use:   "info [PATH]",
		Short: "display what the index holds for a resource",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := flags.uri(args)
			if err != nil {
				return err
			}
			return withIndex(cmd, deps, false, func(idx *repository.Index) error {
				ctx := cmd.Context()
				info := resourceInfo{ID: uri.ID}
				if info.ID == "" {
					if info.ID, err = idx.Identifier(ctx, uri.Path); err != nil {
						return err
					}
				}
				lookup := repository.URI{ID: info.ID, Type: uri.Type}
				if info.Path, err = idx.PathOf(ctx, info.ID); err != nil {
					return err
				}
				if info.Type, err = idx.TypeOf(ctx, lookup); err != nil {
					return err
				}
				versions, err := idx.Revisions(ctx, lookup)
				if err != nil && !repository.IsNotFound(err) {
					return err
				}
				for _, v := range versions {
					info.Versions = append(info.Versions, repository.VersionName(v))
				}
				langs, err := idx.Languages(ctx, lookup)
				if err != nil && !repository.IsNotFound(err) {
					return err
				}
				for _, tag := range langs {
					info.Languages = append(info.Languages, tag.String())
				}

				data, err := yaml.Marshal(info)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), strings.TrimSpace(string(data))+"\n")
				return err
			})
		},
	}

	bindURIFlags(cmd, &flags)
	return cmd
}
