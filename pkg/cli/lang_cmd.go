package cli

import (
	"context"
	"fmt"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// NewLangCmd returns the `lang` cobra command with its add and rm
// subcommands.
//
// Usage examples:
//
//	repodex lang add /docs/intro en de
//	repodex lang rm --id 3f0c... fr
func NewLangCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "change the languages of a resource",
	}
	cmd.AddCommand(
		newLangChangeCmd(deps, "add", "record languages for a resource", (*repository.Index).AddLanguage),
		newLangChangeCmd(deps, "rm", "drop languages from a resource", (*repository.Index).RemoveLanguage),
	)
	return cmd
}

type languageChange func(*repository.Index, context.Context, repository.URI, language.Tag) error

func newLangChangeCmd(deps *Deps, use, short string, change languageChange) *cobra.Command {
	var flags uriFlags

	cmd := &cobra.Command{
		Use:   use + " [PATH] LANG...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target []string
			if flags.id == "" {
				target, args = args[:1], args[1:]
			}
			uri, err := flags.uri(target)
			if err != nil {
				return err
			}
			tags, err := parseLanguages(args)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				return fmt.Errorf("LANG is required: %w", repository.ErrInvalid)
			}
			return withIndex(cmd, deps, true, func(idx *repository.Index) error {
				for _, tag := range tags {
					if err := change(idx, cmd.Context(), uri, tag); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	bindURIFlags(cmd, &flags)
	return cmd
}
