package cli

import (
	"fmt"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// uriFlags selects a resource by path argument or --id.
type uriFlags struct {
	id      string
	typ     string
	version string
}

func bindURIFlags(cmd *cobra.Command, f *uriFlags) {
	cmd.Flags().StringVar(&f.id, "id", "", "resource identifier (instead of PATH)")
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "resource type")
	cmd.Flags().StringVarP(&f.version, "version", "V", "live", `version: "live", "work" or a number`)
}

// uri builds the resource uri from the flags and the first argument.
func (f *uriFlags) uri(args []string) (repository.URI, error) {
	version, err := repository.ParseVersion(f.version)
	if err != nil {
		return repository.URI{}, err
	}
	uri := repository.URI{ID: f.id, Type: f.typ, Version: version}
	if len(args) > 0 {
		uri.Path = args[0]
	}
	if uri.ID == "" && uri.Path == "" {
		return repository.URI{}, fmt.Errorf("PATH or --id is required: %w", repository.ErrInvalid)
	}
	return uri, nil
}

func parseLanguages(names []string) ([]language.Tag, error) {
	tags := make([]language.Tag, 0, len(names))
	for _, name := range names {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", name, repository.ErrInvalid)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
