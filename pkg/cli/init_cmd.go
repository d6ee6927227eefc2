package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/spf13/cobra"
)

// NewInitCmd returns the `init` cobra command.
//
// Usage examples:
//
//	repodex init
//	repodex --root ./site init --path-length 256 --versions 4
func NewInitCmd(deps *Deps) *cobra.Command {
	cfg := repository.DefaultConfig()
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "create an empty index",
		Long: `Write repodex.yaml and create the five index files below the root.

Widths only shape new files. Existing files keep the widths they have grown to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := os.MkdirAll(deps.Root, 0o755); err != nil {
				return err
			}
			path := filepath.Join(deps.Root, repository.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite: %w", path, os.ErrExist)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := cfg.Write(path); err != nil {
				return err
			}

			err := withIndex(cmd, deps, true, func(idx *repository.Index) error {
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized index at %s\n", deps.Root)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&force, "force", false, "overwrite an existing config")
	f.IntVar(&cfg.IDLength, "id-length", cfg.IDLength, "identifier width in bytes")
	f.IntVar(&cfg.TypeLength, "type-length", cfg.TypeLength, "initial type field width")
	f.IntVar(&cfg.PathLength, "path-length", cfg.PathLength, "initial path field width")
	f.IntVar(&cfg.VersionsPerEntry, "versions", cfg.VersionsPerEntry, "initial versions per resource")
	f.IntVar(&cfg.LanguagesPerEntry, "languages", cfg.LanguagesPerEntry, "initial languages per resource")
	f.Int64Var(&cfg.IDSlots, "id-slots", cfg.IDSlots, "buckets in the id index")
	f.Int64Var(&cfg.PathSlots, "path-slots", cfg.PathSlots, "buckets in the path index")
	f.IntVar(&cfg.RecordCache, "record-cache", cfg.RecordCache, "uri records cached in memory")

	return cmd
}
