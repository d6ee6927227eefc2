package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jlrickert/repodex/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

// NewStatsCmd returns the `stats` cobra command.
func NewStatsCmd(deps *Deps) *cobra.Command {
	var metrics bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "display sizes and fill levels of the index files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, deps, false, func(idx *repository.Index) error {
				stats, err := idx.Stats()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "root:      %s\n", idx.Root())
				if err := writeStats(out, stats); err != nil {
					return err
				}
				if metrics {
					fmt.Fprintln(out)
					return writeMetrics(out, prometheus.DefaultGatherer)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&metrics, "metrics", false, "append the index metrics of this process in Prometheus text format")
	return cmd
}

func writeStats(out io.Writer, stats repository.Stats) error {
	version := fmt.Sprint(stats.IndexVersion)
	if stats.IndexVersion < 0 {
		version = "mixed, run reindex"
	}
	fmt.Fprintf(out, "resources: %s\n", humanize.Comma(stats.Resources))
	fmt.Fprintf(out, "revisions: %s\n", humanize.Comma(stats.Revisions))
	fmt.Fprintf(out, "format:    %s\n\n", version)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "FILE\tSIZE\tSLOTS\tENTRIES\tFREE\tLOAD\t")
	for _, f := range stats.Files {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.1f%%\t\n",
			f.Name, humanize.Bytes(uint64(f.Size)), f.Slots, f.Entries, f.FreeSlots, f.LoadFactor*100)
	}
	return w.Flush()
}

// writeMetrics renders the repodex metric families in the Prometheus text
// exposition format.
func writeMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "repodex_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
