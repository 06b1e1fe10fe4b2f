package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/torino-sdg/sdg11-cli/internal/raster"
)

var inspectPollutant string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print raster statistics for pollutants",
	RunE: func(cmd *cobra.Command, args []string) error {
		pollutant := inspectPollutant
		if pollutant == "" {
			pollutant = "all"
		}
		pollutants, err := pollutantList(cfg, pollutant)
		if err != nil {
			return err
		}

		var rows []inspectRow
		for _, pol := range pollutants {
			path, _ := cfg.Data.RasterPath(pol)
			row := inspectRow{Pollutant: pol, Path: path}
			f, err := raster.Read(path)
			if err != nil {
				row.Err = err
			} else {
				row.Field = f
				row.Stats = raster.Summarize(f)
				row.Degenerate = raster.Normalize(f).Degenerate
			}
			rows = append(rows, row)
		}
		formatInspectRows(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectPollutant, "pollutant", "", "pollutant to inspect (default: all configured)")
	rootCmd.AddCommand(inspectCmd)
}

type inspectRow struct {
	Pollutant  string
	Path       string
	Field      *raster.Field
	Stats      raster.Stats
	Degenerate bool
	Err        error
}

// formatInspectRows writes one line of raster statistics per pollutant.
func formatInspectRows(out io.Writer, rows []inspectRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POLLUTANT\tSHAPE\tVALID\tMIN\tMAX\tMEAN\tSTDDEV\tNOTE")
	_, _ = fmt.Fprintln(w, "---------\t-----\t-----\t---\t---\t----\t------\t----")

	for _, r := range rows {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%s\n", r.Pollutant, truncate(r.Err.Error(), 60))
			continue
		}
		note := ""
		if r.Degenerate {
			note = "degenerate"
		}
		_, _ = fmt.Fprintf(w, "%s\t%dx%d\t%d/%d\t%.6g\t%.6g\t%.6g\t%.6g\t%s\n",
			r.Pollutant,
			r.Field.Rows, r.Field.Cols,
			r.Stats.Valid, r.Stats.Total,
			r.Stats.Min, r.Stats.Max, r.Stats.Mean, r.Stats.StdDev,
			note,
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
