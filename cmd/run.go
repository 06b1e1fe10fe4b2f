package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
)

var (
	runPollutant string
	runSection   string
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dashboard pipeline and print a report",
	Long: "Runs the selected dashboard section (or all of them) for one pollutant, or for every " +
		"configured pollutant with --pollutant all. A failing section is reported and the others still run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags()
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		pollutants, err := pollutantList(cfg, cfg.Pipeline.Pollutant)
		if err != nil {
			return err
		}

		p := newPipeline(cfg)
		var results []*pipeline.Result
		for _, pol := range pollutants {
			out, err := p.Execute(cmd.Context(), pol, cfg.Pipeline.Section)
			if err != nil {
				return eris.Wrapf(err, "run %s", pol)
			}
			results = append(results, out.Result)
		}

		if err := writeResults(cmd.OutOrStdout(), results, runJSON); err != nil {
			return err
		}
		return failedSections(results)
	},
}

func init() {
	runCmd.Flags().StringVar(&runPollutant, "pollutant", "", "pollutant to run, or \"all\" (default from config)")
	runCmd.Flags().StringVar(&runSection, "section", "", "section: all, map, exploration, trends, insights, socio (default from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print results as JSON instead of a report")
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags() {
	if runPollutant != "" {
		cfg.Pipeline.Pollutant = runPollutant
	}
	if runSection != "" {
		cfg.Pipeline.Section = runSection
	}
}

func writeResults(w io.Writer, results []*pipeline.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(results), "encode results")
	}
	for _, res := range results {
		if _, err := fmt.Fprint(w, pipeline.FormatReport(res)); err != nil {
			return eris.Wrap(err, "write report")
		}
	}
	return nil
}

// failedSections returns an error naming every failed section, so the
// process exits non-zero after all reports are written.
func failedSections(results []*pipeline.Result) error {
	var n int
	for _, res := range results {
		for _, s := range res.Sections {
			if s.Failed() {
				n++
				zap.L().Warn("section failed",
					zap.String("pollutant", res.Pollutant),
					zap.String("section", s.Name),
					zap.String("kind", s.ErrorKind),
				)
			}
		}
	}
	if n > 0 {
		return eris.Errorf("%d section(s) failed", n)
	}
	return nil
}
