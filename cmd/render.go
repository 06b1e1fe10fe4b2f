package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/chart"
	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
)

// overlayName renders the map overlay instead of a chart.
const overlayName = "overlay"

var (
	renderPollutant string
	renderChart     string
	renderOut       string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a chart or the map overlay as PNG",
	Long:  "Renders one of histogram, trends, scores or overlay for a pollutant and writes it as a PNG file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderPollutant != "" {
			cfg.Pipeline.Pollutant = renderPollutant
		}
		pollutants, err := pollutantList(cfg, cfg.Pipeline.Pollutant)
		if err != nil {
			return err
		}
		if len(pollutants) != 1 {
			return eris.New("render needs a single pollutant")
		}
		pol := pollutants[0]

		section := pipeline.SectionMap
		if renderChart != overlayName {
			if section, err = chart.Section(renderChart); err != nil {
				return err
			}
		}

		out, err := newPipeline(cfg).Execute(cmd.Context(), pol, section)
		if err != nil {
			return err
		}

		if renderChart == overlayName {
			if out.Overlay == nil {
				sr, _ := out.Result.SectionResult(pipeline.SectionMap)
				return eris.Errorf("overlay unavailable: %s", sr.Error)
			}
			if err := os.WriteFile(renderOut, out.Overlay, 0o644); err != nil {
				return eris.Wrap(err, "write overlay")
			}
		} else {
			p, err := chart.FromResult(renderChart, out.Result, cfg.Render.HistogramBins)
			if err != nil {
				return err
			}
			if err := chart.SavePNG(renderOut, p, chartSize(cfg)); err != nil {
				return err
			}
		}

		zap.L().Info("rendered",
			zap.String("pollutant", pol),
			zap.String("chart", renderChart),
			zap.String("path", renderOut),
		)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderPollutant, "pollutant", "", "pollutant (default from config)")
	renderCmd.Flags().StringVar(&renderChart, "chart", chart.NameScores, "histogram, trends, scores or overlay")
	renderCmd.Flags().StringVar(&renderOut, "out", "chart.png", "output PNG path")
	rootCmd.AddCommand(renderCmd)
}
