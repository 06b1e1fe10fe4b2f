package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/torino-sdg/sdg11-cli/internal/export"
	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
)

var (
	exportPollutant string
	exportFormats   []string
	exportDir       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scored municipality table",
	Long:  "Runs the socio-economic section and writes the merged, scored table as CSV, XLSX, SQLite or GeoJSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportPollutant != "" {
			cfg.Pipeline.Pollutant = exportPollutant
		}
		if len(exportFormats) > 0 {
			cfg.Export.Formats = exportFormats
		}
		if exportDir != "" {
			cfg.Export.Dir = exportDir
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		pollutants, err := pollutantList(cfg, cfg.Pipeline.Pollutant)
		if err != nil {
			return err
		}

		p := newPipeline(cfg)
		for _, pol := range pollutants {
			out, err := p.Execute(cmd.Context(), pol, pipeline.SectionSocio)
			if err != nil {
				return eris.Wrapf(err, "export %s", pol)
			}
			res := out.Result
			if sr, ok := res.SectionResult(pipeline.SectionSocio); !ok || res.Socio == nil {
				return eris.Errorf("export %s: socio section %s: %s", pol, sr.Status, sr.Error)
			}

			paths, err := export.Export(cmd.Context(), cfg.Export.Formats, export.Request{
				Dir:       cfg.Export.Dir,
				RunID:     res.RunID,
				Pollutant: res.Pollutant,
				CreatedAt: res.StartedAt,
				Records:   res.Socio.Records,
				Zones:     res.Zones,
			})
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPollutant, "pollutant", "", "pollutant to export, or \"all\" (default from config)")
	exportCmd.Flags().StringSliceVar(&exportFormats, "format", nil, "formats: csv, xlsx, sqlite, geojson (default from config)")
	exportCmd.Flags().StringVar(&exportDir, "out", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
