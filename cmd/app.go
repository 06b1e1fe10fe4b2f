package main

import (
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/chart"
	"github.com/torino-sdg/sdg11-cli/internal/config"
	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

func newPipeline(c *config.Config) *pipeline.Pipeline {
	return pipeline.New(c, zonal.CentroidMean{}, clockwork.NewRealClock())
}

// pollutantList expands "all" into every configured pollutant and checks
// that a single pollutant has a raster.
func pollutantList(c *config.Config, pollutant string) ([]string, error) {
	if pollutant == "" {
		pollutant = c.Pipeline.Pollutant
	}
	if strings.EqualFold(pollutant, "all") {
		return c.Data.Pollutants(), nil
	}
	if _, ok := c.Data.RasterPath(pollutant); !ok {
		return nil, eris.Errorf("unknown pollutant %q (configured: %s)", pollutant, strings.Join(c.Data.Pollutants(), ", "))
	}
	return []string{strings.ToUpper(pollutant)}, nil
}

func chartSize(c *config.Config) chart.Size {
	return chart.Size{WidthCm: c.Render.ChartWidthCm, HeightCm: c.Render.ChartHeightCm}
}
