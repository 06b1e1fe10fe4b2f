package chart

import (
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"

	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
	"github.com/torino-sdg/sdg11-cli/internal/raster"
)

// scoreBars is the number of municipalities drawn by the scores chart.
const scoreBars = 10

// Section returns the dashboard section a chart is drawn from.
func Section(name string) (string, error) {
	switch name {
	case NameHistogram:
		return pipeline.SectionExploration, nil
	case NameTrends:
		return pipeline.SectionTrends, nil
	case NameScores:
		return pipeline.SectionSocio, nil
	}
	return "", eris.Errorf("chart: unknown chart %q (available: %s)", name, strings.Join(Names, ", "))
}

// FromResult draws the named chart from a run that included its section.
func FromResult(name string, res *pipeline.Result, bins int) (*plot.Plot, error) {
	section, err := Section(name)
	if err != nil {
		return nil, err
	}
	if sr, ok := res.SectionResult(section); !ok || sr.Status != model.SectionStatusComplete {
		msg := "not run"
		if ok {
			msg = string(sr.Status)
			if sr.Error != "" {
				msg = sr.Error
			}
		}
		return nil, eris.Errorf("chart: %s needs section %s: %s", name, section, msg)
	}

	switch name {
	case NameHistogram:
		return Histogram(res.Pollutant, raster.Positive(res.Grid), bins)
	case NameTrends:
		return Trends(res.Series)
	default:
		return Scores(res.Socio.Records, scoreBars)
	}
}
