package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/merge"
	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/raster"
	"github.com/torino-sdg/sdg11-cli/internal/scorer"
	"github.com/torino-sdg/sdg11-cli/internal/trends"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

// Dashboard sections.
const (
	SectionAll         = "all"
	SectionMap         = "map"
	SectionExploration = "exploration"
	SectionTrends      = "trends"
	SectionInsights    = "insights"
	SectionSocio       = "socio"
)

// Sections lists the sections run by "all", in order.
var Sections = []string{SectionMap, SectionExploration, SectionTrends, SectionInsights, SectionSocio}

// Ranking sizes.
const (
	riskZones   = 5
	atRisk      = 5
	bestScoring = 10
)

// MapView is the interactive map section: the overlay image, its placement
// and the per-zone means for the choropleth.
type MapView struct {
	Center      [2]float64       `json:"center"` // lon, lat
	Bounds      raster.Bounds    `json:"bounds"`
	OverlayPath string           `json:"-"`
	Opacity     float64          `json:"opacity"`
	Degenerate  bool             `json:"degenerate"`
	Zones       []zonal.ZoneStat `json:"zones"`
}

// ExplorationView is the data exploration section.
type ExplorationView struct {
	Stats       raster.Stats               `json:"stats"`
	Histogram   []raster.Bin               `json:"histogram"`
	PreviewRows int                        `json:"preview_rows"`
	PreviewCols int                        `json:"preview_cols"`
	Ranking     []model.MunicipalityRecord `json:"ranking"`
}

// TrendsView is the trends-over-time section.
type TrendsView struct {
	Summaries []trends.Summary `json:"summaries"`
}

// InsightsView is the static guidance section.
type InsightsView struct {
	Lines []string `json:"lines"`
}

// SocioView is the socio-economic section: the merged, scored table and
// its rankings.
type SocioView struct {
	GlobalMax   float64                    `json:"global_max"`
	Scored      int                        `json:"scored"`
	Records     []model.MunicipalityRecord `json:"records"`
	RiskZones   []model.MunicipalityRecord `json:"risk_zones"`
	AtRisk      []model.MunicipalityRecord `json:"at_risk"`
	BestScoring []model.MunicipalityRecord `json:"best_scoring"`
}

// Insights is the fixed guidance shown by the insights section.
var Insights = []string{
	"High-risk zones on the NO2 map should be targeted with traffic and emissions policy.",
	"Trends show seasonal variation: plan interventions during high exposure months.",
	"Use zoning laws to restrict industrial emissions in urban cores.",
}

func (p *Pipeline) runMap(ctx context.Context, rc *RunContext, st *stages, res *Result) (map[string]any, error) {
	fs, err := st.field.get(func() (*fieldStage, error) { return p.loadField(ctx, rc) })
	if err != nil {
		return nil, err
	}

	center, err := boundary.Center(fs.Zones)
	if err != nil {
		return nil, err
	}

	opacity := rc.Config.Render.OverlayOpacity
	path, err := raster.WriteOverlay(fs.Grid, rc.Config.Render.OverlayDir, opacity)
	if err != nil {
		return nil, err
	}
	rc.TrackTemp(path)

	res.Map = &MapView{
		Center:      [2]float64{center.X(), center.Y()},
		Bounds:      fs.Raster.Bounds,
		OverlayPath: path,
		Opacity:     opacity,
		Degenerate:  fs.Grid.Degenerate,
		Zones:       fs.Zonal,
	}
	p.keepField(res, fs)
	return map[string]any{"zones": len(fs.Zones), "overlay": path}, nil
}

func (p *Pipeline) runExploration(ctx context.Context, rc *RunContext, st *stages, res *Result) (map[string]any, error) {
	fs, err := st.field.get(func() (*fieldStage, error) { return p.loadField(ctx, rc) })
	if err != nil {
		return nil, err
	}

	preview := raster.Downsample(fs.Grid, rc.Config.Render.PreviewStep)
	ranking := make([]model.MunicipalityRecord, 0, len(fs.Zonal))
	for _, z := range fs.Zonal {
		ranking = append(ranking, model.MunicipalityRecord{Name: z.Name, PollutionLevel: z.Mean})
	}

	res.Exploration = &ExplorationView{
		Stats:       fs.Stats,
		Histogram:   raster.Histogram(fs.Grid, rc.Config.Render.HistogramBins),
		PreviewRows: preview.Rows,
		PreviewCols: preview.Cols,
		Ranking:     model.SortRecords(ranking, "pollution", true),
	}
	p.keepField(res, fs)
	return map[string]any{"valid_cells": fs.Stats.Valid, "degenerate": fs.Grid.Degenerate}, nil
}

func (p *Pipeline) runTrends(ctx context.Context, rc *RunContext, st *stages, res *Result) (map[string]any, error) {
	series, err := st.trends.get(func() ([]trends.Series, error) { return p.loadTrends(ctx, rc) })
	if err != nil {
		return nil, err
	}

	view := &TrendsView{Summaries: make([]trends.Summary, 0, len(series))}
	points := 0
	for _, s := range series {
		view.Summaries = append(view.Summaries, trends.Summarize(s))
		points += len(s.Points)
	}
	res.Trends = view
	res.Series = series
	return map[string]any{"series": len(series), "points": points}, nil
}

func (p *Pipeline) runInsights(_ context.Context, _ *RunContext, _ *stages, res *Result) (map[string]any, error) {
	res.Insights = &InsightsView{Lines: append([]string(nil), Insights...)}
	return nil, nil
}

func (p *Pipeline) runSocio(ctx context.Context, rc *RunContext, st *stages, res *Result) (map[string]any, error) {
	fs, err := st.field.get(func() (*fieldStage, error) { return p.loadField(ctx, rc) })
	if err != nil {
		return nil, err
	}
	tables, err := st.tables.get(func() (*tablesStage, error) { return p.loadTables(ctx, rc) })
	if err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(rc.Config.Scoring); err != nil {
		return nil, eris.Wrap(err, "pipeline: scoring config")
	}

	merged := merge.Merge(fs.Zonal, tables.Vehicles, tables.Socio, tables.Population)
	scored := scorer.ScoreAll(merged, fs.Stats.Max, rc.Config.Scoring)

	view := &SocioView{
		GlobalMax:   fs.Stats.Max,
		Records:     model.SortRecords(scored, model.ColumnSDGScore, true),
		RiskZones:   model.Top(scored, "pollution", true, riskZones),
		AtRisk:      model.Top(scored, model.ColumnSDGScore, false, atRisk),
		BestScoring: model.Top(scored, model.ColumnSDGScore, true, bestScoring),
	}
	for _, r := range scored {
		if r.SDGScore != nil {
			view.Scored++
		}
	}
	if unscored := len(scored) - view.Scored; unscored > 0 {
		rc.Logger.Info("municipalities without a score",
			zap.Int("unscored", unscored),
			zap.Int("total", len(scored)),
		)
	}

	res.Socio = view
	p.keepField(res, fs)
	return map[string]any{"municipalities": len(scored), "scored": view.Scored, "global_max": fs.Stats.Max}, nil
}

// keepField exposes the loaded field on the result for the renderers.
func (p *Pipeline) keepField(res *Result, fs *fieldStage) {
	res.Field = fs.Raster
	res.Grid = fs.Grid
	res.Zones = fs.Zones
}
