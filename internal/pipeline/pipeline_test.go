package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/config"
	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/raster"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

// Cell centres: 10 at (0.5,1.5), 20 at (1.5,1.5), 30 at (0.5,0.5), 40 at (1.5,0.5).
const testGrid = `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 1
NODATA_value -1
10 20
30 40
`

const testZones = `{"type": "FeatureCollection", "features": [
 {"type": "Feature", "properties": {"name": "Alpha"},
  "geometry": {"type": "Polygon", "coordinates": [[[0,1],[1,1],[1,2],[0,2],[0,1]]]}},
 {"type": "Feature", "properties": {"name": "Beta"},
  "geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}},
 {"type": "Feature", "properties": {"name": "Gamma"},
  "geometry": {"type": "Polygon", "coordinates": [[[5,5],[6,5],[6,6],[5,6],[5,5]]]}}
]}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// setupData writes a complete input set and returns a config pointing at it.
func setupData(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "no2.asc", testGrid)
	writeFile(t, dir, "zones.geojson", testZones)
	writeFile(t, dir, "veh.csv", "municipality,vehicle_per_1000\nALPHA ,500\nGamma,300\nOrphan,1\n")
	writeFile(t, dir, "socio.csv", "municipality,housing_quality_index\nalpha,80\n")
	writeFile(t, dir, "pop.csv", "Municipality,Total\nAlpha,100\n alpha,50\n")
	writeFile(t, dir, "co.csv", "C0/date,C0/mean\n2024-01-15,0.05\n2024-01-01,0.03\n2024-02-01,0.04\n")
	writeFile(t, dir, "aer.csv", "C0/date,C0/mean\n2024-01-01,-1.2\n2024-01-02,NaN\n")

	cfg := &config.Config{}
	cfg.Data = config.DataConfig{
		Dir:             dir,
		Boundaries:      "zones.geojson",
		NameField:       "name",
		Rasters:         map[string]string{"no2": "no2.asc"},
		VehicleMobility: "veh.csv",
		SocioEconomic:   "socio.csv",
		Population:      "pop.csv",
		TrendCO:         "co.csv",
		TrendAerosol:    "aer.csv",
		Encoding:        "utf-8",
	}
	cfg.Scoring = config.ScoringConfig{VehicleReference: 1000, HousingScale: 100}
	cfg.Render = config.RenderConfig{OverlayDir: dir, OverlayOpacity: 0.6, HistogramBins: 30, PreviewStep: 10}
	return cfg
}

func run(t *testing.T, p *Pipeline, pollutant, section string) (*Result, *RunContext) {
	t.Helper()
	rc := p.NewRun(pollutant, section)
	t.Cleanup(func() { _ = rc.Cleanup() })
	res, err := p.Run(context.Background(), rc)
	require.NoError(t, err)
	return res, rc
}

func recordByName(t *testing.T, records []model.MunicipalityRecord, name string) model.MunicipalityRecord {
	t.Helper()
	for _, r := range records {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no record %q", name)
	return model.MunicipalityRecord{}
}

func TestRun_AllSections(t *testing.T) {
	p := New(setupData(t), nil, clockwork.NewFakeClock())
	res, _ := run(t, p, "no2", "")

	assert.Equal(t, "NO2", res.Pollutant)
	assert.Equal(t, SectionAll, res.Section)
	assert.False(t, res.Failed())
	require.Len(t, res.Sections, len(Sections))
	for i, s := range res.Sections {
		assert.Equal(t, Sections[i], s.Name)
		assert.Equal(t, model.SectionStatusComplete, s.Status, s.Error)
	}
	assert.NotNil(t, res.Map)
	assert.NotNil(t, res.Exploration)
	assert.NotNil(t, res.Trends)
	assert.NotNil(t, res.Insights)
	assert.NotNil(t, res.Socio)
}

func TestRun_ScenarioA_FullyMatchedMunicipality(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionSocio)
	require.NotNil(t, res.Socio)

	assert.InDelta(t, 40, res.Socio.GlobalMax, 1e-12)
	alpha := recordByName(t, res.Socio.Records, "alpha")
	require.NotNil(t, alpha.PollutionLevel)
	assert.InDelta(t, 10, *alpha.PollutionLevel, 1e-12)
	assert.InDelta(t, 500, *alpha.VehiclesPer1000, 1e-12)
	assert.InDelta(t, 80, *alpha.HousingQualityIndex, 1e-12)
	assert.Equal(t, int64(150), *alpha.Population)
	require.NotNil(t, alpha.SDGScore)
	assert.Equal(t, 68.33, *alpha.SDGScore)
}

func TestRun_PopulationFromConfiguredSheet(t *testing.T) {
	cfg := setupData(t)
	f := xlsx.NewFile()
	notes, err := f.AddSheet("Note")
	require.NoError(t, err)
	notes.AddRow().AddCell().SetString("fonte ISTAT")
	sheet, err := f.AddSheet("Popolazione")
	require.NoError(t, err)
	for _, cells := range [][]string{{"Municipality", "Total"}, {"Alpha", "120"}, {"ALPHA", "30"}} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	require.NoError(t, f.Save(filepath.Join(cfg.Data.Dir, "pop.xlsx")))
	cfg.Data.Population = "pop.xlsx"
	cfg.Data.Sheets = map[string]string{"population": "Popolazione"}

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionSocio)
	require.NotNil(t, res.Socio)
	alpha := recordByName(t, res.Socio.Records, "alpha")
	require.NotNil(t, alpha.Population)
	assert.Equal(t, int64(150), *alpha.Population)
}

func TestRun_ScenarioB_UnmatchedMunicipality(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionSocio)
	require.NotNil(t, res.Socio)

	beta := recordByName(t, res.Socio.Records, "beta")
	require.NotNil(t, beta.PollutionLevel)
	assert.InDelta(t, 40, *beta.PollutionLevel, 1e-12)
	assert.Nil(t, beta.VehiclesPer1000)
	assert.Nil(t, beta.HousingQualityIndex)
	assert.Nil(t, beta.Population)
	assert.Nil(t, beta.SDGScore)

	gamma := recordByName(t, res.Socio.Records, "gamma")
	assert.Nil(t, gamma.PollutionLevel)
	assert.Nil(t, gamma.SDGScore)

	// One row per zone; aux-only names are dropped.
	assert.Len(t, res.Socio.Records, 3)
	assert.Equal(t, 1, res.Socio.Scored)
}

func TestRun_Rankings(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionSocio)

	names := func(rs []model.MunicipalityRecord) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Name
		}
		return out
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names(res.Socio.Records))
	assert.Equal(t, []string{"beta", "alpha"}, names(res.Socio.RiskZones))
	assert.Equal(t, []string{"alpha"}, names(res.Socio.AtRisk))
	assert.Equal(t, []string{"alpha"}, names(res.Socio.BestScoring))
}

func TestRun_MapSectionWritesOverlay(t *testing.T) {
	p := New(setupData(t), nil, nil)
	rc := p.NewRun("NO2", SectionMap)
	res, err := p.Run(context.Background(), rc)
	require.NoError(t, err)
	require.NotNil(t, res.Map)

	assert.Equal(t, raster.Bounds{West: 0, South: 0, East: 2, North: 2}, res.Map.Bounds)
	assert.InDelta(t, 0.5, res.Map.Center[0], 1e-9)
	assert.InDelta(t, 1.5, res.Map.Center[1], 1e-9)
	assert.Len(t, res.Map.Zones, 3)
	assert.FileExists(t, res.Map.OverlayPath)
	assert.Equal(t, []string{res.Map.OverlayPath}, rc.TempFiles())

	require.NoError(t, rc.Cleanup())
	assert.NoFileExists(t, res.Map.OverlayPath)
	assert.Empty(t, rc.TempFiles())
}

func TestRun_Exploration(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionExploration)
	require.NotNil(t, res.Exploration)

	e := res.Exploration
	assert.Equal(t, 4, e.Stats.Valid)
	assert.InDelta(t, 10, e.Stats.Min, 1e-12)
	assert.Len(t, e.Histogram, 30)
	assert.Equal(t, 1, e.PreviewRows)
	assert.Equal(t, 1, e.PreviewCols)
	require.Len(t, e.Ranking, 3)
	assert.Equal(t, "Beta", e.Ranking[0].Name)
	assert.Equal(t, "Gamma", e.Ranking[2].Name)

	total := 0
	for _, b := range e.Histogram {
		total += b.Count
	}
	// The minimum normalizes to 0 and is excluded.
	assert.Equal(t, 3, total)
}

func TestRun_Trends(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionTrends)
	require.NotNil(t, res.Trends)
	require.Len(t, res.Trends.Summaries, 2)

	co := res.Trends.Summaries[0]
	assert.Equal(t, SeriesCO, co.Name)
	assert.Equal(t, 3, co.Count)
	assert.Equal(t, "2024-01-01", co.First.Format("2006-01-02"))
	assert.Len(t, co.Monthly, 2)

	aer := res.Trends.Summaries[1]
	assert.Equal(t, SeriesAerosol, aer.Name)
	assert.Equal(t, 1, aer.Count)
	assert.Len(t, res.Series, 2)
}

func TestRun_Insights(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionInsights)
	require.NotNil(t, res.Insights)
	assert.Equal(t, Insights, res.Insights.Lines)
	assert.Nil(t, res.Field)
}

func TestRun_MissingTableFailsOnlySocio(t *testing.T) {
	cfg := setupData(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Data.Dir, "veh.csv")))

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionAll)
	assert.True(t, res.Failed())

	socio, ok := res.SectionResult(SectionSocio)
	require.True(t, ok)
	assert.Equal(t, model.SectionStatusFailed, socio.Status)
	assert.Equal(t, "source_unavailable", socio.ErrorKind)
	assert.Contains(t, socio.Error, "vehicle_mobility")
	assert.Nil(t, res.Socio)

	for _, name := range []string{SectionMap, SectionExploration, SectionTrends, SectionInsights} {
		s, ok := res.SectionResult(name)
		require.True(t, ok)
		assert.Equal(t, model.SectionStatusComplete, s.Status, name)
	}
}

func TestRun_MissingRasterFailsFieldSections(t *testing.T) {
	cfg := setupData(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Data.Dir, "no2.asc")))

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionAll)
	for _, name := range []string{SectionMap, SectionExploration, SectionSocio} {
		s, _ := res.SectionResult(name)
		assert.Equal(t, model.SectionStatusFailed, s.Status, name)
		assert.Equal(t, "source_unavailable", s.ErrorKind, name)
	}
	for _, name := range []string{SectionTrends, SectionInsights} {
		s, _ := res.SectionResult(name)
		assert.Equal(t, model.SectionStatusComplete, s.Status, name)
	}
}

func TestRun_UnreadableGeoTIFFFailsFieldSections(t *testing.T) {
	cfg := setupData(t)
	writeFile(t, cfg.Data.Dir, "no2.tif", "II*\x00truncated")
	cfg.Data.Rasters = map[string]string{"no2": "no2.tif"}

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionMap)
	s, _ := res.SectionResult(SectionMap)
	assert.Equal(t, model.SectionStatusFailed, s.Status)
	assert.Equal(t, "source_unavailable", s.ErrorKind)
	assert.Contains(t, s.Error, "no2.tif")
}

func TestRun_SchemaMismatch(t *testing.T) {
	cfg := setupData(t)
	writeFile(t, cfg.Data.Dir, "socio.csv", "comune,housing_quality_index\nalpha,80\n")

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionSocio)
	s, _ := res.SectionResult(SectionSocio)
	assert.Equal(t, model.SectionStatusFailed, s.Status)
	assert.Equal(t, "schema_mismatch", s.ErrorKind)
	assert.Contains(t, s.Error, "municipality")
}

func TestRun_MissingTrendFailsTrends(t *testing.T) {
	cfg := setupData(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Data.Dir, "aer.csv")))

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionTrends)
	s, _ := res.SectionResult(SectionTrends)
	assert.Equal(t, model.SectionStatusFailed, s.Status)
	assert.Nil(t, res.Trends)
}

func TestRun_DegenerateField(t *testing.T) {
	cfg := setupData(t)
	writeFile(t, cfg.Data.Dir, "no2.asc", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -1\n5 5\n5 -1\n")

	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionAll)
	assert.False(t, res.Failed())
	assert.True(t, res.Map.Degenerate)
	for _, v := range res.Grid.Data {
		assert.Zero(t, v)
	}
	assert.InDelta(t, 5, res.Socio.GlobalMax, 1e-12)

	alpha := recordByName(t, res.Socio.Records, "alpha")
	// pollution 5/5 -> 0, vehicles 0.5, housing 0.8
	assert.Equal(t, 43.33, *alpha.SDGScore)
}

type mockAggregator struct {
	mock.Mock
}

func (m *mockAggregator) Aggregate(ctx context.Context, zones []boundary.Zone, field *raster.Field) ([]zonal.ZoneStat, error) {
	args := m.Called(ctx, zones, field)
	if v := args.Get(0); v != nil {
		return v.([]zonal.ZoneStat), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRun_FieldStageLoadedOnce(t *testing.T) {
	agg := &mockAggregator{}
	agg.On("Aggregate", mock.Anything, mock.Anything, mock.Anything).
		Return([]zonal.ZoneStat{{Name: "Alpha", Mean: model.Float(10), Count: 1}}, nil).Once()

	res, _ := run(t, New(setupData(t), agg, nil), "NO2", SectionAll)
	assert.False(t, res.Failed())
	assert.Len(t, res.Socio.Records, 1)
	agg.AssertExpectations(t)
}

func TestRun_AggregatorFailureIsolated(t *testing.T) {
	agg := &mockAggregator{}
	agg.On("Aggregate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	res, _ := run(t, New(setupData(t), agg, nil), "NO2", SectionAll)
	for _, name := range []string{SectionMap, SectionExploration, SectionSocio} {
		s, _ := res.SectionResult(name)
		assert.Equal(t, model.SectionStatusFailed, s.Status, name)
		assert.Equal(t, "error", s.ErrorKind, name)
	}
	s, _ := res.SectionResult(SectionTrends)
	assert.Equal(t, model.SectionStatusComplete, s.Status)
	agg.AssertExpectations(t)
}

func TestRun_AggregatorPanicIsolated(t *testing.T) {
	agg := &mockAggregator{}
	agg.On("Aggregate", mock.Anything, mock.Anything, mock.Anything).
		Panic("makeslice: cap out of range")

	res, _ := run(t, New(setupData(t), agg, nil), "NO2", SectionAll)
	s, _ := res.SectionResult(SectionMap)
	assert.Equal(t, model.SectionStatusFailed, s.Status)
	assert.Contains(t, s.Error, "section map panicked")
	assert.Contains(t, s.Error, "makeslice")

	s, _ = res.SectionResult(SectionTrends)
	assert.Equal(t, model.SectionStatusComplete, s.Status)
}

func TestRun_CancelledSkipsSections(t *testing.T) {
	p := New(setupData(t), nil, nil)
	rc := p.NewRun("NO2", SectionAll)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, rc)
	require.NoError(t, err)
	for _, s := range res.Sections {
		assert.Equal(t, model.SectionStatusSkipped, s.Status)
	}
}

func TestRun_UnknownSectionOrPollutant(t *testing.T) {
	p := New(setupData(t), nil, nil)

	_, err := p.Run(context.Background(), p.NewRun("NO2", "charts"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section")

	_, err = p.Run(context.Background(), p.NewRun("CO", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pollutant")
}

func TestRunContext_Cleanup_IgnoresMissing(t *testing.T) {
	rc := NewRunContext(&config.Config{}, "so2", "", nil)
	assert.Equal(t, "SO2", rc.Pollutant)
	assert.Equal(t, SectionAll, rc.Section)

	rc.TrackTemp(filepath.Join(t.TempDir(), "gone.png"))
	assert.NoError(t, rc.Cleanup())
}

func TestFormatReport(t *testing.T) {
	p := New(setupData(t), nil, nil)
	res, _ := run(t, p, "NO2", SectionAll)

	report := FormatReport(res)
	assert.Contains(t, report, "# SDG 11 Report: NO2")
	assert.Contains(t, report, "- socio: complete")
	assert.Contains(t, report, "| alpha | 68.33 |")
	assert.Contains(t, report, "| beta | 40 |")
	assert.Contains(t, report, "CO_Level: 3 points")
	assert.Contains(t, report, "1. High-risk zones")
}

func TestFormatReport_FailedSection(t *testing.T) {
	cfg := setupData(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Data.Dir, "pop.csv")))
	res, _ := run(t, New(cfg, nil, nil), "NO2", SectionSocio)

	report := FormatReport(res)
	assert.Contains(t, report, "- socio: failed")
	assert.Contains(t, report, "Error: ")
	assert.NotContains(t, report, "## Socio-Economic Analysis")
}

func TestExecute_ReadsOverlayAndCleansUp(t *testing.T) {
	p := New(setupData(t), nil, nil)

	out, err := p.Execute(context.Background(), "NO2", SectionMap)
	require.NoError(t, err)
	require.NotNil(t, out.Result.Map)
	assert.NotEmpty(t, out.Overlay)
	assert.NoFileExists(t, out.Result.Map.OverlayPath)
}

func TestExecute_NoOverlayWithoutMap(t *testing.T) {
	p := New(setupData(t), nil, nil)

	out, err := p.Execute(context.Background(), "NO2", SectionInsights)
	require.NoError(t, err)
	assert.Nil(t, out.Overlay)

	_, err = p.Execute(context.Background(), "NO2", "charts")
	assert.Error(t, err)
}

func TestIsSection(t *testing.T) {
	for _, s := range []string{"all", "MAP", "socio", ""} {
		assert.True(t, IsSection(s), s)
	}
	assert.False(t, IsSection("charts"))
}
