package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/merge"
	"github.com/torino-sdg/sdg11-cli/internal/raster"
	"github.com/torino-sdg/sdg11-cli/internal/resilience"
	"github.com/torino-sdg/sdg11-cli/internal/tabular"
	"github.com/torino-sdg/sdg11-cli/internal/trends"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

// fieldStage is the loaded pollutant field with its zonal reduction.
type fieldStage struct {
	Raster *raster.Field
	Grid   *raster.Grid
	Stats  raster.Stats
	Zones  []boundary.Zone
	Zonal  []zonal.ZoneStat
}

// tablesStage holds the auxiliary tables indexed by normalized name.
type tablesStage struct {
	Vehicles   map[string]*float64
	Socio      map[string]*float64
	Population map[string]int64
}

// memo loads each stage at most once per run and remembers failures, so a
// source that failed for one section fails every dependent section the same
// way.
type memo[T any] struct {
	done bool
	val  T
	err  error
}

func (m *memo[T]) get(load func() (T, error)) (T, error) {
	if !m.done {
		m.val, m.err = load()
		m.done = true
	}
	return m.val, m.err
}

type stages struct {
	field  memo[*fieldStage]
	tables memo[*tablesStage]
	trends memo[[]trends.Series]
}

func (p *Pipeline) loadField(ctx context.Context, rc *RunContext) (*fieldStage, error) {
	d := rc.Config.Data

	path, ok := d.RasterPath(rc.Pollutant)
	if !ok {
		return nil, resilience.NewSourceUnavailable("raster", "", eris.Errorf("no raster configured for %s", rc.Pollutant))
	}
	f, err := raster.Read(path)
	if err != nil {
		return nil, err
	}

	zones, err := boundary.Load(d.Resolve(d.Boundaries), d.NameField)
	if err != nil {
		return nil, err
	}

	grid := raster.Normalize(f)
	stats := raster.Summarize(f)
	if grid.Degenerate {
		rc.Logger.Warn("degenerate field: no dynamic range, normalized grid is all zero",
			zap.String("path", path),
			zap.Float64("min", stats.Min),
			zap.Float64("max", stats.Max),
			zap.Int("valid_cells", stats.Valid),
		)
	}

	zs, err := p.aggregator.Aggregate(ctx, zones, f)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: zonal statistics")
	}

	rc.Logger.Info("field stage loaded",
		zap.Int("rows", f.Rows),
		zap.Int("cols", f.Cols),
		zap.Int("zones", len(zones)),
		zap.Float64("global_max", stats.Max),
	)
	return &fieldStage{Raster: f, Grid: grid, Stats: stats, Zones: zones, Zonal: zs}, nil
}

func (p *Pipeline) loadTables(ctx context.Context, rc *RunContext) (*tablesStage, error) {
	d := rc.Config.Data

	opts := func(kind string) tabular.ReadOptions {
		return tabular.ReadOptions{Encoding: d.Encoding, Sheet: d.Sheet(kind)}
	}

	vehicles, err := tabular.LoadKeyed(ctx, tabular.KindVehicleMobility, d.Resolve(d.VehicleMobility), opts(tabular.KindVehicleMobility))
	if err != nil {
		return nil, err
	}
	socio, err := tabular.LoadKeyed(ctx, tabular.KindSocioEconomic, d.Resolve(d.SocioEconomic), opts(tabular.KindSocioEconomic))
	if err != nil {
		return nil, err
	}
	population, err := tabular.LoadKeyed(ctx, tabular.KindPopulation, d.Resolve(d.Population), opts(tabular.KindPopulation))
	if err != nil {
		return nil, err
	}

	return &tablesStage{
		Vehicles:   merge.Index(tabular.KindVehicleMobility, vehicles),
		Socio:      merge.Index(tabular.KindSocioEconomic, socio),
		Population: merge.AggregatePopulation(population),
	}, nil
}

// Series names as shown on the trends chart.
const (
	SeriesCO      = "CO_Level"
	SeriesAerosol = "Aerosol_Index"
)

func (p *Pipeline) loadTrends(ctx context.Context, rc *RunContext) ([]trends.Series, error) {
	d := rc.Config.Data
	sources := []struct {
		name, kind, path string
	}{
		{SeriesCO, tabular.KindTrendCO, d.Resolve(d.TrendCO)},
		{SeriesAerosol, tabular.KindTrendAerosol, d.Resolve(d.TrendAerosol)},
	}

	out := make([]trends.Series, 0, len(sources))
	for _, src := range sources {
		rows, err := tabular.LoadDated(ctx, src.kind, src.path, tabular.ReadOptions{Encoding: d.Encoding, Sheet: d.Sheet(src.kind)})
		if err != nil {
			return nil, err
		}
		out = append(out, trends.FromRows(src.name, rows))
	}
	return out, nil
}
