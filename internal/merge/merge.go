// Package merge joins the zonal pollution table with the auxiliary
// municipality tables into one record per municipality.
package merge

import (
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/tabular"
	"github.com/torino-sdg/sdg11-cli/internal/transform"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

// AggregatePopulation sums population rows sharing a normalized name and
// rounds each total once. Null and negative values add nothing, but every
// named row registers its municipality, so a name whose rows are all null
// totals 0 rather than staying null. Values are summed in sorted order, which
// makes the result independent of row order.
func AggregatePopulation(rows []tabular.KeyedValue) map[string]int64 {
	log := zap.L().With(zap.String("component", "merge"))
	values := make(map[string][]float64)
	for _, r := range rows {
		key := transform.NormalizeKey(r.Key)
		if key == "" {
			continue
		}
		if _, ok := values[key]; !ok {
			values[key] = nil
		}
		if r.Value == nil {
			continue
		}
		v := *r.Value
		if v < 0 {
			log.Warn("skipping negative population", zap.String("municipality", key), zap.Int("line", r.Line), zap.Float64("value", v))
			continue
		}
		values[key] = append(values[key], v)
	}

	out := make(map[string]int64, len(values))
	for key, vs := range values {
		sort.Float64s(vs)
		out[key] = int64(math.Round(floats.Sum(vs)))
	}
	return out
}

// Index maps normalized keys to values. When a key repeats, the first
// occurrence wins and the duplicate is logged.
func Index(kind string, rows []tabular.KeyedValue) map[string]*float64 {
	log := zap.L().With(zap.String("component", "merge"), zap.String("kind", kind))
	out := make(map[string]*float64, len(rows))
	for _, r := range rows {
		key := transform.NormalizeKey(r.Key)
		if key == "" {
			continue
		}
		if _, dup := out[key]; dup {
			log.Warn("duplicate municipality, keeping first", zap.String("municipality", key), zap.Int("line", r.Line))
			continue
		}
		out[key] = r.Value
	}
	return out
}

// Merge left-joins the auxiliary tables onto the zonal table. The output has
// one record per distinct normalized zone name, in zonal order; names found
// only in an auxiliary table are dropped and unmatched columns stay nil.
// SDGScore is left nil.
func Merge(stats []zonal.ZoneStat, vehicles, socio map[string]*float64, population map[string]int64) []model.MunicipalityRecord {
	log := zap.L().With(zap.String("component", "merge"))
	seen := make(map[string]bool, len(stats))
	out := make([]model.MunicipalityRecord, 0, len(stats))
	for _, s := range stats {
		key := transform.NormalizeKey(s.Name)
		if key == "" {
			continue
		}
		if seen[key] {
			log.Warn("duplicate zone name, keeping first", zap.String("municipality", key))
			continue
		}
		seen[key] = true

		rec := model.MunicipalityRecord{Name: key}
		if s.Mean != nil {
			rec.PollutionLevel = model.Float(*s.Mean)
		}
		if v := vehicles[key]; v != nil {
			rec.VehiclesPer1000 = model.Float(*v)
		}
		if v := socio[key]; v != nil {
			rec.HousingQualityIndex = model.Float(*v)
		}
		if p, ok := population[key]; ok {
			rec.Population = model.Int(p)
		}
		out = append(out, rec)
	}
	return out
}
