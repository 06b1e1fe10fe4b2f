// Package model defines the records shared by the aggregation pipeline,
// its exporters, and the dashboard API.
package model

import (
	"sort"
	"strings"
)

// Output column names. The pollution column is pollutant-specific, see
// PollutionColumn.
const (
	ColumnMunicipality = "Municipality"
	ColumnVehicles     = "vehicle_per_1000"
	ColumnHousing      = "housing_quality_index"
	ColumnPopulation   = "Total"
	ColumnSDGScore     = "SDG_11_Score"

	pollutionSuffix = "_Level"
)

// PollutionColumn returns the output column holding a pollutant's zonal mean,
// e.g. "NO2_Level".
func PollutionColumn(pollutant string) string {
	return strings.ToUpper(pollutant) + pollutionSuffix
}

// PollutantFromColumn reverses PollutionColumn. The second result is false
// when col is not a pollution column.
func PollutantFromColumn(col string) (string, bool) {
	if !strings.HasSuffix(col, pollutionSuffix) || len(col) == len(pollutionSuffix) {
		return "", false
	}
	return strings.TrimSuffix(col, pollutionSuffix), true
}

// Columns returns the ordered output columns for a pollutant.
func Columns(pollutant string) []string {
	return []string{
		ColumnMunicipality,
		PollutionColumn(pollutant),
		ColumnVehicles,
		ColumnHousing,
		ColumnPopulation,
		ColumnSDGScore,
	}
}

// MunicipalityRecord is one merged row per municipality. Nil pointers are
// nulls: the municipality had no match in that source.
type MunicipalityRecord struct {
	Name                string   `json:"municipality"`
	PollutionLevel      *float64 `json:"pollution_level"`
	VehiclesPer1000     *float64 `json:"vehicle_per_1000"`
	HousingQualityIndex *float64 `json:"housing_quality_index"`
	Population          *int64   `json:"population"`
	SDGScore            *float64 `json:"sdg_11_score"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

// Value returns the numeric value of a column for sorting. The second result
// is false when the value is null. The pollution column may be given as
// "pollution" or as any "<POLLUTANT>_Level" name.
func (r MunicipalityRecord) Value(column string) (float64, bool) {
	switch {
	case strings.EqualFold(column, ColumnVehicles):
		return deref(r.VehiclesPer1000)
	case strings.EqualFold(column, ColumnHousing):
		return deref(r.HousingQualityIndex)
	case strings.EqualFold(column, ColumnPopulation), strings.EqualFold(column, "population"):
		if r.Population == nil {
			return 0, false
		}
		return float64(*r.Population), true
	case strings.EqualFold(column, ColumnSDGScore), strings.EqualFold(column, "score"):
		return deref(r.SDGScore)
	case strings.EqualFold(column, "pollution"), strings.HasSuffix(strings.ToLower(column), strings.ToLower(pollutionSuffix)):
		return deref(r.PollutionLevel)
	}
	return 0, false
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// IsSortColumn reports whether column is accepted by SortRecords.
func IsSortColumn(column string) bool {
	switch strings.ToLower(column) {
	case strings.ToLower(ColumnMunicipality), "name",
		strings.ToLower(ColumnVehicles),
		strings.ToLower(ColumnHousing),
		strings.ToLower(ColumnPopulation), "population",
		strings.ToLower(ColumnSDGScore), "score",
		"pollution":
		return true
	}
	_, ok := PollutantFromColumn(column)
	return ok
}

// SortRecords returns a sorted copy of records ordered by column. Nulls sort
// last in either direction; ties keep their input order.
func SortRecords(records []MunicipalityRecord, column string, descending bool) []MunicipalityRecord {
	out := make([]MunicipalityRecord, len(records))
	copy(out, records)

	byName := isNameColumn(column)

	sort.SliceStable(out, func(i, j int) bool {
		if byName {
			if descending {
				return out[i].Name > out[j].Name
			}
			return out[i].Name < out[j].Name
		}
		vi, oki := out[i].Value(column)
		vj, okj := out[j].Value(column)
		switch {
		case !oki:
			return false
		case !okj:
			return true
		}
		if descending {
			return vi > vj
		}
		return vi < vj
	})
	return out
}

// Top returns the first n records after sorting by column, skipping rows
// where the column is null.
func Top(records []MunicipalityRecord, column string, descending bool, n int) []MunicipalityRecord {
	if n <= 0 {
		return nil
	}
	sorted := SortRecords(records, column, descending)
	out := make([]MunicipalityRecord, 0, n)
	for _, r := range sorted {
		if len(out) == n {
			break
		}
		if _, ok := r.Value(column); !ok && !isNameColumn(column) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func isNameColumn(column string) bool {
	return strings.EqualFold(column, ColumnMunicipality) || strings.EqualFold(column, "name")
}
