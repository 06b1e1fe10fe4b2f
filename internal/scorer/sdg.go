package scorer

import (
	"math"
	"strconv"

	"github.com/torino-sdg/sdg11-cli/internal/config"
	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// Breakdown holds the three component scores, each in [0,1], and the
// composite score on a 0–100 scale rounded to two decimals.
type Breakdown struct {
	Pollution float64 `json:"pollution"`
	Vehicles  float64 `json:"vehicles"`
	Housing   float64 `json:"housing"`
	SDG       float64 `json:"sdg_11_score"`
}

// PollutionScore is 1 − clamp(level/globalMax, 0, 1). A non-positive
// globalMax means there is no pollution anywhere and scores 1.
func PollutionScore(level, globalMax float64) float64 {
	if globalMax <= 0 || math.IsNaN(globalMax) {
		return 1
	}
	return 1 - clamp01(level/globalMax)
}

// VehicleScore is 1 − clamp(vehicles/reference, 0, 1).
func VehicleScore(vehiclesPer1000, reference float64) float64 {
	return 1 - clamp01(vehiclesPer1000/reference)
}

// HousingScore is housing/scale clamped to [0,1]; a missing index scores 0.
func HousingScore(housing *float64, scale float64) float64 {
	if housing == nil {
		return 0
	}
	return clamp01(*housing / scale)
}

// Score computes the breakdown for one record. The second result is false
// when the pollution level or the vehicle density is null: the composite is
// then undefined and the record keeps a null score.
func Score(r model.MunicipalityRecord, globalMax float64, cfg config.ScoringConfig) (Breakdown, bool) {
	if r.PollutionLevel == nil || r.VehiclesPer1000 == nil {
		return Breakdown{}, false
	}
	b := Breakdown{
		Pollution: PollutionScore(*r.PollutionLevel, globalMax),
		Vehicles:  VehicleScore(*r.VehiclesPer1000, cfg.VehicleReference),
		Housing:   HousingScore(r.HousingQualityIndex, cfg.HousingScale),
	}
	b.SDG = Round2((b.Pollution + b.Vehicles + b.Housing) / 3 * 100)
	return b, true
}

// ScoreAll returns copies of records with SDGScore set, or nil where the
// score is undefined. records is not modified.
func ScoreAll(records []model.MunicipalityRecord, globalMax float64, cfg config.ScoringConfig) []model.MunicipalityRecord {
	out := make([]model.MunicipalityRecord, len(records))
	for i, r := range records {
		r.SDGScore = nil
		if b, ok := Score(r, globalMax, cfg); ok {
			r.SDGScore = model.Float(b.SDG)
		}
		out[i] = r
	}
	return out
}

// Round2 rounds x to two decimals the way Python's round(x, 2) does: the
// exact binary value is rounded, with exact halves going to the even digit.
func Round2(x float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	if err != nil {
		return x
	}
	return v
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
