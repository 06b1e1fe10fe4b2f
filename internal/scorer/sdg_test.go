package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torino-sdg/sdg11-cli/internal/config"
	"github.com/torino-sdg/sdg11-cli/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }

func TestPollutionScore(t *testing.T) {
	tests := []struct {
		name      string
		level     float64
		globalMax float64
		want      float64
	}{
		{"zero level", 0, 40, 1.0},
		{"at global max", 40, 40, 0.0},
		{"quarter", 10, 40, 0.75},
		{"above max clamps", 80, 40, 0.0},
		{"negative level clamps", -5, 40, 1.0},
		{"zero max", 0, 0, 1.0},
		{"negative max", 3, -1, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PollutionScore(tt.level, tt.globalMax), 1e-12)
		})
	}
}

func TestVehicleScore(t *testing.T) {
	tests := []struct {
		name     string
		vehicles float64
		want     float64
	}{
		{"none", 0, 1.0},
		{"half", 500, 0.5},
		{"at reference", 1000, 0.0},
		{"above reference clamps", 1500, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VehicleScore(tt.vehicles, 1000)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestHousingScore(t *testing.T) {
	assert.Equal(t, 0.0, HousingScore(nil, 100))
	assert.InDelta(t, 0.8, HousingScore(ptrFloat64(80), 100), 1e-12)
	assert.InDelta(t, 1.0, HousingScore(ptrFloat64(120), 100), 1e-12)
}

func TestScore_EndToEndScenarioA(t *testing.T) {
	r := model.MunicipalityRecord{
		Name:                "a",
		PollutionLevel:      ptrFloat64(10),
		VehiclesPer1000:     ptrFloat64(500),
		HousingQualityIndex: ptrFloat64(80),
	}
	b, ok := Score(r, 40, DefaultScoringConfig())
	require.True(t, ok)
	assert.InDelta(t, 0.75, b.Pollution, 1e-12)
	assert.InDelta(t, 0.5, b.Vehicles, 1e-12)
	assert.InDelta(t, 0.8, b.Housing, 1e-12)
	assert.Equal(t, 68.33, b.SDG)
}

func TestScore_NullPolicy(t *testing.T) {
	cfg := DefaultScoringConfig()

	_, ok := Score(model.MunicipalityRecord{Name: "b", VehiclesPer1000: ptrFloat64(1)}, 40, cfg)
	assert.False(t, ok, "null pollution")

	_, ok = Score(model.MunicipalityRecord{Name: "b", PollutionLevel: ptrFloat64(25)}, 40, cfg)
	assert.False(t, ok, "null vehicles")

	b, ok := Score(model.MunicipalityRecord{Name: "c", PollutionLevel: ptrFloat64(0), VehiclesPer1000: ptrFloat64(0)}, 40, cfg)
	require.True(t, ok, "null housing scores 0")
	assert.Equal(t, 66.67, b.SDG)
}

func TestScoreAll(t *testing.T) {
	in := []model.MunicipalityRecord{
		{Name: "a", PollutionLevel: ptrFloat64(10), VehiclesPer1000: ptrFloat64(500), HousingQualityIndex: ptrFloat64(80)},
		{Name: "b", PollutionLevel: ptrFloat64(25)},
		{Name: "c", SDGScore: ptrFloat64(99)},
	}
	out := ScoreAll(in, 40, DefaultScoringConfig())
	require.Len(t, out, 3)

	require.NotNil(t, out[0].SDGScore)
	assert.Equal(t, 68.33, *out[0].SDGScore)
	assert.Nil(t, out[1].SDGScore)
	assert.Nil(t, out[2].SDGScore)

	// input untouched
	assert.Nil(t, in[0].SDGScore)
	assert.Equal(t, 99.0, *in[2].SDGScore)
}

func TestScore_RangeIsZeroToHundred(t *testing.T) {
	cfg := DefaultScoringConfig()
	for _, p := range []float64{0, 5, 40, 100} {
		for _, v := range []float64{0, 400, 1000, 5000} {
			for _, h := range []*float64{nil, ptrFloat64(0), ptrFloat64(100)} {
				b, ok := Score(model.MunicipalityRecord{PollutionLevel: &p, VehiclesPer1000: &v, HousingQualityIndex: h}, 40, cfg)
				require.True(t, ok)
				assert.GreaterOrEqual(t, b.SDG, 0.0)
				assert.LessOrEqual(t, b.SDG, 100.0)
			}
		}
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 68.33, Round2(68.33333))
	assert.Equal(t, 66.67, Round2(66.666666))
	assert.Equal(t, 0.0, Round2(0.001))
	assert.Equal(t, 100.0, Round2(100))
}

func TestRound2_MatchesPythonRounding(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.125, 0.12},
		{0.375, 0.38},
		{-0.125, -0.12},
		{2.675, 2.67},
		{1.005, 1.0},
		{68.335, 68.33},
		{50.005, 50.01},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultScoringConfig()))

	err := ValidateConfig(config.ScoringConfig{VehicleReference: 0, HousingScale: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vehicle_reference")
	assert.Contains(t, err.Error(), "housing_scale")
}
