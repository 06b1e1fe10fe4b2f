package merge

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/tabular"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

func kv(key string, v float64) tabular.KeyedValue {
	return tabular.KeyedValue{Key: key, Value: &v}
}

func TestAggregatePopulation(t *testing.T) {
	rows := []tabular.KeyedValue{
		kv("Torino", 400000),
		kv("torino ", 448885),
		kv("Chieri", 36000),
		{Key: "Chieri", Value: nil},
		kv("Rivoli", -5),
		kv("", 10),
		kv("Nichelino", 47000.6),
		{Key: "Pecetto", Value: nil},
	}
	got := AggregatePopulation(rows)
	assert.Equal(t, map[string]int64{
		"torino":    848885,
		"chieri":    36000,
		"rivoli":    0,
		"nichelino": 47001,
		"pecetto":   0,
	}, got)
}

func TestAggregatePopulation_RoundsOnceAfterSumming(t *testing.T) {
	got := AggregatePopulation([]tabular.KeyedValue{
		kv("Bra", 0.4), kv("Bra", 0.4), kv("Bra", 0.4),
		kv("Alba", 10.5), kv("Alba", 10.5),
	})
	assert.Equal(t, int64(1), got["bra"])
	assert.Equal(t, int64(21), got["alba"])
}

func TestAggregatePopulation_OrderIndependent(t *testing.T) {
	rows := []tabular.KeyedValue{
		kv("A", 1), kv("a", 2), kv("B", 3), kv(" A", 4), kv("b ", 5), kv("C", 6),
	}
	want := AggregatePopulation(rows)

	r := rand.New(rand.NewSource(7))
	for range 20 {
		shuffled := append([]tabular.KeyedValue(nil), rows...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, AggregatePopulation(shuffled))
	}
	assert.Equal(t, int64(7), want["a"])
}

func TestIndex_FirstWins(t *testing.T) {
	idx := Index("vehicle_mobility", []tabular.KeyedValue{
		kv("Torino", 620), kv("TORINO", 999), {Key: "Chieri"}, kv(" ", 1),
	})
	require.Len(t, idx, 2)
	assert.InDelta(t, 620, *idx["torino"], 1e-12)
	v, ok := idx["chieri"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func zs(name string, mean float64) zonal.ZoneStat {
	return zonal.ZoneStat{Name: name, Mean: &mean, Count: 1}
}

func TestMerge_LeftJoin(t *testing.T) {
	stats := []zonal.ZoneStat{zs("A", 10), zs("B ", 25), {Name: "C"}}
	vehicles := map[string]*float64{"a": model.Float(500), "z": model.Float(1)}
	socio := map[string]*float64{"a": model.Float(80)}
	pop := map[string]int64{"a": 1000, "c": 5}

	got := Merge(stats, vehicles, socio, pop)
	require.Len(t, got, 3)

	assert.Equal(t, model.MunicipalityRecord{
		Name:                "a",
		PollutionLevel:      model.Float(10),
		VehiclesPer1000:     model.Float(500),
		HousingQualityIndex: model.Float(80),
		Population:          model.Int(1000),
	}, got[0])

	assert.Equal(t, model.MunicipalityRecord{Name: "b", PollutionLevel: model.Float(25)}, got[1])

	assert.Equal(t, "c", got[2].Name)
	assert.Nil(t, got[2].PollutionLevel)
	assert.Equal(t, int64(5), *got[2].Population)
	assert.Nil(t, got[2].SDGScore)
}

func TestMerge_NoFanOutAndDropsAuxOnly(t *testing.T) {
	stats := []zonal.ZoneStat{zs("Torino", 1), zs("torino", 2), zs("Chieri", 3)}
	pop := AggregatePopulation([]tabular.KeyedValue{kv("Torino", 1), kv("Torino", 2), kv("Elsewhere", 9)})
	vehicles := Index("vehicle_mobility", []tabular.KeyedValue{kv("Torino", 600), kv("Torino", 700)})

	got := Merge(stats, vehicles, nil, pop)
	require.Len(t, got, 2)
	assert.Equal(t, "torino", got[0].Name)
	assert.InDelta(t, 1, *got[0].PollutionLevel, 1e-12)
	assert.InDelta(t, 600, *got[0].VehiclesPer1000, 1e-12)
	assert.Equal(t, int64(3), *got[0].Population)
	assert.Equal(t, "chieri", got[1].Name)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	v := 500.0
	vehicles := map[string]*float64{"a": &v}
	got := Merge([]zonal.ZoneStat{zs("a", 1)}, vehicles, nil, nil)
	v = 1
	assert.InDelta(t, 500, *got[0].VehiclesPer1000, 1e-12)
}
