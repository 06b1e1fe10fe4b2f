package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/transform"
)

// FeatureCollection joins records back onto zone geometries by normalized
// name. Zones without a record keep only their name; feature order follows
// zones.
func FeatureCollection(pollutant string, zones []boundary.Zone, records []model.MunicipalityRecord) *geojson.FeatureCollection {
	byKey := make(map[string]model.MunicipalityRecord, len(records))
	for _, r := range records {
		k := transform.NormalizeKey(r.Name)
		if _, dup := byKey[k]; !dup {
			byKey[k] = r
		}
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	for _, z := range zones {
		props := map[string]interface{}{model.ColumnMunicipality: z.Name}
		if r, ok := byKey[transform.NormalizeKey(z.Name)]; ok {
			props[model.PollutionColumn(pollutant)] = r.PollutionLevel
			props[model.ColumnVehicles] = r.VehiclesPer1000
			props[model.ColumnHousing] = r.HousingQualityIndex
			props[model.ColumnPopulation] = r.Population
			props[model.ColumnSDGScore] = r.SDGScore
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         z.Name,
			Geometry:   z.Geometry,
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON encodes the joined feature collection to w.
func WriteGeoJSON(w io.Writer, pollutant string, zones []boundary.Zone, records []model.MunicipalityRecord) error {
	data, err := FeatureCollection(pollutant, zones, records).MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "geojson export: marshal")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "geojson export: write")
}
