package boundary

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ReadGeoJSON decodes a FeatureCollection. Features without a name or
// without polygonal geometry are skipped.
func ReadGeoJSON(r io.Reader, nameField string) ([]Zone, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geojson")
	}

	log := zap.L().With(zap.String("component", "boundary"))
	zones := make([]Zone, 0, len(fc.Features))
	var skipped int
	for i, f := range fc.Features {
		if f == nil {
			skipped++
			continue
		}
		name := attrString(f.Properties[nameField])
		mp, ok := toMultiPolygon(f.Geometry)
		if name == "" || !ok {
			skipped++
			log.Debug("skipping feature", zap.Int("index", i), zap.String("name", name), zap.Bool("polygonal", ok))
			continue
		}
		zones = append(zones, Zone{Name: name, Geometry: mp, Properties: f.Properties})
	}

	if skipped > 0 {
		log.Debug("boundary: skipped geojson features", zap.Int("skipped", skipped))
	}
	return zones, nil
}
