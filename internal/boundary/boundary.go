// Package boundary loads the municipal boundary layer as named polygonal
// zones.
package boundary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

// Zone is one named boundary polygon.
type Zone struct {
	Name       string
	Geometry   *geom.MultiPolygon
	Properties map[string]any
}

// Bounds returns the zone's bounding box.
func (z Zone) Bounds() *geom.Bounds {
	return z.Geometry.Bounds()
}

// Load reads a boundary layer, dispatching on extension: .geojson and .json
// (FeatureCollection), .shp, and .zip (a zipped shapefile). nameField is the
// attribute holding the municipality name. Any failure is reported as a
// *resilience.SourceUnavailableError with source "boundaries".
func Load(path, nameField string) ([]Zone, error) {
	zones, err := load(path, nameField)
	if err != nil {
		return nil, resilience.NewSourceUnavailable("boundaries", path, err)
	}
	if len(zones) == 0 {
		return nil, resilience.NewSourceUnavailable("boundaries", path, eris.New("boundary: no named polygon features"))
	}
	return zones, nil
}

func load(path, nameField string) ([]Zone, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "boundary: open geojson")
		}
		defer f.Close() //nolint:errcheck
		return ReadGeoJSON(f, nameField)
	case ".shp":
		return ReadShapefile(path, nameField)
	case ".zip":
		return readZippedShapefile(path, nameField)
	default:
		return nil, eris.Errorf("boundary: unsupported file type %q", filepath.Ext(path))
	}
}

// Center returns the centroid of the first zone, used to centre the map.
func Center(zones []Zone) (geom.Coord, error) {
	if len(zones) == 0 {
		return nil, eris.New("boundary: no zones")
	}
	c, err := xy.Centroid(zones[0].Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: centroid")
	}
	return c, nil
}

// Names returns the zone names in order.
func Names(zones []Zone) []string {
	out := make([]string, len(zones))
	for i, z := range zones {
		out[i] = z.Name
	}
	return out
}

// toMultiPolygon promotes a Polygon to a single-member MultiPolygon. Other
// geometry types report false.
func toMultiPolygon(g geom.T) (*geom.MultiPolygon, bool) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, false
		}
		return t, true
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, false
		}
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil, false
		}
		return mp, true
	default:
		return nil, false
	}
}

func attrString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
