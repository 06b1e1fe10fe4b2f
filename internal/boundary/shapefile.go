package boundary

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ReadShapefile reads polygon features from a shapefile and its .dbf.
func ReadShapefile(shpPath, nameField string) ([]Zone, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	nameIdx, ok := fieldIdx[strings.ToLower(nameField)]
	if !ok {
		return nil, eris.Errorf("boundary: shapefile has no %q attribute", nameField)
	}

	var zones []Zone
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		poly, ok := shape.(*shp.Polygon)
		if !ok || name == "" {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(fields))
		for field, idx := range fieldIdx {
			props[field] = strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		}
		zones = append(zones, Zone{Name: name, Geometry: mp, Properties: props})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: read shapefile")
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records", zap.String("path", shpPath), zap.Int("skipped", skipped))
	}
	return zones, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings are exteriors; counter-clockwise rings are holes of the
// exterior that contains them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var shells [][]float64
	var holes [][]float64
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("boundary: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if xy.SignedArea(geom.XY, flat) >= 0 {
			shells = append(shells, flat)
		} else {
			holes = append(holes, flat)
		}
	}
	if len(shells) == 0 {
		// Some writers ignore orientation; treat every ring as an exterior.
		shells, holes = holes, nil
	}

	polys := make([]*geom.Polygon, len(shells))
	for i, s := range shells {
		polys[i] = geom.NewPolygon(geom.XY)
		_ = polys[i].Push(geom.NewLinearRingFlat(geom.XY, s))
	}
	for _, h := range holes {
		owner := 0
		for i, s := range shells {
			if xy.IsPointInRing(geom.XY, geom.Coord{h[0], h[1]}, s) {
				owner = i
				break
			}
		}
		_ = polys[owner].Push(geom.NewLinearRingFlat(geom.XY, h))
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func readZippedShapefile(zipPath, nameField string) ([]Zone, error) {
	dir, err := os.MkdirTemp("", "sdg11-boundary-*")
	if err != nil {
		return nil, eris.Wrap(err, "boundary: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	files, err := ExtractZIP(zipPath, dir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".shp") {
			return ReadShapefile(f, nameField)
		}
	}
	return nil, eris.Errorf("boundary: no .shp in %s", zipPath)
}
