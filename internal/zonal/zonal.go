// Package zonal reduces a pixel field to one mean per boundary zone.
package zonal

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/raster"
)

// ZoneStat is the mean of the valid pixels assigned to one zone. Mean is nil
// when no valid pixel centre falls inside the zone.
type ZoneStat struct {
	Name  string   `json:"name"`
	Mean  *float64 `json:"mean"`
	Count int      `json:"count"`
}

// Aggregator computes one statistic per zone over a field.
type Aggregator interface {
	Aggregate(ctx context.Context, zones []boundary.Zone, field *raster.Field) ([]ZoneStat, error)
}

// CentroidMean assigns a pixel to a zone when the pixel centre lies inside
// the zone's polygons (inside an exterior ring and outside its holes) and
// averages the valid pixels. A pixel may count towards several overlapping
// zones.
type CentroidMean struct{}

var _ Aggregator = CentroidMean{}

// Aggregate returns one ZoneStat per zone, in zone order.
func (CentroidMean) Aggregate(ctx context.Context, zones []boundary.Zone, field *raster.Field) ([]ZoneStat, error) {
	if field == nil {
		return nil, eris.New("zonal: nil field")
	}
	out := make([]ZoneStat, len(zones))
	for i, z := range zones {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "zonal: aggregate")
		}
		out[i] = zoneMean(z, field)
	}
	return out, nil
}

func zoneMean(z boundary.Zone, field *raster.Field) ZoneStat {
	st := ZoneStat{Name: z.Name}
	if z.Geometry == nil || z.Geometry.NumPolygons() == 0 {
		return st
	}

	b := z.Bounds()
	r0, r1, c0, c1 := field.CellRange(raster.Bounds{
		West: b.Min(0), South: b.Min(1), East: b.Max(0), North: b.Max(1),
	})

	layout := z.Geometry.Layout()
	var sum float64
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			v := field.At(r, c)
			if !field.IsValid(v) {
				continue
			}
			x, y := field.CellCenter(r, c)
			p := make(geom.Coord, layout.Stride())
			p[0], p[1] = x, y
			if !b.OverlapsPoint(layout, p) || !containsPoint(z.Geometry, p) {
				continue
			}
			sum += v
			st.Count++
		}
	}
	if st.Count > 0 {
		mean := sum / float64(st.Count)
		st.Mean = &mean
	}
	return st
}

// containsPoint reports whether p lies inside any polygon of mp: within the
// exterior ring and not strictly inside a hole. Points on a boundary count
// as inside.
func containsPoint(mp *geom.MultiPolygon, p geom.Coord) bool {
	layout := mp.Layout()
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(layout, p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for j := 1; j < poly.NumLinearRings(); j++ {
			if xy.LocatePointInRing(layout, p, poly.LinearRing(j).FlatCoords()) == location.Interior {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
