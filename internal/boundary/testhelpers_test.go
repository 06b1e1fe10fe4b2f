package boundary

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Torino"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "Moncalieri", "istat": 1156},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,0],[4,0],[4,2],[2,2],[2,0]]], [[[5,5],[6,5],[6,6],[5,6],[5,5]]]]}},
    {"type": "Feature", "properties": {"other": "x"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "Point"},
     "geometry": {"type": "Point", "coordinates": [1,1]}}
  ]
}`

// square returns a closed clockwise ring (shapefile exterior orientation).
func square(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}
}

// squareCCW returns a closed counter-clockwise ring (shapefile hole orientation).
func squareCCW(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
}

type shpFeature struct {
	name  string
	parts [][]shp.Point
}

// writeShapefile writes comuni.shp/.shx/.dbf into dir. go-shp's writer names
// the attribute file "<base>dbf", so it is renamed after Close.
func writeShapefile(t *testing.T, dir string, features []shpFeature) string {
	t.Helper()
	base := filepath.Join(dir, "comuni")
	path := base + ".shp"
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 40)}))
	for _, f := range features {
		poly := shp.Polygon(*shp.NewPolyLine(f.parts))
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, f.name))
	}
	w.Close()
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	return path
}

func zipFiles(t *testing.T, zipPath string, files ...string) {
	t.Helper()
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, f := range files {
		w, err := zw.Create(filepath.Base(f))
		require.NoError(t, err)
		in, err := os.Open(f)
		require.NoError(t, err)
		_, err = io.Copy(w, in)
		require.NoError(t, err)
		require.NoError(t, in.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}
