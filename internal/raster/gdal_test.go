//go:build gdal

package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lukeroth/gdal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

func writeGeoTIFF(t *testing.T, path string, gt [6]float64, nodata *float64, data []float64, cols, rows int) {
	t.Helper()
	drv, err := gdal.GetDriverByName("GTiff")
	require.NoError(t, err)
	ds := drv.Create(path, cols, rows, 1, gdal.Float64, nil)
	require.NoError(t, ds.SetGeoTransform(gt))
	band := ds.RasterBand(1)
	if nodata != nil {
		require.NoError(t, band.SetNoDataValue(*nodata))
	}
	require.NoError(t, band.IO(gdal.Write, 0, 0, cols, rows, data, cols, rows, 0, 0))
	ds.Close()
}

func TestRead_GeoTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no2_turin_clipped.tif")
	nodata := -1.0
	writeGeoTIFF(t, path, [6]float64{7.5, 0.5, 0, 46, 0, -0.25}, &nodata, []float64{1, 2, 3, 4, -1, 6}, 3, 2)

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Rows)
	assert.Equal(t, 3, f.Cols)
	assert.Equal(t, -1.0, f.NoData)
	assert.Equal(t, []float64{1, 2, 3, 4, -1, 6}, f.Data)
	assert.Equal(t, Bounds{West: 7.5, South: 45.5, East: 9, North: 46}, f.Bounds)
	assert.Equal(t, 0.5, f.CellSize)
	assert.Equal(t, 0.25, f.CellHeight)
	assert.Equal(t, 5, Summarize(f).Valid)
	assert.True(t, GDALEnabled)
}

func TestRead_GeoTIFFWithoutNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "so2.tif")
	writeGeoTIFF(t, path, [6]float64{0, 1, 0, 2, 0, -1}, nil, []float64{1, math.NaN(), 3, 4}, 2, 2)

	f, err := Read(path)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(f.NoData))
	assert.Equal(t, 3, Summarize(f).Valid)
}

func TestRead_GeoTIFFRejectsRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.tif")
	writeGeoTIFF(t, path, [6]float64{0, 1, 0.1, 2, 0, -1}, nil, []float64{1, 2, 3, 4}, 2, 2)

	_, err := Read(path)
	require.Error(t, err)
	assert.True(t, resilience.IsSourceUnavailable(err))
	assert.Contains(t, err.Error(), "rotated")
}

func TestRead_GDALUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(t, os.WriteFile(path, []byte("not a tiff"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
	assert.True(t, resilience.IsSourceUnavailable(err))
}
