//go:build gdal

package raster

import (
	"math"

	"github.com/lukeroth/gdal"
	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

// GDALEnabled reports whether this build can read GDAL formats.
const GDALEnabled = true

func readGDAL(path string) (*Field, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, resilience.NewSourceUnavailable("raster", path, eris.Wrap(err, "raster: open dataset"))
	}
	defer ds.Close()

	f, err := fieldFromDataset(ds)
	if err != nil {
		return nil, resilience.NewSourceUnavailable("raster", path, err)
	}
	return f, nil
}

// fieldFromDataset reads band 1 of ds. The geotransform must be north-up;
// its origin is the upper-left corner of the upper-left pixel.
func fieldFromDataset(ds gdal.Dataset) (*Field, error) {
	if ds.RasterCount() < 1 {
		return nil, eris.New("raster: dataset has no bands")
	}
	band := ds.RasterBand(1)
	cols, rows := band.XSize(), band.YSize()
	n, err := checkShape(rows, cols)
	if err != nil {
		return nil, err
	}

	gt := ds.GeoTransform()
	if gt[2] != 0 || gt[4] != 0 {
		return nil, eris.Errorf("raster: rotated geotransform %v is not supported", gt)
	}
	cellW, cellH := gt[1], -gt[5]
	if cellW <= 0 || cellH <= 0 {
		return nil, eris.Errorf("raster: geotransform %v is not north-up", gt)
	}

	data := make([]float64, n)
	if err := band.IO(gdal.Read, 0, 0, cols, rows, data, cols, rows, 0, 0); err != nil {
		return nil, eris.Wrap(err, "raster: read band 1")
	}

	nodata, ok := band.NoDataValue()
	if !ok {
		nodata = math.NaN()
	}
	return NewFieldRect(rows, cols, data, nodata, gt[0], gt[3], cellW, cellH)
}
