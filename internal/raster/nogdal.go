//go:build !gdal

package raster

import (
	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

// GDALEnabled reports whether this build can read GDAL formats.
const GDALEnabled = false

func readGDAL(path string) (*Field, error) {
	return nil, resilience.NewSourceUnavailable("raster", path,
		eris.New("raster: GeoTIFF input needs a build with -tags gdal"))
}
