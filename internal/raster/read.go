package raster

import (
	"path/filepath"
	"strings"
)

// Read loads a single-band raster. ESRI ASCII grids (.asc) are parsed
// directly; everything else, GeoTIFF included, goes through GDAL.
func Read(path string) (*Field, error) {
	if strings.EqualFold(filepath.Ext(path), ".asc") {
		return ReadASCIIGrid(path)
	}
	return readGDAL(path)
}
