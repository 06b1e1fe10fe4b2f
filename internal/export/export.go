package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// Supported export formats.
const (
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatSQLite  = "sqlite"
	FormatGeoJSON = "geojson"
)

// Formats lists every supported format.
var Formats = []string{FormatCSV, FormatXLSX, FormatSQLite, FormatGeoJSON}

// IsFormat reports whether name is a supported format.
func IsFormat(name string) bool {
	for _, f := range Formats {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// FileName returns the output file name for a pollutant and format. SQLite
// exports share one database across pollutants.
func FileName(pollutant, format string) string {
	switch strings.ToLower(format) {
	case FormatSQLite:
		return "torino_sdg11.db"
	default:
		return fmt.Sprintf("torino_sdg11_%s.%s", strings.ToLower(pollutant), strings.ToLower(format))
	}
}

// Request carries one run's scored table to the exporters.
type Request struct {
	Dir       string
	RunID     string
	Pollutant string
	CreatedAt time.Time
	Records   []model.MunicipalityRecord
	Zones     []boundary.Zone
}

// Export writes req in each format and returns the written paths. It stops
// at the first failure.
func Export(ctx context.Context, formats []string, req Request) ([]string, error) {
	log := zap.L().With(zap.String("component", "export"), zap.String("run_id", req.RunID))

	if req.Dir != "" {
		if err := os.MkdirAll(req.Dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "export: create output dir")
		}
	}

	var paths []string
	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return paths, eris.Wrap(err, "export: cancelled")
		}
		path := filepath.Join(req.Dir, FileName(req.Pollutant, format))

		var err error
		switch strings.ToLower(format) {
		case FormatCSV:
			err = ExportCSV(path, req.Pollutant, req.Records)
		case FormatXLSX:
			err = ExportXLSX(path, req.Pollutant, req.Records)
		case FormatSQLite:
			err = exportSQLite(ctx, path, req)
		case FormatGeoJSON:
			err = exportGeoJSON(path, req)
		default:
			err = eris.Errorf("export: unknown format %q", format)
		}
		if err != nil {
			return paths, eris.Wrapf(err, "export: %s", format)
		}

		log.Info("exported table",
			zap.String("format", format),
			zap.String("path", path),
			zap.Int("rows", len(req.Records)),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

func exportSQLite(ctx context.Context, path string, req Request) error {
	sink, err := OpenSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer sink.Close() //nolint:errcheck
	return sink.Write(ctx, req.RunID, req.Pollutant, req.CreatedAt, req.Records)
}

func exportGeoJSON(path string, req Request) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "geojson export: create file")
	}
	if err := WriteGeoJSON(f, req.Pollutant, req.Zones, req.Records); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "geojson export: close file")
}
