// Package export writes the scored municipality table to CSV, XLSX, SQLite
// and GeoJSON.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// WriteCSV writes records as UTF-8 CSV with a header row and no index
// column. Nulls are empty cells; floats use the shortest representation
// that parses back to the same value.
func WriteCSV(w io.Writer, pollutant string, records []model.MunicipalityRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(model.Columns(pollutant)); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}
	for _, r := range records {
		if err := cw.Write(buildRow(r)); err != nil {
			return eris.Wrap(err, "csv export: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "csv export: flush")
}

// ExportCSV writes records to a CSV file at path.
func ExportCSV(path, pollutant string, records []model.MunicipalityRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "csv export: create file")
	}
	if err := WriteCSV(f, pollutant, records); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "csv export: close file")
}

// buildRow maps a record to the column order of model.Columns.
func buildRow(r model.MunicipalityRecord) []string {
	pop := ""
	if r.Population != nil {
		pop = strconv.FormatInt(*r.Population, 10)
	}
	return []string{
		r.Name,
		formatFloat(r.PollutionLevel),
		formatFloat(r.VehiclesPer1000),
		formatFloat(r.HousingQualityIndex),
		pop,
		formatFloat(r.SDGScore),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ReadCSV parses a table written by WriteCSV. The pollutant is recovered
// from the "<POLLUTANT>_Level" header.
func ReadCSV(r io.Reader) (string, []model.MunicipalityRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return "", nil, eris.Wrap(err, "csv import: read header")
	}
	if len(header) != 6 {
		return "", nil, eris.Errorf("csv import: expected 6 columns, got %d", len(header))
	}
	pollutant, ok := model.PollutantFromColumn(header[1])
	if !ok {
		return "", nil, eris.Errorf("csv import: %q is not a pollution column", header[1])
	}
	want := model.Columns(pollutant)
	for i := range want {
		if strings.TrimSpace(header[i]) != want[i] {
			return "", nil, eris.Errorf("csv import: column %d is %q, want %q", i+1, header[i], want[i])
		}
	}

	var out []model.MunicipalityRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return "", nil, eris.Wrapf(err, "csv import: line %d", line)
		}
		rec := model.MunicipalityRecord{Name: row[0]}
		fields := []**float64{&rec.PollutionLevel, &rec.VehiclesPer1000, &rec.HousingQualityIndex}
		for i, dst := range fields {
			if *dst, err = parseFloat(row[i+1]); err != nil {
				return "", nil, eris.Wrapf(err, "csv import: line %d column %s", line, want[i+1])
			}
		}
		if row[4] != "" {
			p, err := strconv.ParseInt(row[4], 10, 64)
			if err != nil {
				return "", nil, eris.Wrapf(err, "csv import: line %d column %s", line, model.ColumnPopulation)
			}
			rec.Population = model.Int(p)
		}
		if rec.SDGScore, err = parseFloat(row[5]); err != nil {
			return "", nil, eris.Wrapf(err, "csv import: line %d column %s", line, model.ColumnSDGScore)
		}
		out = append(out, rec)
	}
	return pollutant, out, nil
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
