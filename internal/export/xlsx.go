package export

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// SheetName is the worksheet written by ExportXLSX.
const SheetName = "SDG11"

// ExportXLSX writes records to a single-sheet workbook at path. Numeric
// cells are stored as numbers; nulls are left blank.
func ExportXLSX(path, pollutant string, records []model.MunicipalityRecord) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return eris.Wrap(err, "xlsx export: rename sheet")
	}

	for i, header := range model.Columns(pollutant) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return eris.Wrap(err, "xlsx export: header cell")
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return eris.Wrap(err, "xlsx export: write header")
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, 22); err != nil {
			return eris.Wrap(err, "xlsx export: column width")
		}
	}

	for i, r := range records {
		row := i + 2
		values := []any{r.Name, deref(r.PollutionLevel), deref(r.VehiclesPer1000), deref(r.HousingQualityIndex), nil, deref(r.SDGScore)}
		if r.Population != nil {
			values[4] = *r.Population
		}
		for j, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return eris.Wrap(err, "xlsx export: cell name")
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return eris.Wrapf(err, "xlsx export: write %s", cell)
			}
		}
	}

	return eris.Wrap(f.SaveAs(path), "xlsx export: save")
}

// deref returns *v, or an untyped nil so the cell is skipped.
func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
