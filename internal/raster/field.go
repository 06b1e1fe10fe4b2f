// Package raster holds single-band pixel fields and the normalization,
// statistics and overlay rendering derived from them.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Bounds is a geographic bounding box in the raster's coordinate system.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Field is a rows×cols grid of raw measurements stored row-major, row 0 at
// the north edge. CellSize is the pixel width and CellHeight the pixel
// height; they differ only for non-square pixels.
type Field struct {
	Rows       int
	Cols       int
	Data       []float64
	NoData     float64
	Bounds     Bounds
	CellSize   float64
	CellHeight float64
}

// NewField validates the shape of data and derives Bounds from the
// lower-left corner and a square cell size.
func NewField(rows, cols int, data []float64, nodata, xll, yll, cellSize float64) (*Field, error) {
	b := Bounds{West: xll, South: yll, East: xll + float64(cols)*cellSize, North: yll + float64(rows)*cellSize}
	return newField(rows, cols, data, nodata, b, cellSize, cellSize)
}

// NewFieldRect is NewField for pixels of width cellW and height cellH,
// anchored at the upper-left corner (west, north).
func NewFieldRect(rows, cols int, data []float64, nodata, west, north, cellW, cellH float64) (*Field, error) {
	b := Bounds{West: west, South: north - float64(rows)*cellH, East: west + float64(cols)*cellW, North: north}
	return newField(rows, cols, data, nodata, b, cellW, cellH)
}

func newField(rows, cols int, data []float64, nodata float64, b Bounds, cellW, cellH float64) (*Field, error) {
	if rows <= 0 || cols <= 0 {
		return nil, eris.Errorf("raster: invalid shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, eris.Errorf("raster: expected %d cells, got %d", rows*cols, len(data))
	}
	if cellW <= 0 || cellH <= 0 {
		return nil, eris.Errorf("raster: cell size must be > 0, got %vx%v", cellW, cellH)
	}
	return &Field{
		Rows:       rows,
		Cols:       cols,
		Data:       data,
		NoData:     nodata,
		CellSize:   cellW,
		CellHeight: cellH,
		Bounds:     b,
	}, nil
}

// At returns the raw value at (row, col).
func (f *Field) At(row, col int) float64 {
	return f.Data[row*f.Cols+col]
}

// IsValid reports whether v is a real measurement: finite and not the
// nodata sentinel.
func (f *Field) IsValid(v float64) bool {
	return v != f.NoData && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CellCenter returns the coordinates of the centre of cell (row, col).
func (f *Field) CellCenter(row, col int) (x, y float64) {
	x = f.Bounds.West + (float64(col)+0.5)*f.CellSize
	y = f.Bounds.North - (float64(row)+0.5)*f.cellHeight()
	return x, y
}

// CellRange returns the half-open row and column ranges whose cell centres
// can fall inside b. The ranges are clipped to the field.
func (f *Field) CellRange(b Bounds) (row0, row1, col0, col1 int) {
	col0 = clampIndex(int(math.Floor((b.West-f.Bounds.West)/f.CellSize-0.5)), f.Cols)
	col1 = clampIndex(int(math.Ceil((b.East-f.Bounds.West)/f.CellSize-0.5))+1, f.Cols)
	row0 = clampIndex(int(math.Floor((f.Bounds.North-b.North)/f.cellHeight()-0.5)), f.Rows)
	row1 = clampIndex(int(math.Ceil((f.Bounds.North-b.South)/f.cellHeight()-0.5))+1, f.Rows)
	return row0, row1, col0, col1
}

// cellHeight falls back to CellSize for fields built as struct literals.
func (f *Field) cellHeight() float64 {
	if f.CellHeight > 0 {
		return f.CellHeight
	}
	return f.CellSize
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// ValidValues returns the valid cells in row-major order.
func (f *Field) ValidValues() []float64 {
	out := make([]float64, 0, len(f.Data))
	for _, v := range f.Data {
		if f.IsValid(v) {
			out = append(out, v)
		}
	}
	return out
}
