package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Grid is a normalized field: every cell in [0,1]. Valid records which cells
// held a measurement in the source field; missing cells are 0 in Data.
type Grid struct {
	Rows       int
	Cols       int
	Data       []float64
	Valid      []bool
	Degenerate bool // no dynamic range; Data is all zero
}

// At returns the normalized value at (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Cols+col]
}

// Normalize rescales f to [0,1] using the min and max of its valid cells.
// Nodata and non-finite cells become 0. A field with no valid cells or a
// single distinct value yields an all-zero grid flagged Degenerate.
func Normalize(f *Field) *Grid {
	g := &Grid{
		Rows:  f.Rows,
		Cols:  f.Cols,
		Data:  make([]float64, len(f.Data)),
		Valid: make([]bool, len(f.Data)),
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range f.Data {
		if !f.IsValid(v) {
			continue
		}
		g.Valid[i] = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	if math.IsInf(lo, 1) || span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		g.Degenerate = true
		return g
	}

	for i, v := range f.Data {
		if !g.Valid[i] {
			continue
		}
		n := (v - lo) / span
		switch {
		case math.IsNaN(n) || math.IsInf(n, 0):
			n = 0
		case n < 0:
			n = 0
		case n > 1:
			n = 1
		}
		g.Data[i] = n
	}
	return g
}

// Stats summarizes the valid cells of a field.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Valid  int     `json:"valid_cells"`
	Total  int     `json:"total_cells"`
}

// Summarize computes global statistics over the valid cells. Max is the
// unnormalized global maximum used as the pollution score denominator. A
// field with no valid cells reports zeros.
func Summarize(f *Field) Stats {
	vals := f.ValidValues()
	s := Stats{Valid: len(vals), Total: len(f.Data)}
	if len(vals) == 0 {
		return s
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	if len(vals) == 1 {
		s.Mean = vals[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	return s
}

// Downsample keeps every step-th row and column of g. A step below 2
// returns g unchanged.
func Downsample(g *Grid, step int) *Grid {
	if step < 2 {
		return g
	}
	rows := (g.Rows + step - 1) / step
	cols := (g.Cols + step - 1) / step
	out := &Grid{
		Rows:       rows,
		Cols:       cols,
		Data:       make([]float64, 0, rows*cols),
		Valid:      make([]bool, 0, rows*cols),
		Degenerate: g.Degenerate,
	}
	for r := 0; r < g.Rows; r += step {
		for c := 0; c < g.Cols; c += step {
			i := r*g.Cols + c
			out.Data = append(out.Data, g.Data[i])
			out.Valid = append(out.Valid, g.Valid[i])
		}
	}
	return out
}

// Bin is one histogram bucket over [Low, High).
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Positive returns the strictly positive normalized values of g.
func Positive(g *Grid) []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Histogram buckets the strictly positive values of g into bins equal-width
// bins over (0,1]. The last bin is closed on the right.
func Histogram(g *Grid, bins int) []Bin {
	if bins <= 0 {
		return nil
	}
	out := make([]Bin, bins)
	width := 1.0 / float64(bins)
	for i := range out {
		out[i].Low = float64(i) * width
		out[i].High = float64(i+1) * width
	}
	for _, v := range Positive(g) {
		i := int(v / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
