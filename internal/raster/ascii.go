package raster

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

// defaultNoData is the ESRI ASCII grid sentinel when NODATA_value is absent.
const defaultNoData = -9999

// MaxCells caps rows×cols for any raster input.
const MaxCells = 1 << 28

// ReadASCIIGrid loads an ESRI ASCII grid (.asc). A missing or malformed file
// yields a *resilience.SourceUnavailableError with source "raster".
func ReadASCIIGrid(path string) (*Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, resilience.NewSourceUnavailable("raster", path, eris.Wrap(err, "raster: open grid"))
	}
	defer f.Close() //nolint:errcheck

	field, err := ParseASCIIGrid(f)
	if err != nil {
		return nil, resilience.NewSourceUnavailable("raster", path, err)
	}
	return field, nil
}

// ParseASCIIGrid parses the ESRI ASCII grid format: a header of key/value
// lines (ncols, nrows, xllcorner|xllcenter, yllcorner|yllcenter, cellsize,
// optional NODATA_value) followed by nrows×ncols whitespace-separated values,
// north row first.
func ParseASCIIGrid(r io.Reader) (*Field, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	header := map[string]float64{}
	var data []float64
	var want int
	line := 0

	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		if data == nil && isHeaderKey(fields[0]) {
			if len(fields) != 2 {
				return nil, eris.Errorf("raster: line %d: malformed header %q", line, sc.Text())
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "raster: line %d: header %s", line, fields[0])
			}
			header[strings.ToLower(fields[0])] = v
			continue
		}

		if data == nil {
			n, err := headerShape(header)
			if err != nil {
				return nil, eris.Wrapf(err, "raster: line %d", line)
			}
			want = n
			data = make([]float64, 0, want)
		}

		for _, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "raster: line %d: bad cell value %q", line, tok)
			}
			if len(data) == want {
				return nil, eris.Errorf("raster: line %d: more than %d cell values", line, want)
			}
			data = append(data, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: read grid")
	}
	if data == nil {
		if _, err := headerShape(header); err != nil {
			return nil, err
		}
		return nil, eris.New("raster: grid has no cell values")
	}
	if len(data) != want {
		return nil, eris.Errorf("raster: expected %d cell values, got %d", want, len(data))
	}

	rows, cols := int(header["nrows"]), int(header["ncols"])
	cell := header["cellsize"]
	xll, yll := header["xllcorner"], header["yllcorner"]
	if v, ok := header["xllcenter"]; ok {
		xll = v - cell/2
	}
	if v, ok := header["yllcenter"]; ok {
		yll = v - cell/2
	}
	nodata := float64(defaultNoData)
	if v, ok := header["nodata_value"]; ok {
		nodata = v
	}
	return NewField(rows, cols, data, nodata, xll, yll, cell)
}

func isHeaderKey(s string) bool {
	switch strings.ToLower(s) {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

func headerShape(h map[string]float64) (int, error) {
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := h[k]; !ok {
			return 0, eris.Errorf("raster: header is missing %s", k)
		}
	}
	_, hasXC := h["xllcorner"]
	_, hasXM := h["xllcenter"]
	_, hasYC := h["yllcorner"]
	_, hasYM := h["yllcenter"]
	if !hasXC && !hasXM || !hasYC && !hasYM {
		return 0, eris.New("raster: header is missing the lower-left origin")
	}
	rows, err := dimension(h, "nrows")
	if err != nil {
		return 0, err
	}
	cols, err := dimension(h, "ncols")
	if err != nil {
		return 0, err
	}
	return checkShape(rows, cols)
}

// dimension reads a header count, which must be a positive integer no larger
// than MaxCells.
func dimension(h map[string]float64, key string) (int, error) {
	v := h[key]
	if v != math.Trunc(v) || v < 1 || v > MaxCells {
		return 0, eris.Errorf("raster: %s must be an integer in [1, %d], got %v", key, MaxCells, v)
	}
	return int(v), nil
}

// checkShape returns rows×cols, rejecting grids larger than MaxCells.
func checkShape(rows, cols int) (int, error) {
	if rows <= 0 || cols <= 0 {
		return 0, eris.Errorf("raster: invalid shape %dx%d", rows, cols)
	}
	if rows > MaxCells/cols {
		return 0, eris.Errorf("raster: %dx%d grid exceeds %d cells", rows, cols, MaxCells)
	}
	return rows * cols, nil
}
