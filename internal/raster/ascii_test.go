package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

const sampleGrid = `ncols        2
nrows        2
xllcorner    7.5
yllcorner    45.0
cellsize     0.5
NODATA_value -1
10 20
30 40
`

func TestParseASCIIGrid(t *testing.T) {
	f, err := ParseASCIIGrid(strings.NewReader(sampleGrid))
	require.NoError(t, err)
	assert.Equal(t, 2, f.Rows)
	assert.Equal(t, 2, f.Cols)
	assert.Equal(t, -1.0, f.NoData)
	assert.Equal(t, []float64{10, 20, 30, 40}, f.Data)
	assert.Equal(t, Bounds{West: 7.5, South: 45.0, East: 8.5, North: 46.0}, f.Bounds)
	assert.InDelta(t, 40, Summarize(f).Max, 1e-12)
}

func TestParseASCIIGrid_CenterOriginAndWrappedRows(t *testing.T) {
	in := "NCOLS 3\nNROWS 2\nXLLCENTER 1.5\nYLLCENTER 0.5\nCELLSIZE 1\n1 2\n3 4 5\n6\n"
	f, err := ParseASCIIGrid(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, Bounds{West: 1, South: 0, East: 4, North: 2}, f.Bounds)
	assert.Equal(t, float64(defaultNoData), f.NoData)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Data)
}

func TestParseASCIIGrid_Errors(t *testing.T) {
	tests := []struct {
		name, in, msg string
	}{
		{"missing ncols", "nrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n", "missing ncols"},
		{"missing origin", "ncols 1\nnrows 1\ncellsize 1\n1\n", "lower-left origin"},
		{"bad value", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc\n", "line 6"},
		{"too few", "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n", "expected 2 cell values, got 1"},
		{"too many", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n", "more than 1"},
		{"no cells", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n", "no cell values"},
		{"bad header", "ncols x\n", "line 1"},
		{"huge shape", "ncols 4000000000\nnrows 4000000000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n", "must be an integer in [1, 268435456]"},
		{"overflowing product", "ncols 100000\nnrows 100000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n", "exceeds"},
		{"fractional rows", "ncols 2\nnrows 1.5\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n", "nrows must be an integer"},
		{"zero cols", "ncols 0\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n", "ncols must be an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseASCIIGrid(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReadASCIIGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no2.asc")
	require.NoError(t, os.WriteFile(path, []byte(sampleGrid), 0o644))

	f, err := ReadASCIIGrid(path)
	require.NoError(t, err)
	assert.Equal(t, 4, len(f.Data))
}

func TestReadASCIIGrid_MissingIsSourceUnavailable(t *testing.T) {
	_, err := ReadASCIIGrid(filepath.Join(t.TempDir(), "nope.asc"))
	require.Error(t, err)
	assert.True(t, resilience.IsSourceUnavailable(err))
}

func TestReadASCIIGrid_MalformedIsSourceUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.asc")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))
	_, err := ReadASCIIGrid(path)
	require.Error(t, err)
	assert.True(t, resilience.IsSourceUnavailable(err))
}
