package tabular

import (
	"context"
	_ "embed"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/torino-sdg/sdg11-cli/internal/resilience"
)

// Input kinds with a fixed column mapping.
const (
	KindVehicleMobility = "vehicle_mobility"
	KindSocioEconomic   = "socio_economic"
	KindPopulation      = "population"
	KindTrendCO         = "trend_co"
	KindTrendAerosol    = "trend_aerosol"
)

//go:embed schema.yaml
var schemaYAML []byte

// Mapping names the source columns for one input kind. Keyed kinds set Key;
// time series set Date.
type Mapping struct {
	Key   string `yaml:"key"`
	Date  string `yaml:"date"`
	Value string `yaml:"value"`
}

var schemas = mustLoadSchemas(schemaYAML)

func mustLoadSchemas(data []byte) map[string]Mapping {
	m, err := parseSchemas(data)
	if err != nil {
		panic(err)
	}
	return m
}

func parseSchemas(data []byte) (map[string]Mapping, error) {
	var m map[string]Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "tabular: parse schema table")
	}
	for kind, s := range m {
		if s.Value == "" || (s.Key == "") == (s.Date == "") {
			return nil, eris.Errorf("tabular: schema %q must set value and exactly one of key or date", kind)
		}
	}
	return m, nil
}

// Schema returns the column mapping for kind.
func Schema(kind string) (Mapping, error) {
	s, ok := schemas[kind]
	if !ok {
		return Mapping{}, eris.Errorf("tabular: unknown input kind %q", kind)
	}
	return s, nil
}

// Kinds lists the known input kinds in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(schemas))
	for k := range schemas {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KeyedValue is one row of a keyed source: the raw join key and a nullable
// measurement.
type KeyedValue struct {
	Key   string
	Value *float64
	Line  int // 1-based source line, header is line 1
}

// DatedValue is one row of a time-series source.
type DatedValue struct {
	Date  string
	Value *float64
	Line  int
}

// Keyed binds t to the mapping for kind and extracts (key, value) rows.
// Rows with an empty key are skipped. A missing column yields a
// *resilience.SchemaMismatchError.
func Keyed(kind string, t *Table) ([]KeyedValue, error) {
	s, err := Schema(kind)
	if err != nil {
		return nil, err
	}
	if s.Key == "" {
		return nil, eris.Errorf("tabular: %s is not a keyed source", kind)
	}
	keyIdx, err := columnIndex(kind, t.Header, s.Key)
	if err != nil {
		return nil, err
	}
	valIdx, err := columnIndex(kind, t.Header, s.Value)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "tabular"), zap.String("kind", kind))
	out := make([]KeyedValue, 0, len(t.Rows))
	for i, row := range t.Rows {
		key := strings.TrimSpace(cell(row, keyIdx))
		if key == "" {
			continue
		}
		v, ok := ParseCell(cell(row, valIdx))
		if !ok {
			log.Warn("unparseable value treated as null",
				zap.Int("line", i+2), zap.String("column", s.Value), zap.String("raw", cell(row, valIdx)))
		}
		out = append(out, KeyedValue{Key: key, Value: v, Line: i + 2})
	}
	return out, nil
}

// Dated binds t to the mapping for kind and extracts (date, value) rows.
// Rows with an empty date are skipped.
func Dated(kind string, t *Table) ([]DatedValue, error) {
	s, err := Schema(kind)
	if err != nil {
		return nil, err
	}
	if s.Date == "" {
		return nil, eris.Errorf("tabular: %s is not a time series", kind)
	}
	dateIdx, err := columnIndex(kind, t.Header, s.Date)
	if err != nil {
		return nil, err
	}
	valIdx, err := columnIndex(kind, t.Header, s.Value)
	if err != nil {
		return nil, err
	}

	out := make([]DatedValue, 0, len(t.Rows))
	for i, row := range t.Rows {
		date := strings.TrimSpace(cell(row, dateIdx))
		if date == "" {
			continue
		}
		v, _ := ParseCell(cell(row, valIdx))
		out = append(out, DatedValue{Date: date, Value: v, Line: i + 2})
	}
	return out, nil
}

func columnIndex(kind string, header []string, column string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == column {
			return i, nil
		}
	}
	return -1, &resilience.SchemaMismatchError{Kind: kind, Column: column, Header: header}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// ParseCell parses a numeric cell. Empty, "NaN", "nan" and "NA" are null
// and report ok. Unparseable text is null with ok false.
func ParseCell(raw string) (v *float64, ok bool) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "NaN", "nan", "NA", "N/A", "null":
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Decimal comma, e.g. "12,5".
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		}
		if err != nil {
			return nil, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, true
	}
	return &f, true
}

// LoadKeyed reads path and binds it to kind. Any failure, including a
// schema mismatch, is reported as a *resilience.SourceUnavailableError for
// kind.
func LoadKeyed(ctx context.Context, kind, path string, opts ReadOptions) ([]KeyedValue, error) {
	t, err := ReadRows(ctx, path, opts)
	if err != nil {
		return nil, resilience.NewSourceUnavailable(kind, path, err)
	}
	rows, err := Keyed(kind, t)
	return rows, resilience.NewSourceUnavailable(kind, path, err)
}

// LoadDated reads path and binds it to the time-series kind.
func LoadDated(ctx context.Context, kind, path string, opts ReadOptions) ([]DatedValue, error) {
	t, err := ReadRows(ctx, path, opts)
	if err != nil {
		return nil, resilience.NewSourceUnavailable(kind, path, err)
	}
	rows, err := Dated(kind, t)
	return rows, resilience.NewSourceUnavailable(kind, path, err)
}
