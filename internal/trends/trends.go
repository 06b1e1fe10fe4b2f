// Package trends turns the pollutant time-series sources into dated series
// and their summaries.
package trends

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/torino-sdg/sdg11-cli/internal/tabular"
)

// Point is one observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a named, date-ordered time series.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"02/01/2006",
}

// ParseDate accepts ISO dates and timestamps, "Jan 2, 2006", dd/mm/yyyy and
// Unix epoch milliseconds.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 10 {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, eris.Errorf("trends: unrecognized date %q", s)
}

// FromRows builds a series from dated rows. Rows with a null value or an
// unparseable date are dropped; points are sorted by date.
func FromRows(name string, rows []tabular.DatedValue) Series {
	log := zap.L().With(zap.String("component", "trends"), zap.String("series", name))
	s := Series{Name: name, Points: make([]Point, 0, len(rows))}
	var dropped int
	for _, r := range rows {
		if r.Value == nil {
			dropped++
			continue
		}
		d, err := ParseDate(r.Date)
		if err != nil {
			dropped++
			log.Debug("dropping row", zap.Int("line", r.Line), zap.Error(err))
			continue
		}
		s.Points = append(s.Points, Point{Date: d, Value: *r.Value})
	}
	sort.SliceStable(s.Points, func(i, j int) bool { return s.Points[i].Date.Before(s.Points[j].Date) })
	if dropped > 0 {
		log.Info("dropped rows without a date or value", zap.Int("dropped", dropped))
	}
	return s
}

// MonthlyMean is the mean of one calendar month's observations.
type MonthlyMean struct {
	Month string  `json:"month"` // YYYY-MM
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Summary describes one series.
type Summary struct {
	Name    string        `json:"name"`
	Count   int           `json:"count"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Mean    float64       `json:"mean"`
	First   time.Time     `json:"first"`
	Last    time.Time     `json:"last"`
	Monthly []MonthlyMean `json:"monthly"`
}

// Summarize computes the summary of s. An empty series yields a summary
// with Count 0.
func Summarize(s Series) Summary {
	sum := Summary{Name: s.Name, Count: len(s.Points)}
	if len(s.Points) == 0 {
		return sum
	}
	vals := s.Values()
	sum.Min = floats.Min(vals)
	sum.Max = floats.Max(vals)
	sum.Mean = stat.Mean(vals, nil)
	sum.First = s.Points[0].Date
	sum.Last = s.Points[len(s.Points)-1].Date

	byMonth := map[string][]float64{}
	var months []string
	for _, p := range s.Points {
		m := p.Date.Format("2006-01")
		if _, ok := byMonth[m]; !ok {
			months = append(months, m)
		}
		byMonth[m] = append(byMonth[m], p.Value)
	}
	sort.Strings(months)
	for _, m := range months {
		sum.Monthly = append(sum.Monthly, MonthlyMean{Month: m, Mean: stat.Mean(byMonth[m], nil), Count: len(byMonth[m])})
	}
	return sum
}

// Values returns the series values in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
