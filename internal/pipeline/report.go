package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// FormatReport renders a run as a plain-text markdown report.
func FormatReport(res *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# SDG 11 Report: %s\n", res.Pollutant)
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Started: %s (%dms)\n\n", res.StartedAt.Format("2006-01-02 15:04:05"), res.Duration)

	b.WriteString("## Sections\n")
	for _, s := range res.Sections {
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", s.Name, s.Status, s.Duration)
		if s.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", s.Error)
		}
	}
	b.WriteString("\n")

	if m := res.Map; m != nil {
		b.WriteString("## Map\n")
		fmt.Fprintf(&b, "- Center: %.5f, %.5f\n", m.Center[1], m.Center[0])
		fmt.Fprintf(&b, "- Zones: %d\n", len(m.Zones))
		if m.Degenerate {
			b.WriteString("- Field has no dynamic range; overlay is flat\n")
		}
		b.WriteString("\n")
	}

	if e := res.Exploration; e != nil {
		b.WriteString("## Data Exploration\n")
		fmt.Fprintf(&b, "- Valid cells: %d of %d\n", e.Stats.Valid, e.Stats.Total)
		fmt.Fprintf(&b, "- Range: %s to %s (mean %s)\n", num(e.Stats.Min), num(e.Stats.Max), num(e.Stats.Mean))
		writeTable(&b, e.Ranking, model.PollutionColumn(res.Pollutant), func(r model.MunicipalityRecord) *float64 { return r.PollutionLevel })
		b.WriteString("\n")
	}

	if t := res.Trends; t != nil {
		b.WriteString("## Trends\n")
		for _, s := range t.Summaries {
			if s.Count == 0 {
				fmt.Fprintf(&b, "- %s: no observations\n", s.Name)
				continue
			}
			fmt.Fprintf(&b, "- %s: %d points, %s to %s, min %s, max %s, mean %s\n",
				s.Name, s.Count, s.First.Format("2006-01-02"), s.Last.Format("2006-01-02"),
				num(s.Min), num(s.Max), num(s.Mean))
		}
		b.WriteString("\n")
	}

	if in := res.Insights; in != nil {
		b.WriteString("## Insights\n")
		for i, line := range in.Lines {
			fmt.Fprintf(&b, "%d. %s\n", i+1, line)
		}
		b.WriteString("\n")
	}

	if s := res.Socio; s != nil {
		b.WriteString("## Socio-Economic Analysis\n")
		fmt.Fprintf(&b, "- Global max %s: %s\n", res.Pollutant, num(s.GlobalMax))
		fmt.Fprintf(&b, "- Scored: %d of %d\n\n", s.Scored, len(s.Records))

		b.WriteString("### Risk Zones\n")
		writeTable(&b, s.RiskZones, model.PollutionColumn(res.Pollutant), func(r model.MunicipalityRecord) *float64 { return r.PollutionLevel })
		b.WriteString("\n### At-Risk Municipalities\n")
		writeTable(&b, s.AtRisk, model.ColumnSDGScore, func(r model.MunicipalityRecord) *float64 { return r.SDGScore })
		b.WriteString("\n")
	}

	return b.String()
}

func writeTable(b *strings.Builder, records []model.MunicipalityRecord, column string, value func(model.MunicipalityRecord) *float64) {
	if len(records) == 0 {
		b.WriteString("No municipalities.\n")
		return
	}
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", model.ColumnMunicipality, column)
	for _, r := range records {
		v := "n/a"
		if p := value(r); p != nil {
			v = num(*p)
		}
		fmt.Fprintf(b, "| %s | %s |\n", r.Name, v)
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
