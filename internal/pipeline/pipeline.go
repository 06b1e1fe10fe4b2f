// Package pipeline runs the municipal sustainability aggregation for one
// pollutant and assembles the dashboard sections from it.
package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/boundary"
	"github.com/torino-sdg/sdg11-cli/internal/config"
	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/raster"
	"github.com/torino-sdg/sdg11-cli/internal/resilience"
	"github.com/torino-sdg/sdg11-cli/internal/trends"
	"github.com/torino-sdg/sdg11-cli/internal/zonal"
)

// Pipeline computes dashboard runs. It holds no per-run state and may be
// shared by concurrent runs.
type Pipeline struct {
	cfg        *config.Config
	aggregator zonal.Aggregator
	clock      clockwork.Clock
}

// New creates a Pipeline. A nil aggregator uses zonal.CentroidMean and a
// nil clock the real clock.
func New(cfg *config.Config, agg zonal.Aggregator, clock clockwork.Clock) *Pipeline {
	if agg == nil {
		agg = zonal.CentroidMean{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{cfg: cfg, aggregator: agg, clock: clock}
}

// Result is the outcome of one run. Sections that failed or were not
// selected leave their view nil.
type Result struct {
	RunID     string                `json:"run_id"`
	Pollutant string                `json:"pollutant"`
	Section   string                `json:"section"`
	StartedAt time.Time             `json:"started_at"`
	Duration  int64                 `json:"duration_ms"`
	Sections  []model.SectionResult `json:"sections"`

	Map         *MapView         `json:"map,omitempty"`
	Exploration *ExplorationView `json:"exploration,omitempty"`
	Trends      *TrendsView      `json:"trends,omitempty"`
	Insights    *InsightsView    `json:"insights,omitempty"`
	Socio       *SocioView       `json:"socio,omitempty"`

	// Loaded inputs, kept for the renderers and exporters.
	Field  *raster.Field   `json:"-"`
	Grid   *raster.Grid    `json:"-"`
	Zones  []boundary.Zone `json:"-"`
	Series []trends.Series `json:"-"`
}

// Failed reports whether any section failed.
func (r *Result) Failed() bool {
	for _, s := range r.Sections {
		if s.Failed() {
			return true
		}
	}
	return false
}

// SectionResult returns the result of the named section.
func (r *Result) SectionResult(name string) (model.SectionResult, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return model.SectionResult{}, false
}

// NewRun creates the context for one run of pollutant and section.
func (p *Pipeline) NewRun(pollutant, section string) *RunContext {
	return NewRunContext(p.cfg, pollutant, section, p.clock)
}

// Run executes the sections selected by rc. A failing section is recorded in
// the result and does not stop the others; Run itself fails only when rc
// names an unknown pollutant or section. The caller owns rc.Cleanup.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext) (*Result, error) {
	selected, err := selectSections(rc.Section)
	if err != nil {
		return nil, err
	}
	if _, ok := rc.Config.Data.RasterPath(rc.Pollutant); !ok {
		return nil, eris.Errorf("pipeline: unknown pollutant %q", rc.Pollutant)
	}

	log := rc.Logger
	log.Info("pipeline: starting run", zap.String("section", rc.Section))

	start := rc.Clock.Now()
	res := &Result{
		RunID:     rc.ID.String(),
		Pollutant: rc.Pollutant,
		Section:   rc.Section,
		StartedAt: start.UTC(),
	}

	runners := map[string]sectionFunc{
		SectionMap:         p.runMap,
		SectionExploration: p.runExploration,
		SectionTrends:      p.runTrends,
		SectionInsights:    p.runInsights,
		SectionSocio:       p.runSocio,
	}

	st := &stages{}
	for _, name := range selected {
		if ctx.Err() != nil {
			res.Sections = append(res.Sections, model.SectionResult{Name: name, Status: model.SectionStatusSkipped})
			continue
		}
		fn := runners[name]
		res.Sections = append(res.Sections, p.trackSection(rc, name, func() (map[string]any, error) {
			return fn(ctx, rc, st, res)
		}))
	}

	res.Duration = rc.Clock.Since(start).Milliseconds()
	failed := 0
	for _, s := range res.Sections {
		if s.Failed() {
			failed++
		}
	}
	log.Info("pipeline: run complete",
		zap.Int("sections", len(res.Sections)),
		zap.Int("failed", failed),
		zap.Int64("duration_ms", res.Duration),
	)
	return res, nil
}

// Output is a finished run plus the overlay image bytes, read before the
// run's temporary files are removed.
type Output struct {
	Result  *Result
	Overlay []byte
}

// Execute runs pollutant and section in a fresh RunContext and removes its
// temporary files before returning.
func (p *Pipeline) Execute(ctx context.Context, pollutant, section string) (*Output, error) {
	rc := p.NewRun(pollutant, section)
	defer func() {
		if err := rc.Cleanup(); err != nil {
			rc.Logger.Warn("pipeline: cleanup failed", zap.Error(err))
		}
	}()

	res, err := p.Run(ctx, rc)
	if err != nil {
		return nil, err
	}

	out := &Output{Result: res}
	if res.Map != nil && res.Map.OverlayPath != "" {
		data, err := os.ReadFile(res.Map.OverlayPath)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: read overlay")
		}
		out.Overlay = data
	}
	return out, nil
}

type sectionFunc func(ctx context.Context, rc *RunContext, st *stages, res *Result) (map[string]any, error)

// trackSection runs fn and records its outcome. Errors are logged with the
// section name and never propagate.
func (p *Pipeline) trackSection(rc *RunContext, name string, fn func() (map[string]any, error)) model.SectionResult {
	start := rc.Clock.Now()
	meta, err := guard(name, fn)
	duration := rc.Clock.Since(start).Milliseconds()

	sr := model.SectionResult{Name: name, Duration: duration, Metadata: meta}
	if err != nil {
		sr.Status = model.SectionStatusFailed
		sr.Error = err.Error()
		sr.ErrorKind = resilience.Kind(err)
		rc.Logger.Error("pipeline: section failed",
			zap.String("section", name),
			zap.String("kind", sr.ErrorKind),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return sr
	}

	sr.Status = model.SectionStatusComplete
	rc.Logger.Info("pipeline: section complete",
		zap.String("section", name),
		zap.Int64("duration_ms", duration),
	)
	return sr
}

// guard converts a panic in fn into an error so one section cannot take the
// run down.
func guard(name string, fn func() (map[string]any, error)) (meta map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			meta, err = nil, eris.Errorf("pipeline: section %s panicked: %v", name, r)
		}
	}()
	return fn()
}

// IsSection reports whether name selects a section, "all" included.
func IsSection(name string) bool {
	_, err := selectSections(name)
	return err == nil
}

func selectSections(section string) ([]string, error) {
	s := strings.ToLower(strings.TrimSpace(section))
	if s == "" || s == SectionAll {
		return Sections, nil
	}
	for _, name := range Sections {
		if name == s {
			return []string{name}, nil
		}
	}
	return nil, eris.Errorf("pipeline: unknown section %q", section)
}
