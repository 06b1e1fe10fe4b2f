package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/model"
)

// RunOutcome summarizes one finished pipeline run.
type RunOutcome struct {
	RunID     string
	Pollutant string
	At        time.Time
	Duration  time.Duration
	Sections  []model.SectionResult
	Scored    int
}

// Failed reports whether any section of the run failed.
func (o RunOutcome) Failed() bool {
	for _, s := range o.Sections {
		if s.Failed() {
			return true
		}
	}
	return false
}

// MetricsSnapshot holds a point-in-time view of recent runs.
type MetricsSnapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsPartial  int     `json:"runs_partial"`
	FailRate     float64 `json:"fail_rate"`
	AvgDuration  float64 `json:"avg_duration_seconds"`

	// Failed section counts keyed by section name and by error kind.
	SectionFailures map[string]int `json:"section_failures"`
	FailureKinds    map[string]int `json:"failure_kinds"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// defaultCapacity bounds the outcomes kept in memory.
const defaultCapacity = 1000

// Collector keeps recent run outcomes in memory and summarizes them.
type Collector struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	outcomes []RunOutcome
	capacity int
}

// NewCollector creates a collector. A nil clock uses the real clock.
func NewCollector(clock clockwork.Clock) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{clock: clock, capacity: defaultCapacity}
}

// Record appends an outcome, dropping the oldest once capacity is reached.
func (c *Collector) Record(o RunOutcome) {
	if o.At.IsZero() {
		o.At = c.clock.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outcomes) == c.capacity {
		copy(c.outcomes, c.outcomes[1:])
		c.outcomes = c.outcomes[:len(c.outcomes)-1]
	}
	c.outcomes = append(c.outcomes, o)
}

// Collect summarizes outcomes recorded within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "monitoring: collect")
	}

	now := c.clock.Now().UTC()
	snap := &MetricsSnapshot{
		SectionFailures: make(map[string]int),
		FailureKinds:    make(map[string]int),
		LookbackHours:   lookbackHours,
		CollectedAt:     now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	c.mu.Lock()
	defer c.mu.Unlock()

	var total time.Duration
	for _, o := range c.outcomes {
		if o.At.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		total += o.Duration
		if !o.Failed() {
			snap.RunsComplete++
			continue
		}
		snap.RunsPartial++
		for _, s := range o.Sections {
			if !s.Failed() {
				continue
			}
			snap.SectionFailures[s.Name]++
			kind := s.ErrorKind
			if kind == "" {
				kind = "error"
			}
			snap.FailureKinds[kind]++
		}
	}

	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsPartial) / float64(snap.RunsTotal)
		snap.AvgDuration = (total / time.Duration(snap.RunsTotal)).Seconds()
	}
	return snap, nil
}
