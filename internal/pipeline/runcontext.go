package pipeline

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/config"
)

// RunContext carries everything one run needs. It is built once per
// invocation and passed to every stage; nothing is shared across runs.
type RunContext struct {
	ID        uuid.UUID
	Pollutant string
	Section   string
	Config    *config.Config
	Clock     clockwork.Clock
	Logger    *zap.Logger

	mu        sync.Mutex
	tempFiles []string
}

// NewRunContext builds a context for one run of pollutant. The pollutant is
// upper-cased and an empty section means "all". A nil clock uses the real
// clock.
func NewRunContext(cfg *config.Config, pollutant, section string, clock clockwork.Clock) *RunContext {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if section == "" {
		section = SectionAll
	}
	id := uuid.New()
	pollutant = strings.ToUpper(strings.TrimSpace(pollutant))
	return &RunContext{
		ID:        id,
		Pollutant: pollutant,
		Section:   strings.ToLower(section),
		Config:    cfg,
		Clock:     clock,
		Logger: zap.L().With(
			zap.String("component", "pipeline"),
			zap.String("run_id", id.String()),
			zap.String("pollutant", pollutant),
		),
	}
}

// TrackTemp registers a temporary file to be removed by Cleanup.
func (rc *RunContext) TrackTemp(path string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.tempFiles = append(rc.tempFiles, path)
}

// TempFiles returns the temporary files registered so far.
func (rc *RunContext) TempFiles() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.tempFiles...)
}

// Cleanup removes the run's temporary files. Files already gone are ignored.
func (rc *RunContext) Cleanup() error {
	rc.mu.Lock()
	files := rc.tempFiles
	rc.tempFiles = nil
	rc.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "pipeline: cleanup temp files")
	}
	return nil
}
