// Package scorer computes the SDG 11 composite sustainability score.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/torino-sdg/sdg11-cli/internal/config"
)

// DefaultScoringConfig returns the fixed reference denominators: 1000
// vehicles per 1000 residents and a 0–100 housing quality scale.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		VehicleReference: 1000,
		HousingScale:     100,
	}
}

// ValidateConfig checks that a ScoringConfig can be used as denominators.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	denominators := []struct {
		name string
		v    float64
	}{
		{"vehicle_reference", c.VehicleReference},
		{"housing_scale", c.HousingScale},
	}
	for _, d := range denominators {
		if d.v <= 0 || math.IsNaN(d.v) || math.IsInf(d.v, 0) {
			errs = append(errs, fmt.Sprintf("%s must be a finite number > 0, got %v", d.name, d.v))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
