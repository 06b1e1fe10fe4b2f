package model

// SectionStatus represents the outcome of a dashboard section.
type SectionStatus string

const (
	SectionStatusComplete SectionStatus = "complete"
	SectionStatusFailed   SectionStatus = "failed"
	SectionStatusSkipped  SectionStatus = "skipped"
)

// SectionResult holds the outcome of one dashboard section within a run.
type SectionResult struct {
	Name      string         `json:"name"`
	Status    SectionStatus  `json:"status"`
	Duration  int64          `json:"duration_ms"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Failed reports whether the section failed.
func (s SectionResult) Failed() bool {
	return s.Status == SectionStatusFailed
}
