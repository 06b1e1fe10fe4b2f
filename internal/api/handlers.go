package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torino-sdg/sdg11-cli/internal/chart"
	"github.com/torino-sdg/sdg11-cli/internal/export"
	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/monitoring"
	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
)

const overlayImage = "overlay"

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeSectionError maps a failed section to 503 when an input is missing or
// malformed and to 500 otherwise.
func writeSectionError(w http.ResponseWriter, sr model.SectionResult) {
	status := http.StatusInternalServerError
	switch sr.ErrorKind {
	case "source_unavailable", "schema_mismatch":
		status = http.StatusServiceUnavailable
	}
	msg := sr.Error
	if msg == "" {
		msg = fmt.Sprintf("section %s %s", sr.Name, sr.Status)
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: sr.ErrorKind})
}

func writePNG(w http.ResponseWriter, data []byte, cache string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Cache", cache)
	_, _ = w.Write(data)
}

// pollutant reads the pollutant query parameter, defaulting to the
// configured one.
func (s *Server) pollutant(r *http.Request) (string, error) {
	p := strings.TrimSpace(r.URL.Query().Get("pollutant"))
	if p == "" {
		p = s.cfg.Pipeline.Pollutant
	}
	if _, ok := s.cfg.Data.RasterPath(p); !ok {
		return "", eris.Errorf("unknown pollutant %q (configured: %s)", p, strings.Join(s.cfg.Data.Pollutants(), ", "))
	}
	return strings.ToUpper(p), nil
}

// section runs a single section and reports whether it succeeded. On
// failure the response has been written.
func (s *Server) section(w http.ResponseWriter, r *http.Request, name string) (*pipeline.Output, bool) {
	pol, err := s.pollutant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	out, err := s.run(r.Context(), pol, name)
	if err != nil {
		s.log.Error("pipeline run failed", zap.String("pollutant", pol), zap.String("section", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return nil, false
	}
	sr, ok := out.Result.SectionResult(name)
	if !ok || sr.Status != model.SectionStatusComplete {
		if !ok {
			sr = model.SectionResult{Name: name, Status: model.SectionStatusSkipped}
		}
		writeSectionError(w, sr)
		return nil, false
	}
	return out, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard returns the full result of a run. Failed sections are
// reported inside the body with a 200 status.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	pol, err := s.pollutant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	section := r.URL.Query().Get("section")
	if section == "" {
		section = pipeline.SectionAll
	}
	if !pipeline.IsSection(section) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown section %q", section))
		return
	}

	out, err := s.run(r.Context(), pol, section)
	if err != nil {
		s.log.Error("pipeline run failed", zap.String("pollutant", pol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}
	writeJSON(w, http.StatusOK, out.Result)
}

type municipalitiesResponse struct {
	Pollutant string                     `json:"pollutant"`
	Columns   []string                   `json:"columns"`
	GlobalMax float64                    `json:"global_max"`
	Records   []model.MunicipalityRecord `json:"records"`
}

// handleMunicipalities returns the merged, scored table. Query parameters:
// sort (any output column, default SDG_11_Score), order (asc|desc, default
// desc), limit.
func (s *Server) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortCol := q.Get("sort")
	if sortCol == "" {
		sortCol = model.ColumnSDGScore
	}
	if !model.IsSortColumn(sortCol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sort column %q", sortCol))
		return
	}
	var descending bool
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
		descending = true
	case "asc":
	default:
		writeError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	out, ok := s.section(w, r, pipeline.SectionSocio)
	if !ok {
		return
	}
	res := out.Result
	records := model.SortRecords(res.Socio.Records, sortCol, descending)
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, municipalitiesResponse{
		Pollutant: res.Pollutant,
		Columns:   model.Columns(res.Pollutant),
		GlobalMax: res.Socio.GlobalMax,
		Records:   records,
	})
}

func (s *Server) handleMunicipalitiesCSV(w http.ResponseWriter, r *http.Request) {
	out, ok := s.section(w, r, pipeline.SectionSocio)
	if !ok {
		return
	}
	res := out.Result
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, res.Pollutant, res.Socio.Records); err != nil {
		s.log.Error("csv export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "csv export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(res.Pollutant, export.FormatCSV)))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleMunicipalitiesGeoJSON(w http.ResponseWriter, r *http.Request) {
	out, ok := s.section(w, r, pipeline.SectionSocio)
	if !ok {
		return
	}
	res := out.Result
	var buf bytes.Buffer
	if err := export.WriteGeoJSON(&buf, res.Pollutant, res.Zones, res.Socio.Records); err != nil {
		s.log.Error("geojson export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "geojson export failed")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	pol, err := s.pollutant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if data := s.images.Get(pol, overlayImage); data != nil {
		writePNG(w, data, "hit")
		return
	}

	out, ok := s.section(w, r, pipeline.SectionMap)
	if !ok {
		return
	}
	s.images.Put(pol, overlayImage, out.Overlay)
	writePNG(w, out.Overlay, "miss")
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "chart")
	section, err := chart.Section(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	pol, err := s.pollutant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if data := s.images.Get(pol, name); data != nil {
		writePNG(w, data, "hit")
		return
	}

	out, ok := s.section(w, r, section)
	if !ok {
		return
	}
	p, err := chart.FromResult(name, out.Result, s.cfg.Render.HistogramBins)
	if errors.Is(err, chart.ErrNoData) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Error("chart failed", zap.String("chart", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
		return
	}

	var buf bytes.Buffer
	size := chart.Size{WidthCm: s.cfg.Render.ChartWidthCm, HeightCm: s.cfg.Render.ChartHeightCm}
	if err := chart.WritePNG(&buf, p, size); err != nil {
		s.log.Error("chart encode failed", zap.String("chart", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
		return
	}
	s.images.Put(pol, name, buf.Bytes())
	writePNG(w, buf.Bytes(), "miss")
}

type monitoringResponse struct {
	Runs       *monitoring.MetricsSnapshot `json:"runs"`
	ImageCache CacheStats                  `json:"image_cache"`
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.cfg.Monitoring.LookbackWindowHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, monitoringResponse{Runs: snap, ImageCache: s.images.Stats()})
}
