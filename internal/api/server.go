// Package api serves the dashboard over HTTP: section results as JSON, the
// scored table as CSV and GeoJSON, rendered PNGs, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/torino-sdg/sdg11-cli/internal/config"
	"github.com/torino-sdg/sdg11-cli/internal/monitoring"
	"github.com/torino-sdg/sdg11-cli/internal/pipeline"
)

// Options carries the collaborators of a Server. Nil fields get defaults.
type Options struct {
	Pipeline  *pipeline.Pipeline
	Collector *monitoring.Collector
	Registry  *prometheus.Registry
	Clock     clockwork.Clock
}

// Server answers dashboard requests by running the pipeline on demand.
// Concurrent requests for the same pollutant and section share one run.
type Server struct {
	cfg       *config.Config
	pipeline  *pipeline.Pipeline
	metrics   *monitoring.Metrics
	collector *monitoring.Collector
	registry  *prometheus.Registry
	images    *ImageCache
	limiter   *rate.Limiter
	runs      singleflight.Group
	log       *zap.Logger
}

// NewServer creates a Server and registers its metrics.
func NewServer(cfg *config.Config, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Pipeline == nil {
		opts.Pipeline = pipeline.New(cfg, nil, opts.Clock)
	}
	if opts.Collector == nil {
		opts.Collector = monitoring.NewCollector(opts.Clock)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:       cfg,
		pipeline:  opts.Pipeline,
		metrics:   monitoring.NewMetrics(opts.Registry),
		collector: opts.Collector,
		registry:  opts.Registry,
		images: NewImageCache(cfg.Server.CacheEntries,
			time.Duration(cfg.Server.CacheTTLSecs)*time.Second, opts.Clock),
		log: zap.L().With(zap.String("component", "api")),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), max(cfg.Server.RateBurst, 1))
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/municipalities", s.handleMunicipalities)
		r.Get("/municipalities.csv", s.handleMunicipalitiesCSV)
		r.Get("/municipalities.geojson", s.handleMunicipalitiesGeoJSON)
		r.Get("/overlay.png", s.handleOverlay)
		r.Get("/charts/{chart}.png", s.handleChart)
		r.Get("/monitoring", s.handleMonitoring)
	})
	return r
}

// run executes one pipeline run, sharing it with concurrent callers of the
// same pollutant and section. The run outlives a cancelled request so the
// other waiters still get a result.
func (s *Server) run(ctx context.Context, pollutant, section string) (*pipeline.Output, error) {
	key := pollutant + "|" + strings.ToLower(section)
	v, err, shared := s.runs.Do(key, func() (any, error) {
		out, err := s.pipeline.Execute(context.WithoutCancel(ctx), pollutant, section)
		if err != nil {
			return nil, err
		}
		s.observe(out.Result)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("shared pipeline run", zap.String("key", key))
	}
	return v.(*pipeline.Output), nil
}

func (s *Server) observe(res *pipeline.Result) {
	o := monitoring.RunOutcome{
		RunID:     res.RunID,
		Pollutant: res.Pollutant,
		At:        res.StartedAt,
		Duration:  time.Duration(res.Duration) * time.Millisecond,
		Sections:  res.Sections,
	}
	if res.Socio != nil {
		o.Scored = res.Socio.Scored
	}
	s.metrics.ObserveRun(o)
	s.collector.Record(o)

	// Inputs changed underneath the cached images.
	if o.Failed() {
		s.images.Invalidate(res.Pollutant)
	}
}

// instrument records request counts and latency by chi route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
