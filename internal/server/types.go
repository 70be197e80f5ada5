package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/render"
)

// analyzer is the part of the pipeline the server depends on.
type analyzer interface {
	Analyze(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
	Info() map[string]any
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       analyzer
	profiler       *pipeline.Profiler
	rateLimiter    *RateLimiter
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	overlayEnabled bool
	render         render.Options
	catalog        estimate.Catalog
	estimate       estimate.Options
	started        time.Time
	stop           chan struct{}
	closeOnce      sync.Once
}

// RateLimitConfig holds per-client limits; zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	OverlayEnabled bool
	Render         render.Options
	Catalog        estimate.Catalog
	Estimate       estimate.Options
	RateLimit      RateLimitConfig
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version,omitempty"`
	Commit    string         `json:"commit,omitempty"`
	Time      string         `json:"time"`
	UptimeSec float64        `json:"uptime_sec"`
	Runtime   any            `json:"runtime,omitempty"`
	Pipeline  map[string]any `json:"pipeline,omitempty"`
	Analyses  map[string]any `json:"analyses,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`              // machine-readable code
	Category  string `json:"category,omitempty"` // input, detection, format or internal
	Message   string `json:"message"`            // localized
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// EstimateRequest is the body of POST /v1/estimate. Either Layout or
// Width and Height must be given.
type EstimateRequest struct {
	Width    float64              `json:"width"`
	Height   float64              `json:"height"`
	Layout   json.RawMessage      `json:"layout,omitempty"`
	Blocks   []estimate.BlockType `json:"blocks,omitempty"`
	Joint    *float64             `json:"joint_thickness,omitempty"`
	Depth    *float64             `json:"depth,omitempty"`
	Language string               `json:"language,omitempty"`
}

// NewServer builds the pipeline and returns a server ready to route.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	return newServer(config, pl), nil
}

func newServer(config Config, pl analyzer) *Server {
	s := &Server{
		pipeline:       pl,
		profiler:       &pipeline.Profiler{},
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		overlayEnabled: config.OverlayEnabled,
		render:         config.Render,
		catalog:        config.Catalog,
		estimate:       config.Estimate,
		started:        time.Now(),
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if s.render.PixelsPerUnit <= 0 {
		s.render = render.DefaultOptions()
	}
	if len(s.catalog.Blocks) == 0 {
		s.catalog = estimate.DefaultCatalog()
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
		s.stop = make(chan struct{})
		go s.pruneClients(pruneInterval, clientIdleTTL)
	}
	return s
}

// Idle rate limit entries are dropped once they can no longer affect a
// daily quota.
const (
	pruneInterval = 10 * time.Minute
	clientIdleTTL = 25 * time.Hour
)

func (s *Server) pruneClients(every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.rateLimiter.Prune(maxIdle); n > 0 {
				slog.Debug("Pruned idle rate limit clients", "count", n)
			}
		}
	}
}

// Close stops background work. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
	})
	return nil
}

// Router returns the HTTP handler with every route and middleware mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware, s.corsMiddleware)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Post("/analyze", s.analyzeHandler)
		r.Post("/manual", s.manualHandler)
		r.Post("/estimate", s.estimateHandler)
		r.Get("/ws/analyze", s.analyzeWebSocketHandler)
	})
	return r
}
