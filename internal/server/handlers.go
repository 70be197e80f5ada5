package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/wallplan/internal/common"
	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/i18n"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/render"
	"github.com/MeKo-Tech/wallplan/internal/version"
)

// Response formats beyond the pipeline serializations.
const (
	formatSVG     = "svg"
	formatOverlay = "overlay"
)

const maxJSONBody = 1 << 20

// analysisResponse is the JSON body of a successful analysis.
type analysisResponse struct {
	*pipeline.Result
	DebugStages []pipeline.Stage `json:"debug_stages,omitempty"`
	RequestID   string           `json:"request_id,omitempty"`
}

// estimateResponse is the JSON body of POST /v1/estimate.
type estimateResponse struct {
	*estimate.LayoutSummary
	RequestID string `json:"request_id,omitempty"`
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	v, commit, _ := version.Info()
	response := HealthResponse{
		Status:    "healthy",
		Version:   v,
		Commit:    commit,
		Time:      time.Now().UTC().Format(time.RFC3339),
		UptimeSec: time.Since(s.started).Seconds(),
		Runtime:   common.GetRuntimeStats(),
		Analyses:  s.profiler.Snapshot(),
	}
	if s.pipeline != nil {
		response.Pipeline = s.pipeline.Info()
	}
	writeJSON(w, http.StatusOK, response)
}

// analyzeHandler runs an analysis on an uploaded plan.
//
// Form fields: file (required in auto mode), mode, width and height (both or
// neither), debug, blocks, manual (JSON manual input), format and lang.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024
	if r.ContentLength > limit {
		s.writeStatus(w, r, http.StatusRequestEntityTooLarge,
			errs.New(errs.CodeInvalidInput, "upload exceeds %d MB", s.maxUploadMB))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeStatus(w, r, http.StatusRequestEntityTooLarge,
				errs.New(errs.CodeInvalidInput, "upload exceeds %d MB", s.maxUploadMB))
			return
		}
		s.writeError(w, r, errs.Wrap(errs.CodeInvalidInput, err, "failed to parse form data"))
		return
	}

	in := pipeline.Input{Mode: r.FormValue("mode")}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		uploadSizeBytes.Observe(float64(header.Size))
		in.Data, err = io.ReadAll(file)
		if err != nil {
			s.writeError(w, r, errs.Wrap(errs.CodeInvalidInput, err, "failed to read upload"))
			return
		}
		in.MIMEType = header.Header.Get("Content-Type")
	case !errors.Is(err, http.ErrMissingFile):
		s.writeError(w, r, errs.Wrap(errs.CodeInvalidInput, err, "failed to read upload"))
		return
	}

	if in.Calibration, err = parseCalibration(r.FormValue("width"), r.FormValue("height")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if raw := r.FormValue("manual"); raw != "" {
		mi, err := layout.DecodeManualInput([]byte(raw))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		in.Manual = &mi
	}
	in.Debug = parseBool(r.FormValue("debug"))
	in.Blocks = parseBool(r.FormValue("blocks"))

	format := strings.ToLower(r.FormValue("format"))
	if format == formatOverlay && !s.overlayEnabled {
		s.writeStatus(w, r, http.StatusForbidden, errs.New(errs.CodeInvalidInput, "overlay output disabled"))
		return
	}

	res, err := s.analyze(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, res, format)
}

// manualHandler builds a layout from a JSON manual input body.
func (s *Server) manualHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeInvalidInput, err, "failed to read request body"))
		return
	}
	mi, err := layout.DecodeManualInput(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := s.analyze(r.Context(), pipeline.Input{
		Mode:   string(pipeline.ModeManual),
		Manual: &mi,
		Blocks: parseBool(q.Get("blocks")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, res, strings.ToLower(q.Get("format")))
}

// estimateHandler computes material quantities for a layout or a plain
// wall size.
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeInvalidInput, err, "invalid estimate request"))
		return
	}

	summary, err := s.runEstimate(req)
	if err != nil {
		estimatesTotal.WithLabelValues(statusLabel(err)).Inc()
		s.writeError(w, r, err)
		return
	}
	estimatesTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, estimateResponse{LayoutSummary: summary, RequestID: RequestID(r.Context())})
}

func (s *Server) runEstimate(req EstimateRequest) (*estimate.LayoutSummary, error) {
	types := s.catalog.Blocks
	if len(req.Blocks) > 0 {
		c := estimate.Catalog{Blocks: req.Blocks}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		types = c.Blocks
	}
	opts := s.estimate
	if req.Joint != nil {
		opts.JointThickness = *req.Joint
	}
	if req.Depth != nil {
		opts.Depth = *req.Depth
	}

	var l *layout.Layout
	switch {
	case len(req.Layout) > 0 && string(req.Layout) != "null":
		var err error
		if l, err = layout.DecodeLayout(req.Layout); err != nil {
			return nil, err
		}
	case req.Width > 0 && req.Height > 0:
		var err error
		if l, err = layout.FromManual(layout.ManualInput{Width: req.Width, Height: req.Height}); err != nil {
			return nil, err
		}
	default:
		return nil, errs.New(errs.CodeInvalidDimensions, "estimate needs a layout or a positive width and height")
	}
	return estimate.EstimateLayout(l, types, opts)
}

// analyze runs one analysis under the request timeout and records metrics.
func (s *Server) analyze(ctx context.Context, in pipeline.Input) (*pipeline.Result, error) {
	if s.pipeline == nil {
		return nil, errs.New(errs.CodeInternal, "analysis pipeline not initialized")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	mode, _ := pipeline.ResolveMode(in)
	start := time.Now()
	res, err := s.pipeline.Analyze(ctx, in)
	analysisDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	s.profiler.Record(res, err)
	if err != nil {
		analysisRequestsTotal.WithLabelValues(string(mode), statusLabel(err)).Inc()
		return nil, err
	}
	analysisRequestsTotal.WithLabelValues(string(res.Mode), "success").Inc()
	openingsDetected.WithLabelValues(string(res.Mode)).Observe(float64(len(res.Layout.Openings)))
	return res, nil
}

// writeResult serializes res in the requested format.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *pipeline.Result, format string) {
	switch format {
	case formatSVG:
		opts := s.render
		opts.Title = res.Layout.Summary()
		var buf bytes.Buffer
		if err := render.SVG(&buf, res.Layout, opts); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(buf.Bytes())
		return
	case formatOverlay:
		s.writeOverlay(w, r, res)
		return
	}

	f, err := pipeline.ParseFormat(format)
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeInvalidInput, err, "invalid format"))
		return
	}
	if f != pipeline.FormatJSON {
		var buf bytes.Buffer
		if err := pipeline.Write(&buf, res, f, language(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType(f))
		_, _ = w.Write(buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, analysisResponse{
		Result:      res,
		DebugStages: res.Trace.Stages(),
		RequestID:   RequestID(r.Context()),
	})
}

// writeOverlay draws the selection over the analysed raster, or returns
// the debug raster named by the stage parameter.
func (s *Server) writeOverlay(w http.ResponseWriter, r *http.Request, res *pipeline.Result) {
	if res.Image == nil {
		s.writeError(w, r, errs.New(errs.CodeInvalidInput, "overlay output needs an analysed image"))
		return
	}
	var img image.Image
	if stage := r.FormValue("stage"); stage != "" {
		traced, ok := res.Trace.Get(pipeline.Stage(stage))
		if !ok {
			s.writeError(w, r, errs.New(errs.CodeInvalidInput, "no debug stage %q; send debug=true", stage))
			return
		}
		img = traced
	} else {
		img = render.Overlay(res.Image, res.Selection)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeInternal, err, "failed to encode overlay"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// writeError answers with the status derived from err.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeStatus(w, r, statusFor(err), err)
}

// writeStatus answers with a localized error body.
func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	code := errs.GetCode(err)
	switch {
	case code != "":
	case errors.Is(err, context.DeadlineExceeded):
		code = "TIMEOUT"
	default:
		code = errs.CodeInternal
	}

	lang := language(r)
	resp := ErrorResponse{
		Error:     string(code),
		Category:  string(errs.CategoryOf(err)),
		Message:   i18n.Error(lang, err),
		Detail:    errs.UserMessage(err),
		RequestID: RequestID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "request_id", resp.RequestID, "path", r.URL.Path, "status", status, "error", err)
		// Internal details stay in the log.
		resp.Detail = ""
	} else {
		slog.Warn("Request rejected", "request_id", resp.RequestID, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error to an HTTP status by its code.
func statusFor(err error) int {
	switch errs.GetCode(err) {
	case errs.CodeInvalidInput:
		return http.StatusBadRequest
	case errs.CodeInvalidDimensions, errs.CodeOutOfBounds, errs.CodeNoStructureDetected,
		errs.CodeDecodeError, errs.CodeEmptyDocument:
		return http.StatusUnprocessableEntity
	case errs.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case errs.CodeNoBackend:
		return http.StatusNotImplemented
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func statusLabel(err error) string {
	if code := errs.GetCode(err); code != "" {
		return string(code)
	}
	return string(errs.CodeInternal)
}

// language picks the response language: the lang parameter first, then
// Accept-Language.
func language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return i18n.Match(lang).String()
	}
	if r.MultipartForm != nil {
		if v := r.MultipartForm.Value["lang"]; len(v) > 0 && v[0] != "" {
			return i18n.Match(v[0]).String()
		}
	}
	return i18n.Match(r.Header.Get("Accept-Language")).String()
}

func contentType(f pipeline.Format) string {
	switch f {
	case pipeline.FormatYAML:
		return "application/yaml"
	case pipeline.FormatCSV:
		return "text/csv"
	case pipeline.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// parseCalibration reads the wall size form fields; both or neither.
func parseCalibration(width, height string) (*layout.Calibration, error) {
	width, height = strings.TrimSpace(width), strings.TrimSpace(height)
	if width == "" && height == "" {
		return nil, nil
	}
	if width == "" || height == "" {
		return nil, errs.New(errs.CodeInvalidDimensions, "width and height must be given together")
	}
	w, err := strconv.ParseFloat(width, 64)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidDimensions, err, "invalid width %q", width)
	}
	h, err := strconv.ParseFloat(height, 64)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidDimensions, err, "invalid height %q", height)
	}
	return &layout.Calibration{Width: w, Height: h}, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", fmt.Errorf("status %d: %w", status, err))
	}
}
