package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
)

type analysisBody struct {
	Mode        string        `json:"mode"`
	Layout      layout.Layout `json:"layout"`
	Warnings    []string      `json:"warnings"`
	DebugStages []string      `json:"debug_stages"`
	RequestID   string        `json:"request_id"`
}

func decodeAnalysis(t *testing.T, w *httptest.ResponseRecorder) analysisBody {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body analysisBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func planPNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.GeneratePlan(testutil.DefaultPlanConfig()))
}

const manualDoor = `{"width":600,"height":300,"openings":[{"x":50,"y":0,"w":100,"h":210,"type":"door"}]}`

func TestServer_HealthHandler(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
	assert.NotEmpty(t, resp.Version)
	assert.Contains(t, resp.Pipeline, "detector")
	assert.Contains(t, resp.Analyses, "analyses")
	assert.NotNil(t, resp.Runtime)

	w = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Analyze_CalibratedPlan(t *testing.T) {
	s := newTestServer(t, nil)
	req := multipartRequest(t, "/v1/analyze", map[string]string{"width": "560", "height": "320"}, planPNG(t))

	w := serve(s, req)
	body := decodeAnalysis(t, w)

	assert.Equal(t, "auto", body.Mode)
	assert.Equal(t, layout.OriginBottomLeft, body.Layout.Origin)
	assert.InDelta(t, 560, body.Layout.Wall.W, 4)
	assert.InDelta(t, 320, body.Layout.Wall.H, 4)
	assert.Len(t, body.Layout.Openings, 2)
	assert.Empty(t, body.DebugStages)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, body.RequestID, w.Header().Get(RequestIDHeader))
}

func TestServer_Analyze_UncalibratedDebug(t *testing.T) {
	s := newTestServer(t, nil)
	req := multipartRequest(t, "/v1/analyze", map[string]string{"debug": "true", "blocks": "1"}, planPNG(t))

	body := decodeAnalysis(t, serve(s, req))

	assert.Equal(t, layout.OriginTopLeft, body.Layout.Origin)
	assert.Equal(t, []string{"gray", "blur", "normalized", "binary", "closed", "edges", "contours", "result"}, body.DebugStages)
	assert.NotEmpty(t, body.Layout.Blocks)
}

func TestServer_Analyze_Formats(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("yaml", func(t *testing.T) {
		w := serve(s, multipartRequest(t, "/v1/analyze", map[string]string{"format": "yaml"}, planPNG(t)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "mode: auto")
	})

	t.Run("text in serbian", func(t *testing.T) {
		req := multipartRequest(t, "/v1/analyze", map[string]string{"format": "text", "lang": "sr"}, planPNG(t))
		w := serve(s, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
		assert.Contains(t, w.Body.String(), "Površina zida")
	})

	t.Run("svg", func(t *testing.T) {
		req := multipartRequest(t, "/v1/analyze", map[string]string{"format": "svg", "width": "560", "height": "320"}, planPNG(t))
		w := serve(s, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "<svg")
	})

	t.Run("overlay", func(t *testing.T) {
		w := serve(s, multipartRequest(t, "/v1/analyze", map[string]string{"format": "overlay"}, planPNG(t)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 640, img.Bounds().Dx())
		assert.Equal(t, 480, img.Bounds().Dy())
	})

	t.Run("debug stage", func(t *testing.T) {
		req := multipartRequest(t, "/v1/analyze?stage=binary", map[string]string{"format": "overlay", "debug": "on"}, planPNG(t))
		w := serve(s, req)
		require.Equal(t, http.StatusOK, w.Code)
		_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
	})

	t.Run("stage without debug", func(t *testing.T) {
		req := multipartRequest(t, "/v1/analyze?stage=binary", map[string]string{"format": "overlay"}, planPNG(t))
		w := serve(s, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown format", func(t *testing.T) {
		w := serve(s, multipartRequest(t, "/v1/analyze", map[string]string{"format": "xml"}, planPNG(t)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(errs.CodeInvalidInput), decodeError(t, w).Error)
	})
}

func TestServer_Analyze_OverlayDisabled(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.OverlayEnabled = false })
	w := serve(s, multipartRequest(t, "/v1/analyze", map[string]string{"format": "overlay"}, planPNG(t)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServer_Analyze_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	blank := testutil.EncodePNG(t, testutil.CreateTestImage(320, 240, color.White))

	tests := []struct {
		name     string
		req      func() *http.Request
		status   int
		code     errs.Code
		category errs.Category
	}{
		{
			name: "width without height",
			req: func() *http.Request {
				return multipartRequest(t, "/v1/analyze", map[string]string{"width": "300"}, planPNG(t))
			},
			status:   http.StatusUnprocessableEntity,
			code:     errs.CodeInvalidDimensions,
			category: errs.CategoryInput,
		},
		{
			name: "non numeric height",
			req: func() *http.Request {
				return multipartRequest(t, "/v1/analyze", map[string]string{"width": "300", "height": "tall"}, planPNG(t))
			},
			status: http.StatusUnprocessableEntity,
			code:   errs.CodeInvalidDimensions,
		},
		{
			name: "text upload",
			req: func() *http.Request {
				return multipartRequest(t, "/v1/analyze", nil, []byte("just some words about a wall"))
			},
			status:   http.StatusUnsupportedMediaType,
			code:     errs.CodeUnsupportedFormat,
			category: errs.CategoryFormat,
		},
		{
			name: "blank image",
			req: func() *http.Request {
				return multipartRequest(t, "/v1/analyze", nil, blank)
			},
			status:   http.StatusUnprocessableEntity,
			code:     errs.CodeNoStructureDetected,
			category: errs.CategoryDetection,
		},
		{
			name: "auto mode without file",
			req: func() *http.Request {
				return multipartRequest(t, "/v1/analyze", map[string]string{"mode": "auto"}, nil)
			},
			status: http.StatusBadRequest,
			code:   errs.CodeInvalidInput,
		},
		{
			name: "manual mode without dimensions",
			req: func() *http.Request {
				return multipartRequest(t, "/v1/analyze", nil, nil)
			},
			status: http.StatusBadRequest,
			code:   errs.CodeInvalidInput,
		},
		{
			name: "not multipart",
			req: func() *http.Request {
				return jsonRequest(t, "/v1/analyze", manualDoor)
			},
			status: http.StatusBadRequest,
			code:   errs.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.req())
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decodeError(t, w)
			assert.Equal(t, string(tt.code), resp.Error)
			if tt.category != "" {
				assert.Equal(t, string(tt.category), resp.Category)
			}
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestServer_Analyze_LocalizedError(t *testing.T) {
	s := newTestServer(t, nil)
	blank := testutil.EncodePNG(t, testutil.CreateTestImage(320, 240, color.White))

	req := multipartRequest(t, "/v1/analyze", nil, blank)
	req.Header.Set("Accept-Language", "sr-Latn-RS, en;q=0.5")
	w := serve(s, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Na crtežu nije pronađen zid.", decodeError(t, w).Message)
}

func TestServer_Analyze_UploadTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxUploadMB = 1 })
	big := bytes.Repeat([]byte{0x42}, 2*1024*1024)

	w := serve(s, multipartRequest(t, "/v1/analyze", nil, big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_Manual(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("door", func(t *testing.T) {
		body := decodeAnalysis(t, serve(s, jsonRequest(t, "/v1/manual", manualDoor)))
		assert.Equal(t, "manual", body.Mode)
		assert.Equal(t, layout.SourceManual, body.Layout.Source)
		assert.Equal(t, layout.OriginBottomLeft, body.Layout.Origin)
		require.Len(t, body.Layout.Openings, 1)
		assert.Equal(t, layout.Rectangle{X: 50, Y: 0, W: 100, H: 210, Type: layout.KindDoor}, body.Layout.Openings[0])
		assert.Empty(t, body.Layout.Blocks)
	})

	t.Run("with blocks", func(t *testing.T) {
		body := decodeAnalysis(t, serve(s, jsonRequest(t, "/v1/manual?blocks=true", manualDoor)))
		require.NotEmpty(t, body.Layout.Blocks)
		door := body.Layout.Openings[0]
		for _, b := range body.Layout.Blocks {
			assert.False(t, b.Overlaps(door), "block %v overlaps the door", b)
		}
	})

	t.Run("csv", func(t *testing.T) {
		w := serve(s, jsonRequest(t, "/v1/manual?format=csv", manualDoor))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "door")
	})

	t.Run("opening out of bounds", func(t *testing.T) {
		req := jsonRequest(t, "/v1/manual?lang=sr", `{"width":600,"height":300,"openings":[{"x":550,"y":0,"w":100,"h":210}]}`)
		w := serve(s, req)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, string(errs.CodeOutOfBounds), resp.Error)
		assert.Contains(t, resp.Message, "prelazi")
		assert.NotEmpty(t, resp.Detail)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := serve(s, jsonRequest(t, "/v1/manual", `{"width":`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_Estimate(t *testing.T) {
	s := newTestServer(t, nil)

	decode := func(t *testing.T, w *httptest.ResponseRecorder) estimate.LayoutSummary {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var sum estimate.LayoutSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
		return sum
	}

	t.Run("plain wall with default catalog", func(t *testing.T) {
		sum := decode(t, serve(s, jsonRequest(t, "/v1/estimate", EstimateRequest{Width: 500, Height: 250})))
		assert.InDelta(t, 12.5, sum.WallArea, 1e-9)
		require.Len(t, sum.Blocks, 3)
		// 12.5 m² shared by three types, 0.125 m² per standard block.
		assert.Equal(t, 33, sum.Blocks[0].Quantity)
		assert.Zero(t, sum.OpeningArea)
	})

	t.Run("layout subtracts openings", func(t *testing.T) {
		mw := serve(s, jsonRequest(t, "/v1/manual", manualDoor))
		require.Equal(t, http.StatusOK, mw.Code)
		var manual struct {
			Layout json.RawMessage `json:"layout"`
		}
		require.NoError(t, json.Unmarshal(mw.Body.Bytes(), &manual))

		sum := decode(t, serve(s, jsonRequest(t, "/v1/estimate", EstimateRequest{Layout: manual.Layout})))
		assert.InDelta(t, 18, sum.GrossArea, 1e-9)
		assert.InDelta(t, 2.1, sum.OpeningArea, 1e-9)
		assert.InDelta(t, 15.9, sum.WallArea, 1e-9)
		assert.Positive(t, sum.WallVolume)
	})

	t.Run("custom blocks", func(t *testing.T) {
		req := EstimateRequest{
			Width:  400,
			Height: 200,
			Blocks: []estimate.BlockType{{ID: 7, Name: "Brick", Width: 25, Height: 12.5, Depth: 12, Price: 0.5}},
		}
		sum := decode(t, serve(s, jsonRequest(t, "/v1/estimate", req)))
		require.Len(t, sum.Blocks, 1)
		assert.Equal(t, 256, sum.Blocks[0].Quantity)
		assert.InDelta(t, 128, sum.TotalPrice, 1e-9)
	})

	errCases := []struct {
		name   string
		body   any
		status int
		code   errs.Code
	}{
		{"missing size", EstimateRequest{}, http.StatusUnprocessableEntity, errs.CodeInvalidDimensions},
		{"invalid block", EstimateRequest{Width: 100, Height: 100, Blocks: []estimate.BlockType{{ID: 1}}}, http.StatusUnprocessableEntity, errs.CodeInvalidDimensions},
		{"malformed", `{"width": "wide"}`, http.StatusBadRequest, errs.CodeInvalidInput},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, jsonRequest(t, "/v1/estimate", tt.body))
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, string(tt.code), decodeError(t, w).Error)
		})
	}
}

func TestServer_AnalyzeTimeout(t *testing.T) {
	s := newServer(Config{}, stubAnalyzer{analyze: func(ctx context.Context, _ pipeline.Input) (*pipeline.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	s.timeout = 20 * time.Millisecond

	w := serve(s, jsonRequest(t, "/v1/manual", manualDoor))
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "TIMEOUT", decodeError(t, w).Error)
}

func TestServer_InternalErrorHidesDetail(t *testing.T) {
	s := newServer(Config{}, stubAnalyzer{analyze: func(context.Context, pipeline.Input) (*pipeline.Result, error) {
		return nil, errors.New("disk on fire")
	}})

	w := serve(s, jsonRequest(t, "/v1/manual", manualDoor))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, string(errs.CodeInternal), resp.Error)
	assert.Equal(t, "An internal error occurred.", resp.Message)
	assert.Empty(t, resp.Detail)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.New(errs.CodeInvalidInput, "x"), http.StatusBadRequest},
		{errs.New(errs.CodeInvalidDimensions, "x"), http.StatusUnprocessableEntity},
		{&errs.OutOfBoundsError{Side: "right", Excess: 1}, http.StatusUnprocessableEntity},
		{errs.New(errs.CodeNoStructureDetected, "x"), http.StatusUnprocessableEntity},
		{errs.New(errs.CodeDecodeError, "x"), http.StatusUnprocessableEntity},
		{errs.New(errs.CodeUnsupportedFormat, "x"), http.StatusUnsupportedMediaType},
		{errs.New(errs.CodeNoBackend, "x"), http.StatusNotImplemented},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestParseCalibration(t *testing.T) {
	cal, err := parseCalibration("", " ")
	require.NoError(t, err)
	assert.Nil(t, cal)

	cal, err = parseCalibration("500", "250.5")
	require.NoError(t, err)
	assert.Equal(t, &layout.Calibration{Width: 500, Height: 250.5}, cal)

	_, err = parseCalibration("500", "")
	assert.True(t, errs.Is(err, errs.CodeInvalidDimensions))
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "maybe"} {
		assert.False(t, parseBool(v), v)
	}
}
