package batch

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

func manualResult(t *testing.T, w, h float64, openings ...layout.Rectangle) *pipeline.Result {
	t.Helper()
	l, err := layout.FromManual(layout.ManualInput{Width: w, Height: h, Openings: openings})
	require.NoError(t, err)
	return &pipeline.Result{Mode: pipeline.ModeManual, Layout: l}
}

func TestWrite_JSONKeepsFailedSlots(t *testing.T) {
	results := []*pipeline.Result{manualResult(t, 300, 200), nil}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{"a.png", "b.png"}, results, pipeline.FormatJSON, "en"))

	var decoded []json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "null", string(decoded[1]))
}

func TestWrite_CSV(t *testing.T) {
	win := layout.Rectangle{X: 50, Y: 50, W: 100, H: 80, Type: layout.KindWindow}
	results := []*pipeline.Result{manualResult(t, 300, 200, win), nil, manualResult(t, 400, 250)}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{"a.png", "b.png", "c.png"}, results, pipeline.FormatCSV, "en"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "file,role,x,y,w,h,type", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a.png,wall,"))
	assert.True(t, strings.HasPrefix(lines[2], "a.png,opening,"))
	assert.True(t, strings.HasPrefix(lines[3], "c.png,wall,"))
}

func TestWrite_TextHeaders(t *testing.T) {
	results := []*pipeline.Result{manualResult(t, 300, 200), manualResult(t, 400, 250)}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{"a.png", "b.png"}, results, pipeline.FormatText, "en"))

	out := buf.String()
	assert.Contains(t, out, "== a.png ==")
	assert.Contains(t, out, "== b.png ==")
}

func TestWrite_YAMLDocuments(t *testing.T) {
	results := []*pipeline.Result{manualResult(t, 300, 200), manualResult(t, 400, 250)}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{"a.png", "b.png"}, results, pipeline.FormatYAML, "en"))
	assert.Equal(t, 2, strings.Count(buf.String(), "---\n"))
}

func TestWrite_LengthMismatch(t *testing.T) {
	err := Write(&bytes.Buffer{}, []string{"a.png"}, nil, pipeline.FormatJSON, "en")
	require.Error(t, err)
}
