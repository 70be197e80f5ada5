package benchmark

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/loader"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
)

func TestSuite_Add(t *testing.T) {
	s := NewSuite()
	assert.Empty(t, s.benchmarks)

	s.Add("noop", func() error { return nil })
	require.Len(t, s.benchmarks, 1)
	assert.Equal(t, "noop", s.benchmarks[0].Name)
}

func TestSuite_Run(t *testing.T) {
	s := NewSuite()
	s.Add("sleep", func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	calls := 0
	s.Add("fail", func() error {
		calls++
		return errors.New("boom")
	})

	r := s.Run("sleep", 3)
	require.NoError(t, r.Error)
	assert.Equal(t, 3, r.Iterations)
	assert.GreaterOrEqual(t, r.Duration, 3*time.Millisecond)
	assert.Positive(t, r.PerIteration())

	r = s.Run("fail", 5)
	require.Error(t, r.Error)
	assert.Equal(t, 1, calls, "stops at the first failure")
	assert.Contains(t, r.String(), "FAILED")

	r = s.Run("missing", 1)
	require.Error(t, r.Error)
	assert.Contains(t, r.Error.Error(), "not found")

	assert.Len(t, s.Results(), 2)
}

func TestSuite_RunAllAndPrint(t *testing.T) {
	s := NewSuite()
	s.Add("a", func() error { return nil })
	s.Add("b", func() error { return nil })

	results := s.RunAll(0)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Iterations, "at least one iteration")

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "a: 1 iterations")
}

func TestComparison_SpeedupAndAgree(t *testing.T) {
	c := Comparison{
		Results: map[string]Result{
			detector.BackendNative: {Iterations: 1, Duration: 40 * time.Millisecond},
			detector.BackendOpenCV: {Iterations: 1, Duration: 10 * time.Millisecond},
		},
		Openings: map[string]int{detector.BackendNative: 2, detector.BackendOpenCV: 2},
	}
	assert.InDelta(t, 4.0, c.Speedup(detector.BackendOpenCV), 1e-9)
	assert.True(t, c.Agree())

	c.Openings[detector.BackendOpenCV] = 3
	assert.False(t, c.Agree())

	c.Openings[detector.BackendOpenCV] = -1
	assert.True(t, c.Agree(), "failed runs are ignored")
	assert.Zero(t, c.Speedup("missing"))
}

func TestBackendComparison_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.png")
	testutil.SaveImage(t, testutil.GeneratePlan(testutil.DefaultPlanConfig()), path)
	d, err := LoadDrawing(context.Background(), path, loader.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "plan.png", d.Name)

	b := NewBackendComparison(pipeline.DefaultConfig())
	assert.Contains(t, b.Backends(), detector.BackendNative)
	b.AddDrawing(d)

	results, err := b.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	native := results[0].Results[detector.BackendNative]
	require.NoError(t, native.Error)
	assert.Equal(t, 2, results[0].Openings[detector.BackendNative])

	var report, table bytes.Buffer
	b.PrintDetailed(&report)
	assert.Contains(t, report.String(), "plan.png (640x480)")
	require.NoError(t, b.WriteCSV(&table))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	assert.Len(t, lines, 1+len(b.Backends()))
	assert.True(t, strings.HasPrefix(lines[1], "plan.png,640,480,"))
}

func TestBackendComparison_NoDrawings(t *testing.T) {
	_, err := NewBackendComparison(pipeline.DefaultConfig()).Run(context.Background(), 1)
	require.Error(t, err)
}
