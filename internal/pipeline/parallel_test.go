package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
)

func manualInput(w, h float64) Input {
	return Input{Mode: "manual", Manual: &layout.ManualInput{Width: w, Height: h}}
}

func TestAnalyzeBatch_KeepsOrder(t *testing.T) {
	p := newTestPipeline(t)
	var inputs []Input
	for i := 1; i <= 12; i++ {
		inputs = append(inputs, manualInput(float64(i*100), 50))
	}

	results, err := p.AnalyzeBatch(context.Background(), inputs, ParallelConfig{MaxWorkers: 4})
	require.NoError(t, err)
	require.Len(t, results, len(inputs))
	for i, r := range results {
		require.NotNil(t, r)
		assert.InDelta(t, float64((i+1)*100), r.Layout.Wall.W, 1e-9)
	}
}

func TestAnalyzeBatch_MixedModes(t *testing.T) {
	p := newTestPipeline(t)
	inputs := []Input{
		{Image: testutil.GeneratePlan(testutil.DefaultPlanConfig())},
		manualInput(600, 300),
	}
	results, err := p.AnalyzeBatch(context.Background(), inputs, DefaultParallelConfig())
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, results[0].Mode)
	assert.Len(t, results[0].Layout.Openings, 2)
	assert.Equal(t, ModeManual, results[1].Mode)
}

func TestAnalyzeBatch_Errors(t *testing.T) {
	p := newTestPipeline(t)
	inputs := []Input{
		manualInput(100, 50),
		manualInput(-1, 50),
		manualInput(200, 50),
		{Mode: "auto"},
	}

	rec := &recordingCallback{}
	var (
		mu     sync.Mutex
		failed []int
	)
	results, err := p.AnalyzeBatch(context.Background(), inputs, ParallelConfig{
		MaxWorkers:       2,
		ProgressCallback: rec,
		ErrorHandler: func(i int, _ Input, _ error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, i)
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input 1:")
	assert.Equal(t, errs.CodeInvalidDimensions, errs.GetCode(err))

	require.Len(t, results, 4)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
	assert.Nil(t, results[3])
	assert.Equal(t, []int{1, 3}, failed)

	assert.Equal(t, 1, rec.count("start"))
	assert.Equal(t, 4, rec.count("progress"))
	assert.Equal(t, 2, rec.count("error"))
	assert.Equal(t, 1, rec.count("complete"))
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.AnalyzeBatch(context.Background(), nil, DefaultParallelConfig())
	assert.Error(t, err)
}

func TestAnalyzeBatch_Canceled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.AnalyzeBatch(ctx, []Input{manualInput(1, 1), manualInput(2, 2)}, ParallelConfig{MaxWorkers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBatchStats(t *testing.T) {
	results := []*Result{{}, nil, {}, {}}
	st := CalculateBatchStats(results, 2*time.Second, 3)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Succeeded)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 3, st.Workers)
	assert.InDelta(t, 1.5, st.ThroughputPerSec, 1e-9)
	assert.Equal(t, 2*time.Second/3, st.AveragePerInput)

	empty := CalculateBatchStats([]*Result{nil}, time.Second, 1)
	assert.Zero(t, empty.ThroughputPerSec)
	assert.Zero(t, empty.AveragePerInput)
}

func TestProfiler(t *testing.T) {
	var prof Profiler
	prof.Record(&Result{
		Layout: &layout.Layout{Openings: make([]layout.Rectangle, 2)},
		Timings: Timings{Steps: []StepTiming{
			{Step: StepDetect, DurationNs: int64(4 * time.Millisecond)},
		}},
	}, nil)
	prof.Record(&Result{
		Layout: &layout.Layout{},
		Timings: Timings{Steps: []StepTiming{
			{Step: StepDetect, DurationNs: int64(2 * time.Millisecond)},
		}},
	}, nil)
	prof.Record(nil, assert.AnError)

	snap := prof.Snapshot()
	assert.Equal(t, int64(3), snap["analyses"])
	assert.Equal(t, int64(1), snap["failures"])
	assert.Equal(t, int64(2), snap["openings"])
	steps := snap["steps"].(map[string]float64)
	assert.InDelta(t, 6.0, steps["detect_ms_total"], 1e-9)
	assert.InDelta(t, 3.0, steps["detect_ms_avg"], 1e-9)
}
