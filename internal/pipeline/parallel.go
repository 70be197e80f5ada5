package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for batch analysis.
type ParallelConfig struct {
	MaxWorkers       int                     // number of workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback        // optional progress reporting
	ErrorHandler     func(int, Input, error) // optional per-input error handler
}

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type batchJob struct {
	index int
	input Input
}

type batchResult struct {
	index  int
	result *Result
	err    error
}

// AnalyzeBatch analyzes inputs on a worker pool. Results keep input order;
// failed inputs leave a nil entry and the first failure is returned.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, inputs []Input, config ParallelConfig) ([]*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no inputs provided")
	}
	if p == nil || p.Detector == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(inputs))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(inputs))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan batchJob, len(inputs))
	results := make(chan batchResult, len(inputs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, in := range inputs {
			select {
			case jobs <- batchJob{index: i, input: in}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Result, len(inputs))
	failures := make(map[int]error)
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			failures[r.index] = r.err
			if config.ProgressCallback != nil {
				config.ProgressCallback.OnError(r.index, r.err)
			}
		} else {
			ordered[r.index] = r.result
		}
		if config.ProgressCallback != nil {
			config.ProgressCallback.OnProgress(done, len(inputs))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for i := range inputs {
		err, failed := failures[i]
		if !failed {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("input %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, inputs[i], err)
		}
	}
	return ordered, firstErr
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan batchJob, results chan<- batchResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.Analyze(ctx, job.input)
			select {
			case results <- batchResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	Total            int           `json:"total"`
	Succeeded        int           `json:"succeeded"`
	Failed           int           `json:"failed"`
	Workers          int           `json:"workers"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerInput  time.Duration `json:"average_per_input_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateBatchStats derives throughput figures from batch results.
func CalculateBatchStats(results []*Result, duration time.Duration, workers int) BatchStats {
	st := BatchStats{Total: len(results), Workers: workers, TotalDuration: duration}
	for _, r := range results {
		if r != nil {
			st.Succeeded++
		} else {
			st.Failed++
		}
	}
	if st.Succeeded > 0 && duration > 0 {
		st.AveragePerInput = duration / time.Duration(st.Succeeded)
		st.ThroughputPerSec = float64(st.Succeeded) / duration.Seconds()
	}
	return st
}
