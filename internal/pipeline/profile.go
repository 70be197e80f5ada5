package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Profiler aggregates step timings and outcomes across analyses.
type Profiler struct {
	analyses atomic.Int64
	failures atomic.Int64
	openings atomic.Int64

	mu    sync.Mutex
	steps map[Step]time.Duration
}

// Record adds a finished analysis; res is nil when it failed.
func (p *Profiler) Record(res *Result, err error) {
	p.analyses.Add(1)
	if err != nil || res == nil {
		p.failures.Add(1)
		return
	}
	if res.Layout != nil {
		p.openings.Add(int64(len(res.Layout.Openings)))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.steps == nil {
		p.steps = make(map[Step]time.Duration)
	}
	for _, st := range res.Timings.Steps {
		p.steps[st.Step] += time.Duration(st.DurationNs)
	}
}

// Snapshot returns cumulative figures in milliseconds.
func (p *Profiler) Snapshot() map[string]any {
	n := p.analyses.Load()
	ok := n - p.failures.Load()
	out := map[string]any{
		"analyses": n,
		"failures": p.failures.Load(),
		"openings": p.openings.Load(),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	steps := make(map[string]float64, len(p.steps))
	for s, d := range p.steps {
		ms := float64(d) / float64(time.Millisecond)
		steps[string(s)+"_ms_total"] = ms
		if ok > 0 {
			steps[string(s)+"_ms_avg"] = ms / float64(ok)
		}
	}
	out["steps"] = steps
	return out
}
