// Package benchmark times the analysis pipeline and compares the detector
// backends linked into the binary on the same drawings.
package benchmark

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/MeKo-Tech/wallplan/internal/common"
	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/loader"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

// Result is the outcome of running one benchmark for some iterations.
type Result struct {
	Name         string
	Iterations   int
	Duration     time.Duration // total over all iterations
	MemoryBefore common.RuntimeStats
	MemoryAfter  common.RuntimeStats
	Error        error
}

// PerIteration returns the mean duration of one iteration.
func (r Result) PerIteration() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocDelta is the growth of total allocated bytes during the run.
func (r Result) AllocDelta() uint64 {
	return r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: FAILED (%v)", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, %v total, %v/op, %d KB allocated",
		r.Name, r.Iterations, r.Duration.Round(time.Microsecond),
		r.PerIteration().Round(time.Microsecond), r.AllocDelta()/1024)
}

// Benchmark is one named unit of work.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite runs a set of benchmarks in insertion order.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers fn under name.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs the named benchmark.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			r := runBenchmark(b, iterations)
			s.results = append(s.results, r)
			return r
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark %q not found", name)}
}

// RunAll runs every benchmark and replaces the stored results.
func (s *Suite) RunAll(iterations int) []Result {
	s.results = s.results[:0]
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.Results()
}

// Results returns a copy of the stored results.
func (s *Suite) Results() []Result {
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// Print writes one line per stored result.
func (s *Suite) Print(w io.Writer) {
	for _, r := range s.results {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

// runBenchmark stops at the first failing iteration.
func runBenchmark(b Benchmark, iterations int) Result {
	iterations = max(iterations, 1)
	runtime.GC()
	before := common.GetRuntimeStats()

	timer := common.NewNamedTimer(b.Name)
	var err error
	done := 0
	for range iterations {
		if err = b.Func(); err != nil {
			break
		}
		done++
	}
	duration := timer.Stop()

	return Result{
		Name:         b.Name,
		Iterations:   max(done, 1),
		Duration:     duration,
		MemoryBefore: before,
		MemoryAfter:  common.GetRuntimeStats(),
		Error:        err,
	}
}

// Drawing is an input for a backend comparison.
type Drawing struct {
	Name  string
	Image image.Image
}

// LoadDrawing decodes an image or PDF file into a Drawing.
func LoadDrawing(ctx context.Context, path string, opts loader.Options) (Drawing, error) {
	img, err := loader.LoadFile(ctx, path, opts)
	if err != nil {
		return Drawing{}, err
	}
	return Drawing{Name: filepath.Base(path), Image: img}, nil
}

// Comparison holds one drawing analyzed with every backend.
type Comparison struct {
	Drawing  string
	Size     image.Point
	Results  map[string]Result // by backend name
	Openings map[string]int    // openings found per backend, -1 on failure
}

// Speedup reports how many times faster other ran than native. It is 0
// when either run is missing or failed.
func (c Comparison) Speedup(other string) float64 {
	n, ok1 := c.Results[detector.BackendNative]
	o, ok2 := c.Results[other]
	if !ok1 || !ok2 || n.Error != nil || o.Error != nil || o.PerIteration() == 0 {
		return 0
	}
	return float64(n.PerIteration()) / float64(o.PerIteration())
}

// Agree reports whether all successful backends found the same number of
// openings.
func (c Comparison) Agree() bool {
	want := -1
	for _, n := range c.Openings {
		if n < 0 {
			continue
		}
		if want >= 0 && n != want {
			return false
		}
		want = n
	}
	return true
}

// BackendComparison runs the full auto pipeline once per linked backend.
type BackendComparison struct {
	cfg      pipeline.Config
	backends []string
	drawings []Drawing
	results  []Comparison
}

// NewBackendComparison compares every backend in detector.AvailableBackends
// using cfg for all other settings.
func NewBackendComparison(cfg pipeline.Config) *BackendComparison {
	return &BackendComparison{cfg: cfg, backends: detector.AvailableBackends()}
}

// Backends lists the backends that will be compared.
func (b *BackendComparison) Backends() []string { return b.backends }

// AddDrawing queues d for comparison.
func (b *BackendComparison) AddDrawing(d Drawing) {
	b.drawings = append(b.drawings, d)
}

// Run analyzes every drawing iterations times with each backend.
func (b *BackendComparison) Run(ctx context.Context, iterations int) ([]Comparison, error) {
	if len(b.drawings) == 0 {
		return nil, fmt.Errorf("no drawings to benchmark")
	}
	pipelines := make(map[string]*pipeline.Pipeline, len(b.backends))
	for _, name := range b.backends {
		cfg := b.cfg
		cfg.Detector.Backend = name
		p, err := pipeline.NewBuilderFromConfig(cfg).Build()
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		pipelines[name] = p
	}

	b.results = b.results[:0]
	for _, d := range b.drawings {
		if err := ctx.Err(); err != nil {
			return b.results, err
		}
		c := Comparison{
			Drawing:  d.Name,
			Size:     d.Image.Bounds().Size(),
			Results:  make(map[string]Result, len(b.backends)),
			Openings: make(map[string]int, len(b.backends)),
		}
		for _, name := range b.backends {
			p := pipelines[name]
			openings := -1
			r := runBenchmark(Benchmark{
				Name: d.Name + "/" + name,
				Func: func() error {
					res, err := p.Analyze(ctx, pipeline.Input{Image: d.Image})
					if err != nil {
						return err
					}
					openings = len(res.Layout.Openings)
					return nil
				},
			}, iterations)
			if r.Error != nil {
				openings = -1
			}
			c.Results[name] = r
			c.Openings[name] = openings
		}
		b.results = append(b.results, c)
	}
	return b.results, nil
}

// Results returns the comparisons of the last Run.
func (b *BackendComparison) Results() []Comparison { return b.results }

// PrintDetailed writes a per-drawing report.
func (b *BackendComparison) PrintDetailed(w io.Writer) {
	for _, c := range b.results {
		_, _ = fmt.Fprintf(w, "%s (%dx%d)\n", c.Drawing, c.Size.X, c.Size.Y)
		for _, name := range b.backends {
			_, _ = fmt.Fprintf(w, "  %-8s %s, openings %d\n", name, c.Results[name].String(), c.Openings[name])
		}
		for _, name := range b.backends {
			if name == detector.BackendNative {
				continue
			}
			if s := c.Speedup(name); s > 0 {
				_, _ = fmt.Fprintf(w, "  %s speedup over native: %.2fx\n", name, s)
			}
		}
		if !c.Agree() {
			_, _ = fmt.Fprintln(w, "  ! backends disagree on the number of openings")
		}
	}
}

// WriteCSV writes one row per drawing and backend.
func (b *BackendComparison) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"drawing", "width", "height", "backend", "ms_per_op", "alloc_kb", "openings", "error"})
	for _, c := range b.results {
		for _, name := range b.backends {
			r := c.Results[name]
			errText := ""
			if r.Error != nil {
				errText = r.Error.Error()
			}
			_ = cw.Write([]string{
				c.Drawing,
				strconv.Itoa(c.Size.X),
				strconv.Itoa(c.Size.Y),
				name,
				strconv.FormatFloat(float64(r.PerIteration().Microseconds())/1000, 'f', 2, 64),
				strconv.FormatUint(r.AllocDelta()/1024, 10),
				strconv.Itoa(c.Openings[name]),
				errText,
			})
		}
	}
	cw.Flush()
	return cw.Error()
}
