package pipeline

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/selector"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// Mode selects the analysis path.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

var modeAliases = map[string]Mode{
	"manual":       ModeManual,
	"man":          ModeManual,
	"rucni":        ModeManual,
	"ručni":        ModeManual,
	"unos":         ModeManual,
	"hand":         ModeManual,
	"manual input": ModeManual,
	"auto":         ModeAuto,
	"automatic":    ModeAuto,
	"pdf":          ModeAuto,
	"image":        ModeAuto,
	"detekcija":    ModeAuto,
	"upload":       ModeAuto,
}

// ParseMode resolves a mode name or one of its aliases. Case, surrounding
// blanks and Unicode composition are ignored.
func ParseMode(s string) (Mode, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(s))), " ")
	m, ok := modeAliases[key]
	return m, ok
}

// Input is one analysis request.
type Input struct {
	Mode        string                    // "auto", "manual" or an alias; empty picks auto when an image is given
	Image       image.Image               // decoded raster; takes precedence over Data
	Data        []byte                    // encoded image or PDF bytes
	MIMEType    string                    // declared type of Data; sniffed when empty
	Manual      *layout.ManualInput       // manual entry, required in manual mode
	Calibration *layout.Calibration       // physical wall size; nil for pixel output
	Debug       bool                      // collect the stage trace
	Blocks      bool                      // partition the wall into blocks
	Progress    func(Step, time.Duration) // called after each completed step
}

// Step names a timed unit of work.
type Step string

const (
	StepLoad       Step = "load"
	StepPreprocess Step = "preprocess"
	StepDetect     Step = "detect"
	StepSelect     Step = "select"
	StepCalibrate  Step = "calibrate"
	StepMap        Step = "map"
	StepManual     Step = "manual"
	StepBlocks     Step = "blocks"
)

// StepTiming is the duration of one step.
type StepTiming struct {
	Step       Step  `json:"step" yaml:"step"`
	DurationNs int64 `json:"duration_ns" yaml:"duration_ns"`
}

// Timings records step durations in execution order.
type Timings struct {
	Steps   []StepTiming `json:"steps" yaml:"steps"`
	TotalNs int64        `json:"total_ns" yaml:"total_ns"`
}

// Of returns the duration of step s, or zero when it did not run.
func (t Timings) Of(s Step) time.Duration {
	for _, st := range t.Steps {
		if st.Step == s {
			return time.Duration(st.DurationNs)
		}
	}
	return 0
}

// Stage names a debug trace raster.
type Stage string

const (
	StageGray       Stage = "gray"
	StageBlur       Stage = "blur"
	StageNormalized Stage = "normalized"
	StageBinary     Stage = "binary"
	StageClosed     Stage = "closed"
	StageEdges      Stage = "edges"
	StageContours   Stage = "contours"
	StageResult     Stage = "result"
)

// Trace maps stage names to raster snapshots in insertion order.
type Trace struct {
	order  []Stage
	images map[Stage]image.Image
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{images: make(map[Stage]image.Image)}
}

// Add records img for stage s. Re-adding a stage replaces its raster but
// keeps its position.
func (t *Trace) Add(s Stage, img image.Image) {
	if img == nil {
		return
	}
	if _, ok := t.images[s]; !ok {
		t.order = append(t.order, s)
	}
	t.images[s] = img
}

// Get returns the raster for stage s.
func (t *Trace) Get(s Stage) (image.Image, bool) {
	if t == nil {
		return nil, false
	}
	img, ok := t.images[s]
	return img, ok
}

// Stages returns the recorded stage names in order.
func (t *Trace) Stages() []Stage {
	if t == nil {
		return nil
	}
	return append([]Stage(nil), t.order...)
}

// Len returns the number of recorded stages.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Save writes every stage as dir/NN_stage.png and returns the paths.
func (t *Trace) Save(dir string) ([]string, error) {
	paths := make([]string, 0, t.Len())
	for i, s := range t.Stages() {
		path := filepath.Join(dir, fmt.Sprintf("%02d_%s.png", i, s))
		if err := utils.SavePNG(path, t.images[s]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Result is the outcome of one analysis.
type Result struct {
	Mode      Mode                `json:"mode" yaml:"mode"`
	Layout    *layout.Layout      `json:"layout" yaml:"layout"`
	Width     int                 `json:"width,omitempty" yaml:"width,omitempty"` // analysed raster size, auto mode only
	Height    int                 `json:"height,omitempty" yaml:"height,omitempty"`
	Backend   string              `json:"backend,omitempty" yaml:"backend,omitempty"`
	Warnings  []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Timings   Timings             `json:"timings" yaml:"timings"`
	Selection *selector.Selection `json:"-" yaml:"-"`
	Image     image.Image         `json:"-" yaml:"-"` // the loaded raster
	Trace     *Trace              `json:"-" yaml:"-"`
}
