package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// fixture records what analyzing one generated drawing should yield.
type fixture struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputFile   string `json:"input_file"`
	WallWidth   int    `json:"wall_width_px,omitempty"`
	WallHeight  int    `json:"wall_height_px,omitempty"`
	Openings    int    `json:"openings"`
	ErrorCode   string `json:"error_code,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata", "output directory, relative to the project root")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic wall drawings and their expected analysis.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := filepath.Join(root, *outDir)
	if *verbose {
		slog.Info("Output directory", "path", dir)
	}

	fixtures, err := generatePlans(dir)
	if err != nil {
		slog.Error("Failed to generate drawings", "error", err)
		os.Exit(1)
	}
	for _, f := range fixtures {
		if err := saveFixture(f, filepath.Join(dir, "fixtures")); err != nil {
			slog.Error("Failed to save fixture", "name", f.Name, "error", err)
			os.Exit(1)
		}
		if *verbose {
			slog.Info("Generated", "name", f.Name, "input", f.InputFile)
		}
	}
	slog.Info("Test data generation completed", "fixtures", len(fixtures))
}

// generatePlans writes the drawings under dir/plans and returns a fixture
// for each.
func generatePlans(dir string) ([]fixture, error) {
	plans := filepath.Join(dir, "plans")
	if err := testutil.EnsureDir(plans); err != nil {
		return nil, fmt.Errorf("failed to create plans directory: %w", err)
	}

	def := testutil.DefaultPlanConfig()

	windows := testutil.DefaultPlanConfig()
	windows.Openings = []image.Rectangle{
		image.Rect(90, 120, 170, 200),
		image.Rect(280, 120, 360, 200),
		image.Rect(470, 120, 550, 200),
	}

	labeled := testutil.DefaultPlanConfig()
	labeled.Label = "560 x 320"

	large := testutil.DefaultPlanConfig()
	large.Size = testutil.LargeSize
	large.Wall = image.Rect(60, 80, 960, 700)
	large.Stroke = 5

	blank := testutil.DefaultPlanConfig()
	blank.Wall = image.Rectangle{}
	blank.Openings = nil

	rasters := []struct {
		name, desc string
		cfg        testutil.PlanConfig
		code       errs.Code
	}{
		{"default", "Wall with one window and one door", def, ""},
		{"three_windows", "Wall with three windows in a row", windows, ""},
		{"labeled", "Wall with a dimension label under it", labeled, ""},
		{"large_plain", "Large wall without openings", large, ""},
		{"blank", "Empty sheet", blank, errs.CodeNoStructureDetected},
	}

	fixtures := make([]fixture, 0, len(rasters)+2)
	for _, r := range rasters {
		name := r.name + ".png"
		if err := utils.SavePNG(filepath.Join(plans, name), testutil.GeneratePlan(r.cfg)); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		f := fixture{
			Name:        r.name,
			Description: r.desc,
			InputFile:   filepath.Join("plans", name),
			Openings:    len(r.cfg.Openings),
			ErrorCode:   string(r.code),
		}
		if r.code == "" {
			f.WallWidth, f.WallHeight = r.cfg.Wall.Dx(), r.cfg.Wall.Dy()
		}
		fixtures = append(fixtures, f)
	}

	pdfs := []struct {
		name, desc string
		data       []byte
		code       errs.Code
	}{
		{"empty", "PDF without pages", testutil.EmptyPDF(), errs.CodeEmptyDocument},
		{"text_only", "PDF page with text and no raster", testutil.TextPDF("Wall A", 595, 842), errs.CodeDecodeError},
	}
	for _, p := range pdfs {
		name := p.name + ".pdf"
		if err := os.WriteFile(filepath.Join(plans, name), p.data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		fixtures = append(fixtures, fixture{
			Name:        p.name,
			Description: p.desc,
			InputFile:   filepath.Join("plans", name),
			ErrorCode:   string(p.code),
		})
	}
	return fixtures, nil
}

func saveFixture(f fixture, dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600)
}
