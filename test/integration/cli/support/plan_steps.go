package support

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// aPlanImage writes the default synthetic plan: one wall with a window and
// a door.
func (testCtx *TestContext) aPlanImage(name string) error {
	return utils.SavePNG(testCtx.TempPath(name), testutil.GeneratePlan(testutil.DefaultPlanConfig()))
}

// aPlanImageWithOpenings writes a plan whose wall holds n evenly spaced
// window outlines.
func (testCtx *TestContext) aPlanImageWithOpenings(name string, n int) error {
	cfg := testutil.DefaultPlanConfig()
	cfg.Openings = nil
	wall := cfg.Wall
	step := wall.Dx() / (n + 1)
	for i := 1; i <= n; i++ {
		x := wall.Min.X + i*step - step/4
		cfg.Openings = append(cfg.Openings, image.Rect(x, wall.Min.Y+80, x+step/2, wall.Min.Y+180))
	}
	return utils.SavePNG(testCtx.TempPath(name), testutil.GeneratePlan(cfg))
}

// aBlankImage writes a sheet of paper without any drawing.
func (testCtx *TestContext) aBlankImage(name string) error {
	return utils.SavePNG(testCtx.TempPath(name), testutil.CreateTestImage(320, 240, color.White))
}

func (testCtx *TestContext) anEmptyPDF(name string) error {
	return os.WriteFile(testCtx.TempPath(name), testutil.EmptyPDF(), 0o600)
}

func (testCtx *TestContext) aFileContaining(name string, body *godog.DocString) error {
	return os.WriteFile(testCtx.TempPath(name), []byte(body.Content), 0o600)
}

// aManualLayoutFile writes a manual wall description for a width x height
// wall with one door.
func (testCtx *TestContext) aManualLayoutFile(name string, width, height float64) error {
	in := layout.ManualInput{
		Width:  width,
		Height: height,
		Openings: []layout.Rectangle{
			{X: width / 10, Y: 0, W: 100, H: 210, Type: layout.KindDoor},
		},
	}
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manual input: %w", err)
	}
	return os.WriteFile(testCtx.TempPath(name), data, 0o600)
}

// RegisterPlanSteps registers the fixture steps.
func (testCtx *TestContext) RegisterPlanSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a plan image "([^"]*)"$`, testCtx.aPlanImage)
	sc.Step(`^a plan image "([^"]*)" with (\d+) windows?$`, testCtx.aPlanImageWithOpenings)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^an empty PDF "([^"]*)"$`, testCtx.anEmptyPDF)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
	sc.Step(`^a manual wall file "([^"]*)" for a ([\d.]+) by ([\d.]+) wall$`, testCtx.aManualLayoutFile)
}
