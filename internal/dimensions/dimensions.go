// Package dimensions scrapes dimension annotations from plan drawings to
// propose a calibration when none is given.
package dimensions

import (
	"errors"
	"image"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pdf"
)

// ErrNoBackend is returned by Scrape when no OCR engine is linked.
var ErrNoBackend = errors.New("dimensions: OCR not linked; build with -tags=tesseract")

// recognize turns a raster into text. It is set by the tesseract build.
var recognize func(img image.Image) (string, error)

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Available reports whether Scrape can run OCR in this build.
func Available() bool { return recognize != nil }

// Scrape returns the positive numbers OCR finds in img, in reading order.
func Scrape(img image.Image) ([]float64, error) {
	if img == nil {
		return nil, errs.New(errs.CodeInvalidInput, "no image to scrape")
	}
	if recognize == nil {
		return nil, errs.Wrap(errs.CodeNoBackend, ErrNoBackend, "dimension scraping unavailable")
	}
	text, err := recognize(img)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, err, "OCR failed")
	}
	values := Numbers(text)
	slog.Debug("Scraped dimension tokens", "count", len(values))
	return values, nil
}

// ScrapePDF returns the numbers in the vector text of the first page.
func ScrapePDF(data []byte) ([]float64, error) {
	text, err := pdf.PageText(data, 1)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecodeError, err, "cannot read PDF text")
	}
	return Numbers(text), nil
}

// Numbers extracts the positive decimal numbers in text. A comma is read
// as the decimal separator.
func Numbers(text string) []float64 {
	var out []float64
	for _, tok := range numberRe.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64)
		if err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Guess proposes a calibration: the largest value is the width, and the
// largest remaining value below it is the height.
func Guess(values []float64) (layout.Calibration, bool) {
	if len(values) < 2 {
		return layout.Calibration{}, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	slices.Reverse(sorted)
	width := sorted[0]
	for _, v := range sorted[1:] {
		if v < width && v > 0 {
			return layout.Calibration{Width: width, Height: v}, true
		}
	}
	return layout.Calibration{}, false
}
