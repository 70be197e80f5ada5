// Package pdf turns the first page of a PDF plan into a raster.
//
// Scanned plans are image-only pages, so the page raster is the largest image
// embedded on page 1 (extracted with pdfcpu), resampled so that the page
// width matches the requested resolution. Page geometry and vector text come
// from dslipak/pdf.
package pdf

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DefaultDPI is the resolution a page is rendered at when none is configured.
const DefaultDPI = 200.0

const pointsPerInch = 72.0

// Page is the rendered first page of a document.
type Page struct {
	Image     image.Image
	WidthPt   float64
	HeightPt  float64
	DPI       float64
	PageCount int
}

// RenderFirstPage renders page 1 of the PDF in data. The bytes are spooled to
// a temporary file that is always removed before returning.
func RenderFirstPage(ctx context.Context, data []byte, dpi float64) (*Page, error) {
	tempDir, err := os.MkdirTemp("", "wallplan-pdf-*")
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, err, "failed to create temp directory")
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	path := filepath.Join(tempDir, "input.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, errs.Wrap(errs.CodeInternal, err, "failed to spool PDF")
	}
	return RenderFirstPageFile(ctx, path, dpi)
}

// RenderFirstPageFile renders page 1 of the PDF at filename.
func RenderFirstPageFile(ctx context.Context, filename string, dpi float64) (*Page, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	count, err := PageCount(filename)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errs.New(errs.CodeEmptyDocument, "PDF has no pages")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	widthPt, heightPt, err := MediaBoxFile(filename, 1)
	if err != nil {
		slog.Debug("media box unavailable, assuming letter size", "error", err)
		widthPt, heightPt = letterWidthPt, letterHeightPt
	}

	img, err := extractLargestImage(filename, 1)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	targetWidth := int(math.Round(widthPt / pointsPerInch * dpi))
	if targetWidth > 0 && targetWidth != img.Bounds().Dx() {
		slog.Debug("resampling PDF page raster",
			"from_width", img.Bounds().Dx(), "to_width", targetWidth, "dpi", dpi)
		img = utils.ResizeToWidth(img, targetWidth)
	}

	return &Page{
		Image:     img,
		WidthPt:   widthPt,
		HeightPt:  heightPt,
		DPI:       dpi,
		PageCount: count,
	}, nil
}

// PageCount returns the number of pages. pdfcpu is tried first; documents it
// refuses (for example a page tree without kids) are counted by dslipak/pdf.
func PageCount(filename string) (int, error) {
	count, err := api.PageCountFile(filename)
	if err == nil {
		return count, nil
	}
	slog.Debug("pdfcpu page count failed, retrying with fallback reader", "error", err)

	data, readErr := os.ReadFile(filename) //nolint:gosec // G304: spooled input path
	if readErr != nil {
		return 0, errs.Wrap(errs.CodeInternal, readErr, "failed to read PDF")
	}
	r, openErr := openReader(data)
	if openErr != nil {
		return 0, errs.Wrap(errs.CodeDecodeError, err, "cannot parse PDF")
	}
	return r.NumPage(), nil
}

// extractLargestImage extracts the images placed on pageNum and returns the
// one with the most pixels. Files are visited in lexical order so equal sized
// images resolve to the same choice on every run.
func extractLargestImage(filename string, pageNum int) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "wallplan-extract-*")
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, err, "failed to create temp directory")
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(filename, tempDir, []string{fmt.Sprint(pageNum)}, nil); err != nil {
		return nil, errs.Wrap(errs.CodeDecodeError, err, "failed to extract images from PDF")
	}

	var best image.Image
	bestPixels := 0
	err = filepath.WalkDir(tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		img, err := imaging.Open(path)
		if err != nil {
			// Skip image formats we cannot decode
			slog.Debug("skipping undecodable embedded image", "file", d.Name(), "error", err)
			return nil
		}
		if px := img.Bounds().Dx() * img.Bounds().Dy(); px > bestPixels {
			best, bestPixels = img, px
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, err, "failed to collect extracted images")
	}
	if best == nil {
		return nil, errs.New(errs.CodeDecodeError, "page %d has no raster content", pageNum)
	}
	return best, nil
}
