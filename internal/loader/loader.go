// Package loader normalizes an uploaded plan (raster image or PDF) into a
// single in-memory raster.
package loader

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/pdf"
	"github.com/MeKo-Tech/wallplan/internal/utils"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Options configures how inputs are rasterized.
type Options struct {
	// DPI is the resolution PDF pages are rendered at.
	DPI float64
	// MaxPixels caps the decoded raster size; larger inputs are downscaled.
	MaxPixels int
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{
		DPI:       pdf.DefaultDPI,
		MaxPixels: utils.DefaultImageConstraints().MaxPixels,
	}
}

var rasterTypes = map[string]bool{
	utils.MIMEJPEG: true,
	utils.MIMEPNG:  true,
	utils.MIMEBMP:  true,
	utils.MIMETIFF: true,
	utils.MIMEWebP: true,
	utils.MIMEGIF:  true,
}

// ResolveMIME returns the effective MIME type of data. A declared type wins;
// empty or generic declarations fall back to content sniffing.
func ResolveMIME(data []byte, declared string) string {
	mime := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpg", "image/pjpeg":
		return utils.MIMEJPEG
	case "image/x-png":
		return utils.MIMEPNG
	case "image/x-ms-bmp":
		return utils.MIMEBMP
	case "", "application/octet-stream":
		sniffed := http.DetectContentType(data)
		if i := strings.IndexByte(sniffed, ';'); i >= 0 {
			sniffed = sniffed[:i]
		}
		return sniffed
	}
	return mime
}

// Load decodes data of the given MIME type into a raster. PDFs contribute
// only their first page.
func Load(ctx context.Context, data []byte, mimeType string, opts Options) (image.Image, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.CodeDecodeError, "input is empty")
	}
	mime := ResolveMIME(data, mimeType)

	var (
		img image.Image
		err error
	)
	switch {
	case mime == utils.MIMEPDF:
		var page *pdf.Page
		page, err = pdf.RenderFirstPage(ctx, data, opts.DPI)
		if err != nil {
			return nil, err
		}
		if page.PageCount > 1 {
			slog.Debug("ignoring PDF pages after the first", "pages", page.PageCount)
		}
		img = page.Image
	case rasterTypes[mime]:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, errs.Wrap(errs.CodeDecodeError, err, "cannot decode %s", mime)
		}
	default:
		return nil, errs.New(errs.CodeUnsupportedFormat, "unsupported input type %q", mime)
	}

	constraints := utils.DefaultImageConstraints()
	constraints.MaxPixels = opts.MaxPixels
	fitted, err := utils.FitPixelBudget(img, constraints)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDecodeError, err, "unusable raster")
	}
	if fitted != img {
		slog.Debug("downscaled oversized input",
			"from", img.Bounds().Size(), "to", fitted.Bounds().Size())
	}
	return fitted, nil
}

// LoadFile reads path and infers its type from the extension, falling back to
// content sniffing for unknown extensions.
func LoadFile(ctx context.Context, path string, opts Options) (image.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-selected plan file
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidInput, err, "cannot read %s", path)
	}
	return Load(ctx, data, utils.MIMEFromPath(path), opts)
}
