package testutil

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isInk(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r == 0 && g == 0 && b == 0
}

func TestGeneratePlan(t *testing.T) {
	cfg := DefaultPlanConfig()
	img := GeneratePlan(cfg)

	assert.Equal(t, MediumSize.Width, img.Bounds().Dx())
	assert.Equal(t, MediumSize.Height, img.Bounds().Dy())

	// Wall outline corners are inked, the wall interior is paper.
	assert.True(t, isInk(img, cfg.Wall.Min.X, cfg.Wall.Min.Y))
	assert.True(t, isInk(img, cfg.Wall.Max.X-1, cfg.Wall.Max.Y-1))
	assert.False(t, isInk(img, cfg.Wall.Min.X+10, cfg.Wall.Min.Y+10))

	o := cfg.Openings[0]
	assert.True(t, isInk(img, o.Min.X, o.Min.Y))
	assert.False(t, isInk(img, o.Min.X+o.Dx()/2, o.Min.Y+o.Dy()/2))
}

func TestGeneratePlan_LabelStaysOutsideWall(t *testing.T) {
	cfg := DefaultPlanConfig()
	cfg.Openings = nil
	cfg.Label = "600 x 300"
	img := GeneratePlan(cfg)

	inked := false
	for y := cfg.Wall.Max.Y; y < img.Bounds().Max.Y; y++ {
		for x := 0; x < img.Bounds().Max.X; x++ {
			if isInk(img, x, y) {
				inked = true
			}
		}
	}
	assert.True(t, inked)
}

func TestBinaryRect(t *testing.T) {
	g := BinaryRect(SmallSize, image.Rect(10, 10, 50, 40), 0)
	assert.Equal(t, uint8(255), g.GrayAt(20, 20).Y)
	assert.Equal(t, uint8(0), g.GrayAt(5, 5).Y)

	ring := BinaryRect(SmallSize, image.Rect(10, 10, 50, 40), 2)
	assert.Equal(t, uint8(255), ring.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(0), ring.GrayAt(20, 20).Y)
}

func TestEncodeRoundTrip(t *testing.T) {
	img := CreateTestImage(32, 16, color.White)

	decoded, format, err := image.Decode(bytes.NewReader(EncodePNG(t, img)))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	_, format, err = image.Decode(bytes.NewReader(EncodeJPEG(t, img)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestSaveAndLoadImage(t *testing.T) {
	img := GeneratePlan(DefaultPlanConfig())
	path := t.TempDir() + "/plan.png"
	SaveImage(t, img, path)

	assert.True(t, FileExists(path))
	loaded := LoadImage(t, path)
	assert.Equal(t, img.Bounds(), loaded.Bounds())
}

func TestPDFFixturesAreWellFormed(t *testing.T) {
	for name, data := range map[string][]byte{
		"image": ImagePDF(t, CreateTestImage(20, 10, color.White), 144, 72),
		"text":  TextPDF("600 x 300", 144, 72),
		"empty": EmptyPDF(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
			assert.True(t, bytes.HasSuffix(data, []byte("%%EOF\n")))
			assert.Contains(t, string(data), "startxref")
		})
	}
}
