package dimensions

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
)

func TestNumbers(t *testing.T) {
	assert.Equal(t, []float64{250, 120.5, 1, 50}, Numbers("Wall 250 x 120,5 cm; 1:50"))
	assert.Equal(t, []float64{3.25}, Numbers("h=3.25m, 0 spare"))
	assert.Empty(t, Numbers("no digits here"))
}

func TestGuess(t *testing.T) {
	c, ok := Guess([]float64{120, 1, 250, 50})
	require.True(t, ok)
	assert.Equal(t, layout.Calibration{Width: 250, Height: 120}, c)

	c, ok = Guess([]float64{250, 250, 90})
	require.True(t, ok)
	assert.Equal(t, layout.Calibration{Width: 250, Height: 90}, c)

	_, ok = Guess([]float64{100, 100})
	assert.False(t, ok)
	_, ok = Guess([]float64{100})
	assert.False(t, ok)
	_, ok = Guess(nil)
	assert.False(t, ok)
}

func TestGuessDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 9, 1}
	_, _ = Guess(in)
	assert.Equal(t, []float64{3, 9, 1}, in)
}

func TestScrape_NilImage(t *testing.T) {
	_, err := Scrape(nil)
	assert.Equal(t, errs.CodeInvalidInput, errs.GetCode(err))
}

func TestScrapePDF(t *testing.T) {
	values, err := ScrapePDF(testutil.TextPDF("600 x 300", 200, 100))
	require.NoError(t, err)
	assert.Contains(t, values, 600.0)
	assert.Contains(t, values, 300.0)

	_, err = ScrapePDF([]byte("not a pdf"))
	assert.Equal(t, errs.CodeDecodeError, errs.GetCode(err))
}

func TestScrape_WithStubRecognizer(t *testing.T) {
	prev := recognize
	t.Cleanup(func() { recognize = prev })
	recognize = func(image.Image) (string, error) { return "300\n240", nil }

	values, err := Scrape(image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Equal(t, []float64{300, 240}, values)
	assert.True(t, Available())
}
