//go:build tesseract

package dimensions

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/wallplan/internal/models"
)

// DigitChars limits recognition to dimension annotations.
const DigitChars = "0123456789.,"

func init() {
	recognize = tesseractText
}

func tesseractText(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if dir := models.TessdataDir("", models.DefaultLanguage); dir != "" {
		if err := client.SetTessdataPrefix(dir); err != nil {
			return "", fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(models.DefaultLanguage); err != nil {
		return "", fmt.Errorf("failed to set OCR language: %w", err)
	}
	// Dimensions are scattered labels, not a text block.
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := client.SetWhitelist(DigitChars); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	return client.Text()
}
