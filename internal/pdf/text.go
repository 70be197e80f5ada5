package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dslipak/pdf"
)

// Letter size in points, used when a page declares no media box.
const (
	letterWidthPt  = 612.0
	letterHeightPt = 792.0
)

// maxInheritDepth bounds the walk up the page tree for inherited attributes.
const maxInheritDepth = 32

// openReader parses data with dslipak/pdf. The parser panics on some
// malformed inputs, which is reported as an ordinary error.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed PDF: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// MediaBox returns the page size in points of pageNum (1-based).
func MediaBox(data []byte, pageNum int) (float64, float64, error) {
	r, err := openReader(data)
	if err != nil {
		return 0, 0, err
	}
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return 0, 0, fmt.Errorf("page %d is null", pageNum)
	}

	box := inherited(page.V, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return letterWidthPt, letterHeightPt, nil
	}
	w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
	h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
	if w == 0 || h == 0 {
		return 0, 0, errors.New("degenerate media box")
	}
	return w, h, nil
}

// MediaBoxFile is MediaBox for a file on disk.
func MediaBoxFile(filename string, pageNum int) (float64, float64, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // G304: spooled input path
	if err != nil {
		return 0, 0, err
	}
	return MediaBox(data, pageNum)
}

// inherited looks up key on v and then on its ancestors in the page tree.
func inherited(v pdf.Value, key string) pdf.Value {
	for range maxInheritDepth {
		if v.IsNull() {
			break
		}
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// PageText extracts the vector text of pageNum (1-based), row by row when the
// content stream allows it and as plain text otherwise.
func PageText(data []byte, pageNum int) (text string, err error) {
	r, err := openReader(data)
	if err != nil {
		return "", err
	}
	if pageNum < 1 || pageNum > r.NumPage() {
		return "", fmt.Errorf("page %d out of range", pageNum)
	}
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", pageNum)
	}

	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed content stream: %v", p)
		}
	}()

	var sb strings.Builder
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		for _, row := range rows {
			for _, t := range row.Content {
				sb.WriteString(t.S)
			}
			sb.WriteString("\n")
		}
		return sb.String(), nil
	}

	fonts := make(map[string]*pdf.Font)
	plain, err := page.GetPlainText(fonts)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return plain, nil
}
