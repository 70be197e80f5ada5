package testutil

import (
	"bytes"
	"fmt"
	"image"
	"testing"
)

// pdfObjects assembles a classic cross-reference PDF from numbered objects.
// Object i+1 is objs[i]; object 1 must be the catalog.
func pdfObjects(objs [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func streamObject(dict string, data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	return buf.Bytes()
}

// ImagePDF builds a one-page PDF whose page shows img scaled onto a media box
// of mediaW×mediaH points. The raster is embedded as a DCT (JPEG) stream,
// which is how scanners typically produce plan PDFs.
func ImagePDF(t *testing.T, img image.Image, mediaW, mediaH float64) []byte {
	t.Helper()

	jpg := EncodeJPEG(t, img)
	b := img.Bounds()
	content := fmt.Sprintf("q %.2f 0 0 %.2f 0 0 cm /Im1 Do Q", mediaW, mediaH)

	return pdfObjects([][]byte{
		[]byte("<< /Type /Catalog /Pages 2 0 R >>"),
		[]byte("<< /Type /Pages /Kids [3 0 R] /Count 1 >>"),
		fmt.Appendf(nil, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] "+
			"/Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>", mediaW, mediaH),
		streamObject(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d "+
			"/ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode", b.Dx(), b.Dy()), jpg),
		streamObject("", []byte(content)),
	})
}

// TextPDF builds a one-page PDF without raster content that shows text with
// the standard Helvetica font.
func TextPDF(text string, mediaW, mediaH float64) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 20 20 Td (%s) Tj ET", text)
	return pdfObjects([][]byte{
		[]byte("<< /Type /Catalog /Pages 2 0 R >>"),
		[]byte("<< /Type /Pages /Kids [3 0 R] /Count 1 >>"),
		fmt.Appendf(nil, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] "+
			"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>", mediaW, mediaH),
		[]byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"),
		streamObject("", []byte(content)),
	})
}

// EmptyPDF builds a structurally valid PDF with zero pages.
func EmptyPDF() []byte {
	return pdfObjects([][]byte{
		[]byte("<< /Type /Catalog /Pages 2 0 R >>"),
		[]byte("<< /Type /Pages /Kids [] /Count 0 >>"),
	})
}
