package support

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// writeTextImage renders lines of text onto a white PNG canvas, optionally
// rotated, the same synthetic-fixture approach internal/testutil.
// GenerateTextImage uses for single-line images, generalized here to
// arbitrary multi-line content so scenario fixtures can carry literal
// invoice/receipt text.
func writeTextImage(path string, lines []string, rotationDeg float64) error {
	const width, height = 900, 600
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{color.Black}, Face: face}

	lineHeight := face.Metrics().Height.Ceil() + 6
	y := lineHeight
	for _, line := range lines {
		drawer.Dot = fixed.P(20, y)
		drawer.DrawString(line)
		y += lineHeight
	}

	var out image.Image = img
	if rotationDeg != 0 {
		rotated := imaging.Rotate(img, rotationDeg, color.White)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		out = rgba
	}

	f, err := os.Create(path) //nolint:gosec // G304: test-controlled path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, out)
}

// writeMinimalInvoicePDF writes a single-page PDF whose content stream
// prints lines at descending y-coordinates using the standard Helvetica
// font, following the same hand-rolled minimal-PDF structure internal/pdf's
// own tests build (createTestPDF in pdf_test.go), extended with a content
// stream and font resource since that fixture is blank.
func writeMinimalInvoicePDF(path string, lines []string) error {
	var content string
	y := 740
	for _, line := range lines {
		content += fmt.Sprintf("BT /F1 11 Tf 50 %d Td (%s) Tj ET\n", y, escapePDFText(line))
		y -= 18
	}

	pdf := fmt.Sprintf(`%%PDF-1.4
1 0 obj
<<
/Type /Catalog
/Pages 2 0 R
>>
endobj

2 0 obj
<<
/Type /Pages
/Kids [3 0 R]
/Count 1
>>
endobj

3 0 obj
<<
/Type /Page
/Parent 2 0 R
/MediaBox [0 0 612 792]
/Resources << /Font << /F1 5 0 R >> >>
/Contents 4 0 R
>>
endobj

4 0 obj
<<
/Length %d
>>
stream
%sendstream
endobj

5 0 obj
<<
/Type /Font
/Subtype /Type1
/BaseFont /Helvetica
>>
endobj

xref
0 6
0000000000 65535 f
trailer
<<
/Size 6
/Root 1 0 R
>>
startxref
0
%%%%EOF`, len(content), content)

	return os.WriteFile(path, []byte(pdf), 0o600)
}

func escapePDFText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', ')', '\\':
			out = append(out, '\\', s[i])
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

// writeCorruptFile writes bytes that look like a document by extension but
// have no valid internal structure, exercising the InputUnreadable path.
func writeCorruptFile(path string) error {
	return os.WriteFile(path, []byte("not actually a valid document payload"), 0o600)
}

// writeZeroByteFile writes an empty file.
func writeZeroByteFile(path string) error {
	return os.WriteFile(path, nil, 0o600)
}
