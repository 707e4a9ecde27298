// Package pdftest generates small PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Page is one page of a generated PDF. Content is an uncompressed content
// stream; /F1 is Helvetica in WinAnsi encoding.
type Page struct {
	Width   float64
	Height  float64
	Rotate  int
	Content string
	// CropBox, when set, is written as [x0 y0 x1 y1].
	CropBox []float64
	// Inherit moves MediaBox and Rotate to the page tree node. The first
	// inheriting page supplies the values.
	Inherit bool
}

// Letter returns a US Letter page with content.
func Letter(content string) Page {
	return Page{Width: 612, Height: 792, Content: content}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Build returns a minimal PDF with a classic xref table whose offsets are
// exact.
func Build(pages ...Page) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	kids := make([]string, 0, len(pages))
	tree := ""
	for _, p := range pages {
		pageNum := len(objs) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R", pageNum+1)
		geometry := fmt.Sprintf(" /MediaBox [0 0 %s %s]", num(p.Width), num(p.Height))
		if p.Rotate != 0 {
			geometry += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		switch {
		case !p.Inherit:
			page += geometry
		case tree == "":
			tree = geometry
		}
		if len(p.CropBox) == 4 {
			page += fmt.Sprintf(" /CropBox [%s %s %s %s]", num(p.CropBox[0]), num(p.CropBox[1]), num(p.CropBox[2]), num(p.CropBox[3]))
		}
		page += " >>"
		objs = append(objs, page,
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(p.Content), p.Content))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d%s >>", strings.Join(kids, " "), len(pages), tree)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// Write writes a generated PDF into dir and returns its path.
func Write(t *testing.T, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, Build(pages...), 0644))
	return path
}

// ShowText returns a content stream drawing one Helvetica line.
func ShowText(x, y, size float64, text string) string {
	return fmt.Sprintf("BT /F1 %s Tf %s %s Td (%s) Tj ET", num(size), num(x), num(y), text)
}
