package pdf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdfErrorCode(t *testing.T, err error) PDFErrorCode {
	t.Helper()
	var pdfErr *PDFError
	require.True(t, errors.As(err, &pdfErr), "expected *PDFError, got %T: %v", err, err)
	return pdfErr.Code
}

func TestExtractSingleLine(t *testing.T) {
	path := writeFixturePDF(t, "single.pdf", letterPage(showText(72, 720, 12, "Hello World")))

	doc, err := NewPDFParser().Extract(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)

	page := doc.Pages[0]
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 612.0, page.Width)
	assert.Equal(t, 792.0, page.Height)
	assert.Equal(t, 0, page.Rotation)
	require.Len(t, page.Blocks, 1)

	b := page.Blocks[0]
	assert.Equal(t, "page1_b0", b.BlockID)
	assert.Equal(t, 1, b.PageNumber)
	assert.Equal(t, "Hello World", b.Text)
	assert.Equal(t, "Helvetica", b.FontName)
	assert.Equal(t, 12.0, b.FontSize)
	assert.Equal(t, "#000000", b.Color)
	assert.Equal(t, DirectionLTR, b.WritingDirection)

	// baseline 720 with ascent 0.8 and descent 0.2 of 12pt, flipped to a top-left origin
	assert.InDelta(t, 72.0, b.BBox.X0, 0.01)
	assert.InDelta(t, 62.4, b.BBox.Y0, 0.01)
	assert.InDelta(t, 74.4, b.BBox.Y1, 0.01)
	assert.Greater(t, b.BBox.X1, 120.0)
	assert.Less(t, b.BBox.X1, 150.0)
	require.NotNil(t, b.LineHeight)
	assert.InDelta(t, 12.0, *b.LineHeight, 0.01)

	assert.Equal(t, []string{"page1_b0"}, doc.BlockOrder)
}

func TestExtractJoinsLinesIntoBlock(t *testing.T) {
	content := "BT /F1 12 Tf 14 TL 72 720 Td (Line one) Tj T* (Line two) Tj ET"
	path := writeFixturePDF(t, "lines.pdf", letterPage(content))

	doc, err := NewPDFParser().Extract(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages[0].Blocks, 1)
	assert.Equal(t, "Line one\nLine two", doc.Pages[0].Blocks[0].Text)
}

func TestExtractTJSpacing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"kerning keeps words", "BT /F1 12 Tf 72 700 Td [(Hel) -20 (lo)] TJ ET", "Hello"},
		{"wide gap becomes space", "BT /F1 12 Tf 72 700 Td [(Hello) -500 (World)] TJ ET", "Hello World"},
		{"escaped parens", `BT /F1 12 Tf 72 700 Td (a\(b\)c) Tj ET`, "a(b)c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixturePDF(t, "tj.pdf", letterPage(tt.content))
			doc, err := NewPDFParser().Extract(path)
			require.NoError(t, err)
			require.Len(t, doc.Pages[0].Blocks, 1)
			assert.Equal(t, tt.want, doc.Pages[0].Blocks[0].Text)
		})
	}
}

func TestExtractSortsBlocksTopToBottomLeftToRight(t *testing.T) {
	content := showText(72, 100, 12, "Bottom") + "\n" +
		showText(300, 500, 12, "Right") + "\n" +
		showText(72, 500, 12, "Left") + "\n" +
		showText(72, 700, 12, "Top")
	path := writeFixturePDF(t, "order.pdf", letterPage(content))

	doc, err := NewPDFParser().Extract(path)
	require.NoError(t, err)

	var texts, ids []string
	for _, b := range doc.Pages[0].Blocks {
		texts = append(texts, b.Text)
		ids = append(ids, b.BlockID)
	}
	assert.Equal(t, []string{"Top", "Left", "Right", "Bottom"}, texts)
	assert.Equal(t, []string{"page1_b0", "page1_b1", "page1_b2", "page1_b3"}, ids)
	assert.Equal(t, ids, doc.BlockOrder)
}

func TestExtractColorAndDirection(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		color     string
		direction Direction
	}{
		{"rgb fill", "BT 1 0 0 rg /F1 12 Tf 72 700 Td (Red) Tj ET", "#ff0000", DirectionLTR},
		{"gray fill", "0.5 g BT /F1 12 Tf 72 700 Td (Gray) Tj ET", "#808080", DirectionLTR},
		{"cmyk fill", "BT 0 0 0 1 k /F1 12 Tf 72 700 Td (Ink) Tj ET", "#000000", DirectionLTR},
		{"mirrored matrix", "BT /F1 12 Tf -1 0 0 1 400 700 Tm (abc) Tj ET", "#000000", DirectionRTL},
		{"vertical matrix", "BT /F1 12 Tf 0 -1 1 0 300 700 Tm (abc) Tj ET", "#000000", DirectionTTB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixturePDF(t, "color.pdf", letterPage(tt.content))
			doc, err := NewPDFParser().Extract(path)
			require.NoError(t, err)
			require.Len(t, doc.Pages[0].Blocks, 1)
			b := doc.Pages[0].Blocks[0]
			assert.Equal(t, tt.color, b.Color)
			assert.Equal(t, tt.direction, b.WritingDirection)
			assert.True(t, b.BBox.Valid())
		})
	}
}

func TestExtractSkipsWhitespaceOnlyText(t *testing.T) {
	path := writeFixturePDF(t, "blank.pdf", letterPage(showText(72, 700, 12, "    ")))

	doc, err := NewPDFParser().Extract(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Pages[0].Blocks)
	assert.Empty(t, doc.BlockOrder)
}

func TestExtractEmptyPage(t *testing.T) {
	path := writeFixturePDF(t, "empty.pdf", fixturePage{Width: 595, Height: 842})

	doc, err := NewPDFParser().Extract(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Empty(t, doc.Pages[0].Blocks)
	assert.Equal(t, 595.0, doc.Pages[0].Width)
	assert.Equal(t, 842.0, doc.Pages[0].Height)
}

func TestExtractIsDeterministic(t *testing.T) {
	content := showText(72, 700, 12, "First block") + "\n" +
		"BT 0 0 1 rg /F1 10 Tf 14 TL 72 600 Td (Second) Tj T* (block) Tj ET"
	path := writeFixturePDF(t, "det.pdf", letterPage(content), letterPage(showText(100, 100, 9, "Page two")))

	parser := NewPDFParser()
	first, err := parser.Extract(path)
	require.NoError(t, err)
	second, err := parser.Extract(path)
	require.NoError(t, err)

	a, err := MarshalLayout(first)
	require.NoError(t, err)
	b, err := MarshalLayout(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, []string{"page1_b0", "page1_b1", "page2_b0"}, first.BlockOrder)
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewPDFParser().Extract(filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
	assert.Equal(t, ErrPDFNotFound, pdfErrorCode(t, err))

	_, err = NewPDFParser().Extract(dir)
	require.Error(t, err)
	assert.Equal(t, ErrPDFInvalid, pdfErrorCode(t, err))

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a PDF document at all"), 0644))
	_, err = NewPDFParser().Extract(garbage)
	require.Error(t, err)
	assert.Contains(t, []PDFErrorCode{ErrPDFInvalid, ErrPDFCorrupted}, pdfErrorCode(t, err))
}

func TestGetPDFInfo(t *testing.T) {
	path := writeFixturePDF(t, "info.pdf",
		letterPage(showText(72, 700, 12, "Hello")),
		fixturePage{Width: 595, Height: 842, Rotate: 90})

	info, err := NewPDFParser().GetPDFInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "info.pdf", info.FileName)
	assert.Equal(t, 2, info.PageCount)
	assert.Greater(t, info.FileSize, int64(0))
	require.Len(t, info.Pages, 2)
	assert.Equal(t, PageInfo{PageNumber: 1, Width: 612, Height: 792}, info.Pages[0])
	assert.Equal(t, PageInfo{PageNumber: 2, Width: 595, Height: 842, Rotation: 90}, info.Pages[1])
}

func TestPageGeometryInheritedFromPageTree(t *testing.T) {
	path := writeFixturePDF(t, "inherit.pdf",
		fixturePage{Width: 595, Height: 842, Rotate: 270, Inherit: true, Content: showText(72, 700, 12, "Hello")},
		fixturePage{Width: 612, Height: 792, CropBox: []float64{36, 36, 576, 756}})

	info, err := NewPDFParser().GetPDFInfo(path)
	require.NoError(t, err)
	require.Len(t, info.Pages, 2)
	assert.Equal(t, PageInfo{PageNumber: 1, Width: 595, Height: 842, Rotation: 270}, info.Pages[0])
	assert.Equal(t, PageInfo{PageNumber: 2, Width: 540, Height: 720}, info.Pages[1], "CropBox wins over MediaBox")

	doc, err := NewPDFParser().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, 595.0, doc.Pages[0].Width)
	require.Len(t, doc.Pages[0].Blocks, 1)
	assert.Equal(t, "Hello", doc.Pages[0].Blocks[0].Text)
}

func TestIsTextPDF(t *testing.T) {
	parser := NewPDFParser()

	withText := writeFixturePDF(t, "text.pdf", letterPage(showText(72, 700, 12, "Hello")))
	ok, err := parser.IsTextPDF(withText)
	require.NoError(t, err)
	assert.True(t, ok)

	empty := writeFixturePDF(t, "empty.pdf", letterPage(""))
	ok, err = parser.IsTextPDF(empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, DirectionLTR, directionOf(1, 0))
	assert.Equal(t, DirectionRTL, directionOf(-1, 0))
	assert.Equal(t, DirectionTTB, directionOf(0, 1))
	assert.Equal(t, DirectionTTB, directionOf(0, -1))
	assert.Equal(t, DirectionLTR, directionOf(0, 0))
}

func TestDominantPrefersFirstSeenOnTie(t *testing.T) {
	var d dominant[string]
	d.add("Times", 3)
	d.add("Arial", 5)
	d.add("Times", 2)
	assert.Equal(t, "Times", d.best(""))

	var empty dominant[float64]
	assert.Equal(t, 12.0, empty.best(12))
}
