// Package pdf extracts positioned text blocks from PDF documents and
// rebuilds documents with translated text at the original coordinates.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// PDFInfo summarizes a document for the info command.
type PDFInfo struct {
	FilePath  string     `json:"file_path" yaml:"file_path"`
	FileName  string     `json:"file_name" yaml:"file_name"`
	PageCount int        `json:"page_count" yaml:"page_count"`
	FileSize  int64      `json:"file_size" yaml:"file_size"`
	IsTextPDF bool       `json:"is_text_pdf" yaml:"is_text_pdf"`
	Pages     []PageInfo `json:"pages" yaml:"pages"`
}

// PageInfo is the geometry of one page.
type PageInfo struct {
	PageNumber int     `json:"page_number" yaml:"page_number"`
	Width      float64 `json:"width" yaml:"width"`
	Height     float64 `json:"height" yaml:"height"`
	Rotation   int     `json:"rotation" yaml:"rotation"`
}

// PDFParser extracts text blocks from PDF files.
type PDFParser struct{}

// NewPDFParser returns a parser. It holds no state.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// openPDF checks the path and opens it with the reader. The returned file
// must be closed by the caller.
func openPDF(pdfPath string) (f *os.File, r *lpdf.Reader, err error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, NewPDFErrorWithDetails(ErrPDFNotFound, "file not found", pdfPath, err)
		}
		return nil, nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot access file", pdfPath, err)
	}
	if fileInfo.IsDir() {
		return nil, nil, NewPDFErrorWithDetails(ErrPDFInvalid, "path is a directory", pdfPath, nil)
	}

	defer func() {
		var perr error
		recoverPanic(&perr)
		if perr != nil {
			if f != nil {
				f.Close()
			}
			f, r = nil, nil
			err = NewPDFErrorWithDetails(ErrPDFCorrupted, "cannot parse PDF", pdfPath, perr)
		}
	}()

	f, r, err = lpdf.Open(pdfPath)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return nil, nil, NewPDFErrorWithDetails(ErrPDFEncrypted, "PDF is encrypted", pdfPath, err)
		}
		return nil, nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot open PDF", pdfPath, err)
	}
	return f, r, nil
}

// GetPDFInfo reports page count, file size and per-page geometry.
func (p *PDFParser) GetPDFInfo(pdfPath string) (info *PDFInfo, err error) {
	f, r, err := openPDF(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer func() {
		var perr error
		recoverPanic(&perr)
		if perr != nil {
			info, err = nil, NewPDFErrorWithDetails(ErrPDFCorrupted, "cannot read page tree", pdfPath, perr)
		}
	}()

	fileInfo, _ := f.Stat()
	info = &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: r.NumPage(),
	}
	if fileInfo != nil {
		info.FileSize = fileInfo.Size()
	}
	for n := 1; n <= info.PageCount; n++ {
		box, rot := pageGeometry(r.Page(n))
		info.Pages = append(info.Pages, PageInfo{
			PageNumber: n,
			Width:      round3(box.Width()),
			Height:     round3(box.Height()),
			Rotation:   rot,
		})
	}

	isText, textErr := p.IsTextPDF(pdfPath)
	if textErr == nil {
		info.IsTextPDF = isText
	}
	return info, nil
}

// IsTextPDF reports whether one of the first pages has extractable text.
func (p *PDFParser) IsTextPDF(pdfPath string) (ok bool, err error) {
	f, r, err := openPDF(pdfPath)
	if err != nil {
		return false, err
	}
	defer f.Close()
	defer func() {
		if recover() != nil {
			ok, err = false, nil
		}
	}()

	maxPagesToCheck := 3
	if r.NumPage() < maxPagesToCheck {
		maxPagesToCheck = r.NumPage()
	}

	totalTextLength := 0
	for pageNum := 1; pageNum <= maxPagesToCheck; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, r := range content {
			if !unicode.IsSpace(r) {
				totalTextLength++
			}
		}
		if totalTextLength > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Extract reads every page of the PDF and returns its text blocks. Any
// unreadable page fails the whole extraction; no partial document is returned.
func (p *PDFParser) Extract(pdfPath string) (*Document, error) {
	f, r, err := openPDF(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := &Document{SourceFile: pdfPath}
	numPages, err := safeNumPage(r)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFCorrupted, "cannot read page tree", pdfPath, err)
	}
	for n := 1; n <= numPages; n++ {
		page, err := extractPage(r, n)
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, *page)
	}
	doc.BlockOrder = BlockOrder(doc)

	logger.Info("extracted layout",
		logger.String("file", filepath.Base(pdfPath)),
		logger.Int("pages", len(doc.Pages)),
		logger.Int("blocks", doc.BlockCount()))
	return doc, nil
}

func safeNumPage(r *lpdf.Reader) (n int, err error) {
	defer recoverPanic(&err)
	return r.NumPage(), nil
}

func extractPage(r *lpdf.Reader, n int) (page *Page, err error) {
	defer func() {
		var perr error
		recoverPanic(&perr)
		if perr != nil {
			page, err = nil, NewPDFErrorWithPage(ErrPDFCorrupted, "cannot read page", n, perr)
		}
	}()

	pg := r.Page(n)
	if pg.V.IsNull() {
		return nil, NewPDFErrorWithPage(ErrPDFCorrupted, "page object missing", n, nil)
	}
	box, rot := pageGeometry(pg)
	page = &Page{
		PageNumber: n,
		Width:      round3(box.Width()),
		Height:     round3(box.Height()),
		Rotation:   rot,
		Blocks:     []TextBlock{},
	}

	content, err := pageContent(pg)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrExtractFailed, "cannot decode page content", n, err)
	}

	var glyphs []glyph
	in := newInterpreter(pageFontResolver(pg), func(g glyph) { glyphs = append(glyphs, g) })
	in.run(parseContent(content))

	lines := groupLines(glyphs, box)
	blocks := groupBlocks(lines, n)
	page.Blocks = SortBlocks(n, blocks)
	return page, nil
}

// pageGeometry returns the visible page box (CropBox, else MediaBox) in PDF
// user space and the page rotation normalized to 0, 90, 180 or 270.
func pageGeometry(pg lpdf.Page) (Rect, int) {
	box := boxFromValue(inheritedKey(pg, "CropBox"))
	if !box.Valid() {
		box = boxFromValue(inheritedKey(pg, "MediaBox"))
	}
	if !box.Valid() {
		box = Rect{0, 0, 612, 792}
	}

	rot := 0
	if r := inheritedKey(pg, "Rotate"); r.Kind() == lpdf.Integer || r.Kind() == lpdf.Real {
		rot = int(r.Int64())
	}
	rot = ((rot % 360) + 360) % 360
	rot -= rot % 90
	return box, rot
}

// inheritedKey looks key up on the page and then up its page tree. The
// zero Value is returned when no node sets it.
func inheritedKey(pg lpdf.Page, key string) lpdf.Value {
	for v := pg.V; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return lpdf.Value{}
}

func boxFromValue(v lpdf.Value) Rect {
	if v.Len() < 4 {
		return Rect{}
	}
	a, b, c, d := v.Index(0).Float64(), v.Index(1).Float64(), v.Index(2).Float64(), v.Index(3).Float64()
	return Rect{math.Min(a, c), math.Min(b, d), math.Max(a, c), math.Max(b, d)}
}

// pageContent returns the decoded page content; arrays of streams are
// joined with newlines.
func pageContent(pg lpdf.Page) ([]byte, error) {
	c := pg.V.Key("Contents")
	switch c.Kind() {
	case lpdf.Stream:
		return readStream(c)
	case lpdf.Array:
		var buf bytes.Buffer
		for i := 0; i < c.Len(); i++ {
			data, err := readStream(c.Index(i))
			if err != nil {
				return nil, err
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

func readStream(v lpdf.Value) ([]byte, error) {
	if v.Kind() != lpdf.Stream {
		return nil, nil
	}
	rc := v.Reader()
	defer rc.Close()
	return io.ReadAll(rc)
}

// pageFontResolver loads fonts of a page's resources on first use.
func pageFontResolver(pg lpdf.Page) func(string) *fontInfo {
	cache := map[string]*fontInfo{}
	return func(name string) *fontInfo {
		if fi, ok := cache[name]; ok {
			return fi
		}
		fi := loadPageFont(pg, name)
		cache[name] = fi
		return fi
	}
}

func loadPageFont(pg lpdf.Page, name string) (fi *fontInfo) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("font resource unreadable", logger.String("font", name), logger.String("error", fmt.Sprint(r)))
			fi = fallbackFontInfo(name)
		}
	}()
	f := pg.Font(name)
	if f.V.Kind() != lpdf.Dict {
		return fallbackFontInfo(name)
	}
	return loadFontInfo(f)
}

type span struct {
	font  string
	size  float64
	color string
	chars int
}

type textLine struct {
	text  strings.Builder
	box   Rect // top-left origin
	boxOK bool
	dirX  float64
	dirY  float64 // top-left origin, Y down
	size  float64
	spans []span
	last  glyph
}

func (l *textLine) addSpan(font string, size float64, color string, chars int) {
	if n := len(l.spans); n > 0 {
		s := &l.spans[n-1]
		if s.font == font && s.size == size && s.color == color {
			s.chars += chars
			return
		}
	}
	l.spans = append(l.spans, span{font, size, color, chars})
}

func (l *textLine) lastRuneIsSpace() bool {
	s := l.text.String()
	if s == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

// continues reports whether g sits on the same baseline just after the end
// of the line.
func (l *textLine) continues(g glyph) bool {
	if l.last.dirX*g.dirX+l.last.dirY*g.dirY < 0.99 {
		return false
	}
	size := math.Max(l.size, g.size)
	if size <= 0 {
		size = 1
	}
	dx, dy := g.x-l.last.endX, g.y-l.last.endY
	along := dx*g.dirX + dy*g.dirY
	perp := math.Abs(-dx*g.dirY + dy*g.dirX)
	return perp <= 0.5*size && along >= -0.5*size && along <= 3*size
}

// groupLines joins glyphs into lines in content order. page is the page
// box used to flip coordinates to a top-left origin.
func groupLines(glyphs []glyph, page Rect) []*textLine {
	var lines []*textLine
	var cur *textLine
	for _, g := range glyphs {
		if g.code.text == "" {
			continue
		}
		if cur != nil && cur.continues(g) {
			size := math.Max(cur.size, g.size)
			dx, dy := g.x-cur.last.endX, g.y-cur.last.endY
			gap := dx*g.dirX + dy*g.dirY
			if gap > 0.25*size && !cur.lastRuneIsSpace() && !isBlank(g.code.text) {
				cur.text.WriteByte(' ')
				if n := len(cur.spans); n > 0 {
					cur.spans[n-1].chars++
				}
			}
		} else {
			cur = &textLine{dirX: g.dirX, dirY: -g.dirY}
			lines = append(lines, cur)
		}

		cur.text.WriteString(g.code.text)
		cur.size = math.Max(cur.size, g.size)
		cur.addSpan(g.font, round3(g.size), g.color.Hex(), utf8.RuneCountInString(g.code.text))
		cur.last = g

		if !isBlank(g.code.text) {
			b := Rect{g.box.X0 - page.X0, page.Y1 - g.box.Y1, g.box.X1 - page.X0, page.Y1 - g.box.Y0}
			if cur.boxOK {
				cur.box = cur.box.Union(b)
			} else {
				cur.box, cur.boxOK = b, true
			}
		}
	}
	return lines
}

func (l *textLine) horizontal() bool {
	return math.Abs(l.dirY) < 0.01
}

type blockBuilder struct {
	lines []*textLine
	box   Rect
}

func (b *blockBuilder) accepts(l *textLine) bool {
	first := b.lines[0]
	prev := b.lines[len(b.lines)-1]
	if first.dirX*l.dirX+first.dirY*l.dirY < 0.99 {
		return false
	}
	size := math.Max(prev.size, 1)
	if ratio := l.size / size; ratio < 0.7 || ratio > 1.43 {
		return false
	}
	if l.horizontal() && first.dirX > 0 {
		gap := l.box.Y0 - prev.box.Y1
		if gap < -0.3*prev.box.Height() || gap > 0.8*size {
			return false
		}
		return l.box.X0 <= b.box.X1+size && l.box.X1 >= b.box.X0-size
	}
	p := b.box.Pad(size)
	return l.box.X0 <= p.X1 && l.box.X1 >= p.X0 && l.box.Y0 <= p.Y1 && l.box.Y1 >= p.Y0
}

func groupBlocks(lines []*textLine, pageNum int) []TextBlock {
	var builders []*blockBuilder
	var cur *blockBuilder
	for _, l := range lines {
		if !l.boxOK {
			continue
		}
		if cur != nil && cur.accepts(l) {
			cur.lines = append(cur.lines, l)
			cur.box = cur.box.Union(l.box)
			continue
		}
		cur = &blockBuilder{lines: []*textLine{l}, box: l.box}
		builders = append(builders, cur)
	}

	blocks := make([]TextBlock, 0, len(builders))
	for _, b := range builders {
		if block, ok := b.build(pageNum); ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// dominant counts values in first-seen order and returns the one with the
// largest total; ties keep the earliest.
type dominant[T comparable] struct {
	order  []T
	counts map[T]int
}

func (d *dominant[T]) add(v T, n int) {
	if d.counts == nil {
		d.counts = map[T]int{}
	}
	if _, ok := d.counts[v]; !ok {
		d.order = append(d.order, v)
	}
	d.counts[v] += n
}

func (d *dominant[T]) best(fallback T) T {
	best, bestN := fallback, -1
	for _, v := range d.order {
		if d.counts[v] > bestN {
			best, bestN = v, d.counts[v]
		}
	}
	return best
}

func (b *blockBuilder) build(pageNum int) (TextBlock, bool) {
	texts := make([]string, 0, len(b.lines))
	var fonts dominant[string]
	var sizes dominant[float64]
	var colors dominant[string]
	var heightSum float64
	var heightN int
	for _, l := range b.lines {
		texts = append(texts, strings.TrimRightFunc(l.text.String(), unicode.IsSpace))
		for _, s := range l.spans {
			fonts.add(s.font, s.chars)
			sizes.add(s.size, s.chars)
			colors.add(s.color, s.chars)
		}
		if h := l.box.Height(); h > 0 {
			heightSum += h
			heightN++
		}
	}
	text := strings.Join(texts, "\n")
	if isBlank(text) || !b.box.Valid() {
		return TextBlock{}, false
	}

	block := TextBlock{
		PageNumber:       pageNum,
		BBox:             Rect{round3(b.box.X0), round3(b.box.Y0), round3(b.box.X1), round3(b.box.Y1)},
		Text:             text,
		FontName:         fonts.best("Helvetica"),
		FontSize:         sizes.best(12),
		Color:            colors.best("#000000"),
		WritingDirection: directionOf(b.lines[0].dirX, b.lines[0].dirY),
	}
	if heightN > 0 {
		lh := round3(heightSum / float64(heightN))
		block.LineHeight = &lh
	}
	return block, true
}

func directionOf(dx, dy float64) Direction {
	const eps = 1e-6
	switch {
	case dx < -eps:
		return DirectionRTL
	case math.Abs(dx) <= eps && math.Abs(dy) > eps:
		return DirectionTTB
	}
	return DirectionLTR
}
