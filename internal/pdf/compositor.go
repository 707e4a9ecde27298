package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// Render methods.
const (
	MethodLineByLine = "line_by_line"
	MethodWordWrap   = "word_wrap"
)

// Fit modes for the Unicode path.
const (
	FitModeMetrics   = "metrics"
	FitModeHeuristic = "heuristic"
)

const removalPadding = 1.0

// RenderOptions control how translated text is placed.
type RenderOptions struct {
	Method       string
	FitMode      string
	Fitter       FontFitter
	FallbackFont string
	Unicode      *UnicodeFont
	// OverlayColor paints each removed block area before insertion; nil
	// disables the overlay.
	OverlayColor *RGB
}

// Placement records how one block was placed.
type Placement struct {
	BlockID        string  `json:"block_id"`
	Renderer       string  `json:"renderer"`
	Font           string  `json:"font"`
	InitialSize    float64 `json:"initial_size"`
	FontSize       float64 `json:"font_size"`
	Fits           bool    `json:"fits"`
	ClampedToFloor bool    `json:"clamped_to_floor,omitempty"`
	FallbackUsed   bool    `json:"fallback_used,omitempty"`
	LinesDropped   int     `json:"lines_dropped,omitempty"`
	LinesTruncated int     `json:"lines_truncated,omitempty"`
	MissingGlyphs  int     `json:"missing_glyphs,omitempty"`
	Skipped        bool    `json:"skipped,omitempty"`
	Err            string  `json:"error,omitempty"`
}

// Degraded reports whether the block was not placed exactly as requested.
func (p Placement) Degraded() bool {
	return p.ClampedToFloor || p.FallbackUsed || p.LinesDropped > 0 || p.LinesTruncated > 0 ||
		p.MissingGlyphs > 0 || p.Skipped
}

// textRenderer draws one block's text into the compositor's insert buffer.
type textRenderer interface {
	name() string
	render(c *Compositor, block TextBlock, text string) (Placement, error)
}

// Compositor swaps the text of one page. Place queues removals and draws
// new text into a separate buffer; Apply removes glyphs from the original
// content in one pass and appends the new text, so inserted text is never
// removed.
type Compositor struct {
	ctx      *model.Context
	pageNr   int
	pageDict types.Dict
	box      Rect
	fonts    func(string) *fontInfo
	opts     RenderOptions
	docFonts *documentFonts

	// primary, when set, replaces the renderer chosen per block; fallback
	// draws blocks the first renderer failed on.
	primary  textRenderer
	fallback textRenderer

	fontRes  types.Dict
	removals []Rect
	inserts  bytes.Buffer
	placed   []Placement
}

func newCompositor(ctx *model.Context, pageNr int, box Rect, fonts func(string) *fontInfo, opts RenderOptions, df *documentFonts) (*Compositor, error) {
	pageDict, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrGenerateFailed, "cannot read page dictionary", pageNr, err)
	}
	if pageDict == nil {
		return nil, NewPDFErrorWithPage(ErrGenerateFailed, "page dictionary missing", pageNr, nil)
	}
	c := &Compositor{
		ctx:      ctx,
		pageNr:   pageNr,
		pageDict: pageDict,
		box:      box,
		fonts:    fonts,
		opts:     opts,
		docFonts: df,
		fallback: builtinRenderer{font: NewFontMapper(opts.FallbackFont).Fallback},
	}
	if err := c.localizeResources(); err != nil {
		return nil, NewPDFErrorWithPage(ErrGenerateFailed, "cannot prepare page resources", pageNr, err)
	}
	return c, nil
}

// localizeResources gives the page its own Resources and Font dictionaries
// so new fonts do not leak into pages sharing inherited resources.
func (c *Compositor) localizeResources() error {
	inherited, err := c.inheritedResources()
	if err != nil {
		return err
	}
	res := types.Dict{}
	for k, v := range inherited {
		res[k] = v
	}
	fonts := types.Dict{}
	if o, ok := res["Font"]; ok && o != nil {
		fd, err := c.ctx.DereferenceDict(o)
		if err != nil {
			return err
		}
		for k, v := range fd {
			fonts[k] = v
		}
	}
	res["Font"] = fonts
	c.pageDict["Resources"] = res
	c.fontRes = fonts
	return nil
}

func (c *Compositor) inheritedResources() (types.Dict, error) {
	d := c.pageDict
	for depth := 0; d != nil && depth < 64; depth++ {
		if o, ok := d["Resources"]; ok && o != nil {
			return c.ctx.DereferenceDict(o)
		}
		parent, ok := d["Parent"]
		if !ok || parent == nil {
			break
		}
		next, err := c.ctx.DereferenceDict(parent)
		if err != nil {
			return nil, err
		}
		d = next
	}
	return types.Dict{}, nil
}

// Place queues the removal of block's original text and draws text in its
// rectangle. Renderer failures are retried once with the fallback builtin
// font; a second failure skips the block.
func (c *Compositor) Place(block TextBlock, text string) Placement {
	c.removals = append(c.removals, block.BBox.Pad(removalPadding))

	r := c.rendererFor(text, block.FontName)
	mark := c.inserts.Len()
	p, err := r.render(c, block, text)
	if err == nil {
		c.placed = append(c.placed, p)
		return p
	}
	c.inserts.Truncate(mark)
	logger.Warn("renderer failed, retrying with fallback font",
		logger.String("block", block.BlockID),
		logger.String("renderer", r.name()),
		logger.Err(err))

	p, err2 := c.fallback.render(c, block, text)
	if err2 == nil {
		p.FallbackUsed = true
		c.placed = append(c.placed, p)
		return p
	}
	c.inserts.Truncate(mark)
	logger.Warn("block skipped", logger.String("block", block.BlockID), logger.Err(err2))
	p = Placement{
		BlockID:     block.BlockID,
		Renderer:    c.fallback.name(),
		InitialSize: initialSize(block),
		Skipped:     true,
		Err:         err2.Error(),
	}
	c.placed = append(c.placed, p)
	return p
}

func (c *Compositor) rendererFor(text, fontName string) textRenderer {
	if c.primary != nil {
		return c.primary
	}
	if c.opts.Unicode != nil && hasNonASCII(text) {
		return unicodeRenderer{font: c.opts.Unicode}
	}
	return builtinRenderer{font: NewFontMapper(c.opts.FallbackFont).Map(fontName)}
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}

func initialSize(block TextBlock) float64 {
	if block.FontSize > 0 {
		return block.FontSize
	}
	return 12
}

// Placements returns the placements made so far on this page.
func (c *Compositor) Placements() []Placement {
	return c.placed
}

// Apply removes every glyph whose center lies in a queued removal area and
// replaces the page content with the filtered original followed by the
// overlay and the inserted text.
func (c *Compositor) Apply() error {
	original, err := c.pageContent()
	if err != nil {
		return NewPDFErrorWithPage(ErrGenerateFailed, "cannot read page content", c.pageNr, err)
	}

	filtered, removed := c.removeGlyphs(original)

	var out bytes.Buffer
	out.WriteString("q\n")
	out.Write(filtered)
	out.WriteString("\nQ\n")
	if c.opts.OverlayColor != nil {
		col := *c.opts.OverlayColor
		for _, r := range c.removals {
			fmt.Fprintf(&out, "q %s %s %s rg %s %s %s %s re f Q\n",
				formatNum(col.R), formatNum(col.G), formatNum(col.B),
				formatNum(c.box.X0+r.X0), formatNum(c.box.Y1-r.Y1), formatNum(r.Width()), formatNum(r.Height()))
		}
	}
	out.Write(c.inserts.Bytes())

	sd, err := c.ctx.NewStreamDictForBuf(out.Bytes())
	if err != nil {
		return NewPDFErrorWithPage(ErrGenerateFailed, "cannot create content stream", c.pageNr, err)
	}
	if err := sd.Encode(); err != nil {
		return NewPDFErrorWithPage(ErrGenerateFailed, "cannot encode content stream", c.pageNr, err)
	}
	ref, err := c.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return NewPDFErrorWithPage(ErrGenerateFailed, "cannot add content stream", c.pageNr, err)
	}
	c.pageDict["Contents"] = *ref

	logger.Debug("page composed",
		logger.Int("page", c.pageNr),
		logger.Int("blocks", len(c.placed)),
		logger.Int("glyphs_removed", removed))
	return nil
}

func (c *Compositor) pageContent() ([]byte, error) {
	o, ok := c.pageDict["Contents"]
	if !ok || o == nil {
		return nil, nil
	}
	obj, err := c.ctx.Dereference(o)
	if err != nil {
		return nil, err
	}
	if arr, ok := obj.(types.Array); ok {
		var buf bytes.Buffer
		for _, item := range arr {
			data, err := c.streamContent(item)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
	return c.streamContent(o)
}

func (c *Compositor) streamContent(o types.Object) ([]byte, error) {
	sd, _, err := c.ctx.DereferenceStreamDict(o)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, err
	}
	return sd.Content, nil
}

type glyphMark struct {
	elem   int
	raw    string
	remove bool
	adjust float64 // TJ displacement replacing the glyph, thousandths of text space
}

// removeGlyphs rewrites show operators so that glyphs inside removal areas
// are replaced by equivalent positioning offsets. Other operators are
// copied unchanged.
func (c *Compositor) removeGlyphs(content []byte) ([]byte, int) {
	if len(c.removals) == 0 || len(content) == 0 {
		return content, 0
	}
	ops := parseContent(content)
	marks := map[int][]glyphMark{}
	removed := 0
	in := newInterpreter(c.fonts, func(g glyph) {
		cx := (g.box.X0+g.box.X1)/2 - c.box.X0
		cy := c.box.Y1 - (g.box.Y0+g.box.Y1)/2
		remove := false
		for _, r := range c.removals {
			if r.Contains(cx, cy) {
				remove = true
				break
			}
		}
		adj := 0.0
		if scale := g.fontSize * g.hscale; scale != 0 {
			adj = -g.advance * 1000 / scale
		}
		if remove {
			removed++
		}
		marks[g.op] = append(marks[g.op], glyphMark{elem: g.elem, raw: g.code.raw, remove: remove, adjust: adj})
	})
	in.run(ops)
	if removed == 0 {
		return content, 0
	}

	var out bytes.Buffer
	last := 0
	for i, op := range ops {
		m := marks[i]
		if !anyRemoved(m) {
			continue
		}
		out.Write(content[last:op.Start])
		out.WriteString(rewriteShow(op, m))
		last = op.End
	}
	out.Write(content[last:])
	return out.Bytes(), removed
}

func anyRemoved(marks []glyphMark) bool {
	for _, m := range marks {
		if m.remove {
			return true
		}
	}
	return false
}

// rewriteShow turns a Tj, TJ, ' or " operator into a TJ whose removed
// glyphs are replaced by displacements.
func rewriteShow(op contentOp, marks []glyphMark) string {
	var prefix string
	var elems []csValue
	switch op.Op {
	case "TJ":
		if len(op.Args) > 0 {
			elems = op.Args[0].arr
		}
	case "Tj":
		elems = op.Args[:min(1, len(op.Args))]
	case "'":
		prefix = "T* "
		elems = op.Args[:min(1, len(op.Args))]
	case "\"":
		prefix = fmt.Sprintf("%s Tw %s Tc T* ", formatNum(op.num(0)), formatNum(op.num(1)))
		if len(op.Args) >= 3 {
			elems = op.Args[2:3]
		}
	}

	var items []string
	var run []byte
	var adj float64
	haveAdj := false
	flushRun := func() {
		if len(run) > 0 {
			items = append(items, hexLiteral(run))
			run = nil
		}
	}
	flushAdj := func() {
		if haveAdj {
			items = append(items, formatNum(adj))
			adj, haveAdj = 0, false
		}
	}

	mi := 0
	for e, item := range elems {
		switch item.kind {
		case kindNumber:
			flushRun()
			adj += item.num
			haveAdj = true
		case kindString:
			for mi < len(marks) && marks[mi].elem == e {
				m := marks[mi]
				if m.remove {
					flushRun()
					adj += m.adjust
					haveAdj = true
				} else {
					flushAdj()
					run = append(run, m.raw...)
				}
				mi++
			}
		}
	}
	flushRun()
	flushAdj()
	return prefix + "[" + strings.Join(items, " ") + "] TJ"
}

// topLeftToPDF converts a top-left page coordinate to PDF user space.
func (c *Compositor) topLeftToPDF(x, y float64) (float64, float64) {
	return c.box.X0 + x, c.box.Y1 - y
}

func (c *Compositor) writeLine(resName string, size float64, col RGB, x, y float64, encoded []byte) {
	px, py := c.topLeftToPDF(x, y)
	fmt.Fprintf(&c.inserts, "BT\n%s %s Tf\n%s %s %s rg\n1 0 0 1 %s %s Tm\n%s Tj\nET\n",
		nameLiteral(resName), formatNum(size),
		formatNum(col.R), formatNum(col.G), formatNum(col.B),
		formatNum(px), formatNum(py), hexLiteral(encoded))
}

// emitLines draws lines top-down from the rectangle's top. Lines whose
// baseline falls below the rectangle are dropped, except the first.
func (c *Compositor) emitLines(p *Placement, block TextBlock, lines []string, size float64, m Measurer,
	resName string, encode func(string) ([]byte, int), truncate bool) {
	rect := block.BBox
	metrics := m.LineMetrics()
	col, _ := ParseColor(block.Color)
	alignRight := block.WritingDirection == DirectionRTL

	for i, line := range lines {
		baseline := rect.Y0 + metrics.Ascent*size + float64(i)*metrics.Spacing*size
		if i > 0 && baseline > rect.Y1+fitEpsilon {
			p.LinesDropped += len(lines) - i
			break
		}
		if truncate {
			if cut, ok := truncateToWidth(line, rect.Width(), size, m); ok {
				line = cut
				p.LinesTruncated++
			}
		}
		if line == "" {
			continue
		}
		x := rect.X0
		if alignRight {
			x = math.Max(rect.X0, rect.X1-m.Advance(line, size))
		}
		encoded, missing := encode(line)
		p.MissingGlyphs += missing
		c.writeLine(resName, size, col, x, baseline, encoded)
	}
}

// builtinRenderer draws with a standard-14 font in WinAnsi encoding.
type builtinRenderer struct {
	font string // builtin id, e.g. "helvbo"
}

func (r builtinRenderer) name() string { return "builtin" }

func (r builtinRenderer) render(c *Compositor, block TextBlock, text string) (Placement, error) {
	std, ok := BuiltinFontName(r.font)
	if !ok {
		return Placement{}, NewPDFErrorWithDetails(ErrFontUnavailable, "unknown builtin font", r.font, nil)
	}
	resName, err := c.docFonts.builtinResource(c, std)
	if err != nil {
		return Placement{}, err
	}
	if c.opts.Method == MethodWordWrap {
		text = FlattenText(text)
	}

	m := newCoreMeasurer(std)
	fit := c.opts.Fitter.Fit(text, block.BBox, initialSize(block), Strategy{Layout: LayoutBox, Measurer: m})
	p := Placement{
		BlockID:        block.BlockID,
		Renderer:       r.name(),
		Font:           std,
		InitialSize:    initialSize(block),
		FontSize:       fit.Size,
		Fits:           fit.Fits,
		ClampedToFloor: !fit.Fits,
	}
	c.emitLines(&p, block, fit.Lines, fit.Size, m, resName, encodeWinAnsi, false)
	return p, nil
}

// encodeWinAnsi encodes s in Windows-1252; unencodable runes become '?'
// and are counted as missing.
func encodeWinAnsi(s string) ([]byte, int) {
	out := make([]byte, 0, len(s))
	missing := 0
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
			missing++
		}
		out = append(out, b)
	}
	return out, missing
}

// unicodeRenderer draws explicit lines with the embedded Unicode font.
type unicodeRenderer struct {
	font *UnicodeFont
}

func (r unicodeRenderer) name() string { return "unicode" }

func (r unicodeRenderer) render(c *Compositor, block TextBlock, text string) (Placement, error) {
	resName, enc, err := c.docFonts.unicodeResource(c, r.font)
	if err != nil {
		return Placement{}, err
	}

	var m Measurer = r.font
	if c.opts.FitMode == FitModeHeuristic {
		m = heuristicMeasurer{}
	}
	layout := LayoutLines
	if c.opts.Method == MethodWordWrap {
		layout = LayoutWordWrap
	}
	fit := c.opts.Fitter.Fit(text, block.BBox, initialSize(block), Strategy{Layout: layout, Measurer: m})
	p := Placement{
		BlockID:        block.BlockID,
		Renderer:       r.name(),
		Font:           r.font.Name,
		InitialSize:    initialSize(block),
		FontSize:       fit.Size,
		Fits:           fit.Fits,
		ClampedToFloor: !fit.Fits,
	}
	c.emitLines(&p, block, fit.Lines, fit.Size, m, resName, enc.encode, true)
	return p, nil
}

// documentFonts holds the font objects added to one document. Builtin
// fonts are shared by all pages; the Unicode font's widths and ToUnicode
// map are completed by finalize once every page is composed.
type documentFonts struct {
	builtin map[string]types.IndirectRef

	unicode    *unicodeEncoder
	unicodeRef *types.IndirectRef
	cidFont    types.Dict
	type0      types.Dict
	descriptor types.Dict
}

func newDocumentFonts() *documentFonts {
	return &documentFonts{builtin: map[string]types.IndirectRef{}}
}

const (
	builtinResourcePrefix = "PDFT"
	unicodeResourceName   = "PDFTU0"
)

func (df *documentFonts) builtinResource(c *Compositor, std string) (string, error) {
	ref, ok := df.builtin[std]
	if !ok {
		d := types.Dict{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name(std),
		}
		if std != "Symbol" && std != "ZapfDingbats" {
			d["Encoding"] = types.Name("WinAnsiEncoding")
		}
		ir, err := c.ctx.IndRefForNewObject(d)
		if err != nil {
			return "", NewPDFError(ErrFontUnavailable, "cannot add builtin font", err)
		}
		ref = *ir
		df.builtin[std] = ref
	}
	name := builtinResourcePrefix + strings.ReplaceAll(std, "-", "")
	c.fontRes[name] = ref
	return name, nil
}

func (df *documentFonts) unicodeResource(c *Compositor, uf *UnicodeFont) (string, *unicodeEncoder, error) {
	if df.unicodeRef == nil {
		df.unicode = newUnicodeEncoder(uf)
		df.descriptor = types.Dict{
			"Type":        types.Name("FontDescriptor"),
			"FontName":    types.Name(uf.Name),
			"Flags":       types.Integer(32),
			"FontBBox":    types.Array{types.Integer(uf.bbox[0]), types.Integer(uf.bbox[1]), types.Integer(uf.bbox[2]), types.Integer(uf.bbox[3])},
			"ItalicAngle": types.Integer(0),
			"Ascent":      types.Integer(int(math.Round(uf.ascent * 1000))),
			"Descent":     types.Integer(int(math.Round(-uf.descent * 1000))),
			"CapHeight":   types.Integer(int(math.Round(uf.ascent * 1000))),
			"StemV":       types.Integer(80),
		}
		descRef, err := c.ctx.IndRefForNewObject(df.descriptor)
		if err != nil {
			return "", nil, NewPDFError(ErrFontUnavailable, "cannot add font descriptor", err)
		}
		subtype := "CIDFontType2"
		if uf.cff {
			subtype = "CIDFontType0"
		}
		df.cidFont = types.Dict{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name(subtype),
			"BaseFont": types.Name(uf.Name),
			"CIDSystemInfo": types.Dict{
				"Registry":   types.StringLiteral("Adobe"),
				"Ordering":   types.StringLiteral("Identity"),
				"Supplement": types.Integer(0),
			},
			"FontDescriptor": *descRef,
			"DW":             types.Integer(1000),
		}
		if !uf.cff {
			df.cidFont["CIDToGIDMap"] = types.Name("Identity")
		}
		cidRef, err := c.ctx.IndRefForNewObject(df.cidFont)
		if err != nil {
			return "", nil, NewPDFError(ErrFontUnavailable, "cannot add CID font", err)
		}
		df.type0 = types.Dict{
			"Type":            types.Name("Font"),
			"Subtype":         types.Name("Type0"),
			"BaseFont":        types.Name(uf.Name),
			"Encoding":        types.Name("Identity-H"),
			"DescendantFonts": types.Array{*cidRef},
		}
		ref, err := c.ctx.IndRefForNewObject(df.type0)
		if err != nil {
			return "", nil, NewPDFError(ErrFontUnavailable, "cannot add Unicode font", err)
		}
		df.unicodeRef = ref
	}
	c.fontRes[unicodeResourceName] = *df.unicodeRef
	return unicodeResourceName, df.unicode, nil
}

// finalize embeds the Unicode font program and writes the widths and
// ToUnicode map of the glyphs used.
func (df *documentFonts) finalize(ctx *model.Context) error {
	if df.unicodeRef == nil {
		return nil
	}
	uf := df.unicode.font

	fontFile, err := ctx.NewStreamDictForBuf(uf.data)
	if err != nil {
		return NewPDFError(ErrFontUnavailable, "cannot create font stream", err)
	}
	key := "FontFile2"
	if uf.cff {
		key = "FontFile3"
		fontFile.Dict["Subtype"] = types.Name("OpenType")
	} else {
		fontFile.Dict["Length1"] = types.Integer(len(uf.data))
	}
	if err := fontFile.Encode(); err != nil {
		return NewPDFError(ErrFontUnavailable, "cannot encode font stream", err)
	}
	fontRef, err := ctx.IndRefForNewObject(*fontFile)
	if err != nil {
		return NewPDFError(ErrFontUnavailable, "cannot add font stream", err)
	}
	df.descriptor[key] = *fontRef

	cmap, err := ctx.NewStreamDictForBuf(df.unicode.toUnicodeCMap())
	if err != nil {
		return NewPDFError(ErrFontUnavailable, "cannot create ToUnicode stream", err)
	}
	if err := cmap.Encode(); err != nil {
		return NewPDFError(ErrFontUnavailable, "cannot encode ToUnicode stream", err)
	}
	cmapRef, err := ctx.IndRefForNewObject(*cmap)
	if err != nil {
		return NewPDFError(ErrFontUnavailable, "cannot add ToUnicode stream", err)
	}
	df.type0["ToUnicode"] = *cmapRef
	df.cidFont["W"] = df.widthArray()
	return nil
}

// widthArray groups consecutive glyph ids: [g [w1 w2 ...] ...].
func (df *documentFonts) widthArray() types.Array {
	var w types.Array
	gids := df.unicode.sortedGlyphs()
	for i := 0; i < len(gids); {
		j := i
		var ws types.Array
		for j < len(gids) && int(gids[j]) == int(gids[i])+(j-i) {
			ws = append(ws, types.Integer(int(math.Round(df.unicode.used[gids[j]].width))))
			j++
		}
		w = append(w, types.Integer(int(gids[i])), ws)
		i = j
	}
	return w
}
