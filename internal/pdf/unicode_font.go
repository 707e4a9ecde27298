package pdf

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// UnicodeFont is a TrueType or OpenType font used for text the builtin fonts
// cannot show. It is read-only after loading and may be shared by documents
// processed in parallel.
type UnicodeFont struct {
	Path string
	Name string

	data    []byte // standalone sfnt bytes, the first face for collections
	font    *sfnt.Font
	cff     bool
	upem    int
	ascent  float64 // fractions of an em; descent is positive
	descent float64
	lineGap float64
	bbox    [4]int // font units

	bufs   sync.Pool
	mu     sync.RWMutex
	glyphs map[rune]unicodeGlyph
}

type unicodeGlyph struct {
	gid   sfnt.GlyphIndex
	width float64 // thousandths of an em
	ok    bool
}

// LoadUnicodeFont parses a .ttf, .otf or .ttc file. For collections the
// first face is used.
func LoadUnicodeFont(path string) (*UnicodeFont, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrFontUnavailable, "cannot read font file", path, err)
	}
	data := raw
	if len(raw) >= 4 && string(raw[:4]) == "ttcf" {
		data, err = extractCollectionFace(raw, 0)
		if err != nil {
			return nil, NewPDFErrorWithDetails(ErrFontUnavailable, "cannot read font collection", path, err)
		}
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrFontUnavailable, "cannot parse font", path, err)
	}

	uf := &UnicodeFont{
		Path:   path,
		data:   data,
		font:   f,
		cff:    len(data) >= 4 && string(data[:4]) == "OTTO",
		upem:   int(f.UnitsPerEm()),
		glyphs: map[rune]unicodeGlyph{},
	}
	uf.bufs.New = func() any { return new(sfnt.Buffer) }
	if uf.upem <= 0 {
		uf.upem = 1000
	}

	buf := uf.buffer()
	defer uf.bufs.Put(buf)

	ppem := fixed.I(uf.upem)
	if m, err := f.Metrics(buf, ppem, font.HintingNone); err == nil {
		em := float64(uf.upem) * 64
		uf.ascent = float64(m.Ascent) / em
		uf.descent = float64(m.Descent) / em
		uf.lineGap = float64(m.Height)/em - uf.ascent - uf.descent
	}
	if uf.ascent <= 0 {
		uf.ascent = defaultAscent
	}
	if uf.descent <= 0 {
		uf.descent = -defaultDescent
	}
	if uf.lineGap < 0 {
		uf.lineGap = 0
	}
	if b, err := f.Bounds(buf, ppem, font.HintingNone); err == nil {
		uf.bbox = [4]int{b.Min.X.Round(), -b.Max.Y.Round(), b.Max.X.Round(), -b.Min.Y.Round()}
	}

	name, err := f.Name(buf, sfnt.NameIDPostScript)
	if err != nil || name == "" {
		name = filenameBase(path)
	}
	uf.Name = sanitizeFontName(name)
	return uf, nil
}

func (uf *UnicodeFont) buffer() *sfnt.Buffer {
	return uf.bufs.Get().(*sfnt.Buffer)
}

func filenameBase(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		path = path[:i]
	}
	return path
}

func sanitizeFontName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r > ' ' && r < 127 && !isPDFDelim(byte(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "UnicodeFont"
	}
	return b.String()
}

// glyph looks up r, caching the glyph index and advance.
func (uf *UnicodeFont) glyph(r rune) unicodeGlyph {
	uf.mu.RLock()
	g, ok := uf.glyphs[r]
	uf.mu.RUnlock()
	if ok {
		return g
	}

	buf := uf.buffer()
	defer uf.bufs.Put(buf)
	gid, err := uf.font.GlyphIndex(buf, r)
	if err != nil {
		gid = 0
	}
	g = unicodeGlyph{gid: gid, ok: err == nil && gid != 0}
	if adv, err := uf.font.GlyphAdvance(buf, gid, fixed.I(uf.upem), font.HintingNone); err == nil {
		g.width = float64(adv) / 64 / float64(uf.upem) * 1000
	}

	uf.mu.Lock()
	uf.glyphs[r] = g
	uf.mu.Unlock()
	return g
}

// HasGlyph reports whether the font maps r to a real glyph.
func (uf *UnicodeFont) HasGlyph(r rune) bool {
	return uf.glyph(r).ok
}

// Advance implements Measurer.
func (uf *UnicodeFont) Advance(s string, size float64) float64 {
	var w float64
	for _, r := range s {
		w += uf.glyph(r).width
	}
	return w / 1000 * size
}

// LineMetrics implements Measurer.
func (uf *UnicodeFont) LineMetrics() LineMetrics {
	spacing := uf.ascent + uf.descent + uf.lineGap
	if spacing <= 0 {
		spacing = 1.2
	}
	return LineMetrics{Ascent: uf.ascent, Descent: uf.descent, Spacing: spacing}
}

// extractCollectionFace copies face idx of a TrueType collection into a
// standalone sfnt file.
func extractCollectionFace(data []byte, idx int) ([]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("collection header truncated")
	}
	numFonts := int(binary.BigEndian.Uint32(data[8:12]))
	if idx >= numFonts || 12+4*numFonts > len(data) {
		return nil, fmt.Errorf("collection has no face %d", idx)
	}
	off := int(binary.BigEndian.Uint32(data[12+4*idx:]))
	if off+12 > len(data) {
		return nil, fmt.Errorf("face offset out of range")
	}
	numTables := int(binary.BigEndian.Uint16(data[off+4:]))
	dirEnd := off + 12 + 16*numTables
	if dirEnd > len(data) {
		return nil, fmt.Errorf("table directory truncated")
	}

	headerLen := 12 + 16*numTables
	out := make([]byte, headerLen, len(data)/numFonts+headerLen)
	copy(out, data[off:dirEnd])
	for i := 0; i < numTables; i++ {
		rec := off + 12 + 16*i
		tOff := int(binary.BigEndian.Uint32(data[rec+8:]))
		tLen := int(binary.BigEndian.Uint32(data[rec+12:]))
		if tOff < 0 || tLen < 0 || tOff+tLen > len(data) {
			return nil, fmt.Errorf("table %d out of range", i)
		}
		binary.BigEndian.PutUint32(out[12+16*i+8:], uint32(len(out)))
		out = append(out, data[tOff:tOff+tLen]...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
	}
	return out, nil
}

// glyphUse records a glyph shown with the font in one document.
type glyphUse struct {
	width float64
	text  []rune
}

// unicodeEncoder encodes text as Identity-H glyph ids and collects the
// glyphs one document uses, for the W array and the ToUnicode map.
type unicodeEncoder struct {
	font *UnicodeFont
	used map[sfnt.GlyphIndex]glyphUse
}

func newUnicodeEncoder(uf *UnicodeFont) *unicodeEncoder {
	return &unicodeEncoder{font: uf, used: map[sfnt.GlyphIndex]glyphUse{}}
}

// encode returns the two-byte glyph codes for s and the number of runes
// the font has no glyph for.
func (e *unicodeEncoder) encode(s string) ([]byte, int) {
	out := make([]byte, 0, 2*len(s))
	missing := 0
	for _, r := range s {
		g := e.font.glyph(r)
		if !g.ok {
			missing++
		}
		if _, seen := e.used[g.gid]; !seen && g.ok {
			e.used[g.gid] = glyphUse{width: g.width, text: []rune{r}}
		}
		out = append(out, byte(g.gid>>8), byte(g.gid))
	}
	return out, missing
}

func (e *unicodeEncoder) sortedGlyphs() []sfnt.GlyphIndex {
	gids := make([]sfnt.GlyphIndex, 0, len(e.used))
	for gid := range e.used {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return gids
}

// toUnicodeCMap writes a ToUnicode CMap for the used glyphs.
func (e *unicodeEncoder) toUnicodeCMap() []byte {
	var b strings.Builder
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")

	gids := e.sortedGlyphs()
	for start := 0; start < len(gids); start += 100 {
		end := start + 100
		if end > len(gids) {
			end = len(gids)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-start)
		for _, gid := range gids[start:end] {
			var units []byte
			for _, u := range utf16.Encode(e.used[gid].text) {
				units = append(units, byte(u>>8), byte(u))
			}
			fmt.Fprintf(&b, "<%04X> %s\n", uint16(gid), hexLiteral(units))
		}
		b.WriteString("endbfchar\n")
	}
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return []byte(b.String())
}
