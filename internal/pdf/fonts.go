package pdf

import (
	"os"
	"strings"
	"sync"
	"unicode"

	pdffont "github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/text/unicode/norm"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// Builtin font families.
const (
	FamilyHelvetica = "helv"
	FamilyTimes     = "tiro"
	FamilyCourier   = "cour"
	FamilySymbol    = "symb"
	FamilyDingbats  = "zadb"
)

type fontPattern struct {
	pattern string
	family  string
}

// fontPatterns is checked in order; the first substring match wins.
var fontPatterns = []fontPattern{
	{"helvetica", FamilyHelvetica},
	{"arial", FamilyHelvetica},
	{"sans", FamilyHelvetica},
	{"gothic", FamilyHelvetica},
	{"verdana", FamilyHelvetica},
	{"tahoma", FamilyHelvetica},
	{"calibri", FamilyHelvetica},
	{"segoe", FamilyHelvetica},

	{"times", FamilyTimes},
	{"roman", FamilyTimes},
	{"serif", FamilyTimes},
	{"georgia", FamilyTimes},
	{"cambria", FamilyTimes},
	{"garamond", FamilyTimes},
	{"palatino", FamilyTimes},

	{"courier", FamilyCourier},
	{"mono", FamilyCourier},
	{"consolas", FamilyCourier},
	{"monaco", FamilyCourier},
	{"menlo", FamilyCourier},
	{"lucida console", FamilyCourier},

	{"symbol", FamilySymbol},
	{"wingding", FamilyDingbats},
	{"dingbat", FamilyDingbats},
}

var builtinNames = map[string]bool{
	FamilyHelvetica: true, FamilyTimes: true, FamilyCourier: true, FamilySymbol: true, FamilyDingbats: true,
}

var standardFonts = map[string]string{
	"helv":   "Helvetica",
	"helvbo": "Helvetica-Bold",
	"helvit": "Helvetica-Oblique",
	"helvbi": "Helvetica-BoldOblique",
	"tiro":   "Times-Roman",
	"tirobo": "Times-Bold",
	"tiroit": "Times-Italic",
	"tirobi": "Times-BoldItalic",
	"cour":   "Courier",
	"courbo": "Courier-Bold",
	"courit": "Courier-Oblique",
	"courbi": "Courier-BoldOblique",
	"symb":   "Symbol",
	"zadb":   "ZapfDingbats",
}

// FontMapper maps source font names to builtin font identifiers such as
// "helv" or "tirobi".
type FontMapper struct {
	Fallback string
}

// NewFontMapper creates a mapper; an empty fallback means Helvetica.
func NewFontMapper(fallback string) *FontMapper {
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if !builtinNames[fallback] {
		fallback = FamilyHelvetica
	}
	return &FontMapper{Fallback: fallback}
}

// Map returns the builtin identifier for a font name: a family plus an
// optional style suffix (bo, it, bi). Symbol and dingbat fonts have no styles.
func (m *FontMapper) Map(fontName string) string {
	if fontName == "" {
		return m.Fallback
	}
	lower := strings.ToLower(stripSubsetPrefix(fontName))
	if builtinNames[lower] {
		return lower
	}
	if _, ok := standardFonts[lower]; ok {
		return lower
	}

	family := m.Fallback
	switch {
	case IsMonospace(lower):
		// "DejaVuSansMono" is fixed-pitch despite the "sans".
		family = FamilyCourier
	default:
		for _, p := range fontPatterns {
			if strings.Contains(lower, p.pattern) {
				family = p.family
				break
			}
		}
		if family == m.Fallback && IsSerif(lower) {
			family = FamilyTimes
		}
	}
	if family == FamilySymbol || family == FamilyDingbats {
		return family
	}
	return family + styleSuffix(lower)
}

func styleSuffix(lower string) string {
	bold := strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
	italic := strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
	switch {
	case bold && italic:
		return "bi"
	case bold:
		return "bo"
	case italic:
		return "it"
	}
	return ""
}

// IsMonospace reports whether the font name looks fixed-pitch.
func IsMonospace(fontName string) bool {
	lower := strings.ToLower(fontName)
	for _, p := range []string{"courier", "mono", "consolas", "monaco", "menlo"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsSerif reports whether the font name looks like a serif face. Explicit
// sans names win over serif patterns.
func IsSerif(fontName string) bool {
	lower := strings.ToLower(fontName)
	for _, p := range []string{"sans", "helvetica", "arial"} {
		if strings.Contains(lower, p) {
			return false
		}
	}
	for _, p := range []string{"times", "roman", "serif", "georgia", "garamond", "palatino"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var defaultMapper = NewFontMapper(FamilyHelvetica)

// StandardFontName returns the standard-14 base font used to stand in for
// fontName. Builtin identifiers ("helvbo") are accepted too.
func StandardFontName(fontName string) string {
	if std, ok := standardFonts[defaultMapper.Map(fontName)]; ok {
		return std
	}
	return "Helvetica"
}

// BuiltinFontName resolves a builtin identifier to its standard-14 base font.
func BuiltinFontName(id string) (string, bool) {
	std, ok := standardFonts[strings.ToLower(id)]
	return std, ok
}

var coreWidthCache sync.Map // "font|rune" -> float64

// coreGlyphWidth returns the advance of r in a standard-14 font in
// thousandths of an em. Non-ASCII letters use their NFD base letter; runes
// the font cannot show measure like 'n'.
func coreGlyphWidth(stdFont string, r rune) float64 {
	key := stdFont + "|" + string(r)
	if w, ok := coreWidthCache.Load(key); ok {
		return w.(float64)
	}
	w := coreASCIIWidth(stdFont, coreBaseRune(r))
	coreWidthCache.Store(key, w)
	return w
}

func coreBaseRune(r rune) rune {
	if r < 128 {
		return r
	}
	if unicode.IsSpace(r) {
		return ' '
	}
	for _, b := range norm.NFD.String(string(r)) {
		if b < 128 {
			return b
		}
		break
	}
	return 'n'
}

func coreASCIIWidth(stdFont string, r rune) float64 {
	if r < 32 {
		r = ' '
	}
	key := stdFont + "|" + string(r)
	if w, ok := coreWidthCache.Load(key); ok {
		return w.(float64)
	}
	w := pdffont.TextWidth(string(r), stdFont, 1000)
	coreWidthCache.Store(key, w)
	return w
}

// DefaultUnicodeFontPaths lists where a Unicode font is looked for, in order.
var DefaultUnicodeFontPaths = []string{
	"C:/Windows/Fonts/Nirmala.ttc",
	"C:/Windows/Fonts/arial.ttf",
	"C:/Windows/Fonts/seguiemj.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
	"/usr/share/fonts/noto/NotoSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
}

// LocateUnicodeFont returns the configured font when it exists, otherwise the
// first existing entry of the search list. It returns "" when none exists.
func LocateUnicodeFont(configured string, search []string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
		logger.Warn("configured unicode font not found", logger.String("path", configured))
	}
	for _, p := range search {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
