package pdf

import (
	"strings"
	"unicode/utf8"
)

// Default font-fit parameters.
const (
	DefaultMinFontSize = 6.0
	DefaultFontStep    = 0.5

	fitEpsilon = 0.01
)

// LineMetrics describes vertical metrics as fractions of the font size.
// Descent is positive. Spacing is the baseline-to-baseline distance.
type LineMetrics struct {
	Ascent  float64
	Descent float64
	Spacing float64
}

// stackHeight is the height n lines occupy at size: the first line's
// ascent plus descent, then one spacing per further line.
func (m LineMetrics) stackHeight(n int, size float64) float64 {
	if n <= 0 {
		return 0
	}
	return size*(m.Ascent+m.Descent) + float64(n-1)*size*m.Spacing
}

// Measurer measures text in one font.
type Measurer interface {
	// Advance returns the width of s at size, in points.
	Advance(s string, size float64) float64
	LineMetrics() LineMetrics
}

// coreMeasurer measures with standard-14 font metrics.
type coreMeasurer struct {
	font string
}

func newCoreMeasurer(stdFont string) coreMeasurer {
	return coreMeasurer{font: stdFont}
}

func (m coreMeasurer) Advance(s string, size float64) float64 {
	var w float64
	for _, r := range s {
		w += coreGlyphWidth(m.font, r)
	}
	return w / 1000 * size
}

func (m coreMeasurer) LineMetrics() LineMetrics {
	return LineMetrics{Ascent: 0.8, Descent: 0.2, Spacing: 1.2}
}

// heuristicMeasurer estimates every rune at 0.55 em and lines at 1.3 em.
type heuristicMeasurer struct{}

func (heuristicMeasurer) Advance(s string, size float64) float64 {
	return float64(utf8.RuneCountInString(s)) * size * 0.55
}

func (heuristicMeasurer) LineMetrics() LineMetrics {
	return LineMetrics{Ascent: 1.0, Descent: 0.3, Spacing: 1.3}
}

// LayoutKind selects how text is broken into lines.
type LayoutKind int

const (
	// LayoutBox wraps each paragraph at word boundaries inside the
	// rectangle, breaking words that are wider than a line.
	LayoutBox LayoutKind = iota
	// LayoutLines keeps the text's own line breaks.
	LayoutLines
	// LayoutWordWrap flattens line breaks and wraps words greedily.
	LayoutWordWrap
)

func (k LayoutKind) String() string {
	switch k {
	case LayoutLines:
		return "lines"
	case LayoutWordWrap:
		return "word_wrap"
	}
	return "box"
}

// Strategy is a layout paired with the font it measures with.
type Strategy struct {
	Layout   LayoutKind
	Measurer Measurer
}

// FitResult is the outcome of a font-size search.
type FitResult struct {
	Size  float64
	Fits  bool
	Steps int
	Lines []string
}

// FontFitter searches for the largest font size at which text fits a
// rectangle.
type FontFitter struct {
	MinSize float64
	Step    float64
}

// NewFontFitter returns a fitter; non-positive values take the defaults.
func NewFontFitter(minSize, step float64) FontFitter {
	if minSize <= 0 {
		minSize = DefaultMinFontSize
	}
	if step <= 0 {
		step = DefaultFontStep
	}
	return FontFitter{MinSize: minSize, Step: step}
}

// Fit tries initial, initial-step, initial-2*step, ... down to MinSize and
// returns the first size whose layout fits. When nothing fits the result is
// MinSize with Fits=false. An initial size below MinSize is raised to it.
// The floor itself is always tried last, even when it is not on the grid.
func (f FontFitter) Fit(text string, rect Rect, initial float64, s Strategy) FitResult {
	floor, step := f.MinSize, f.Step
	if floor <= 0 {
		floor = DefaultMinFontSize
	}
	if step <= 0 {
		step = DefaultFontStep
	}

	res := FitResult{}
	if initial > floor {
		for k := 0; ; k++ {
			size := initial - float64(k)*step
			if size <= floor+1e-9 {
				break
			}
			res.Steps++
			if lines, ok := layoutText(text, rect, size, s); ok {
				res.Size, res.Fits, res.Lines = round3(size), true, lines
				return res
			}
		}
	}

	res.Steps++
	lines, ok := layoutText(text, rect, floor, s)
	res.Size, res.Fits, res.Lines = floor, ok, lines
	return res
}

// layoutText breaks text into lines at size and reports whether the lines
// fit the rectangle in both directions.
func layoutText(text string, rect Rect, size float64, s Strategy) ([]string, bool) {
	m := s.Measurer
	if m == nil {
		m = heuristicMeasurer{}
	}
	width := rect.Width() + fitEpsilon

	var lines []string
	widthOK := true
	switch s.Layout {
	case LayoutLines:
		lines = splitLines(text)
		for _, l := range lines {
			if m.Advance(l, size) > width {
				widthOK = false
				break
			}
		}
	case LayoutWordWrap:
		lines, widthOK = wrapWords(strings.Fields(FlattenText(text)), width, size, m, false)
	default:
		for _, para := range splitLines(text) {
			wrapped, ok := wrapWords(strings.Fields(para), width, size, m, true)
			if len(wrapped) == 0 {
				wrapped = []string{""}
			}
			lines = append(lines, wrapped...)
			widthOK = widthOK && ok
		}
	}

	height := m.LineMetrics().stackHeight(len(lines), size)
	return lines, widthOK && height <= rect.Height()+fitEpsilon
}

// splitLines splits on newlines. Escapes were undone by the exchange
// parsers, so a backslash followed by n here is text.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// FlattenText turns newlines into spaces and collapses runs of whitespace.
func FlattenText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// wrapWords greedily fills lines with words. With breakLong, a word wider
// than a line is split across lines; otherwise it is placed alone and the
// result reports that the width does not fit.
func wrapWords(words []string, width, size float64, m Measurer, breakLong bool) ([]string, bool) {
	var lines []string
	ok := true
	cur := ""
	for _, w := range words {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if m.Advance(candidate, size) <= width {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
		if m.Advance(w, size) <= width {
			cur = w
			continue
		}
		if !breakLong {
			ok = false
			lines = append(lines, w)
			continue
		}
		pieces, fits := breakWord(w, width, size, m)
		ok = ok && fits
		lines = append(lines, pieces[:len(pieces)-1]...)
		cur = pieces[len(pieces)-1]
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines, ok
}

// breakWord splits a word into pieces no wider than width. A single rune
// wider than width still forms a piece and makes the result not fit.
func breakWord(w string, width, size float64, m Measurer) ([]string, bool) {
	var pieces []string
	ok := true
	cur := ""
	for _, r := range w {
		candidate := cur + string(r)
		if cur == "" || m.Advance(candidate, size) <= width {
			cur = candidate
			if m.Advance(cur, size) > width {
				ok = false
			}
			continue
		}
		pieces = append(pieces, cur)
		cur = string(r)
		if m.Advance(cur, size) > width {
			ok = false
		}
	}
	return append(pieces, cur), ok
}

// truncateToWidth shortens line until it fits width, marking the cut with
// "..". Lines that only lose their last few runes are cut without the mark.
func truncateToWidth(line string, width, size float64, m Measurer) (string, bool) {
	if m.Advance(line, size) <= width+fitEpsilon {
		return line, false
	}
	runes := []rune(line)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.Advance(string(runes[:mid]), size) <= width+fitEpsilon {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo < len(runes)-3 {
		return string(runes[:max(0, lo-2)]) + "..", true
	}
	return string(runes[:lo]), true
}
