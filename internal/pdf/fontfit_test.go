package pdf

import (
	"math/rand"
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedMeasurer gives every rune the same advance, in ems.
type fixedMeasurer struct {
	em      float64
	metrics LineMetrics
}

func (m fixedMeasurer) Advance(s string, size float64) float64 {
	return float64(len([]rune(s))) * m.em * size
}

func (m fixedMeasurer) LineMetrics() LineMetrics { return m.metrics }

func TestFitHeuristicShrinksToFirstFittingSize(t *testing.T) {
	f := NewFontFitter(0, 0)
	res := f.Fit("abcdefghij", Rect{0, 0, 50, 100}, 12, Strategy{Layout: LayoutLines, Measurer: heuristicMeasurer{}})

	// 10 runes at 0.55 em fit 50pt from 9pt down
	assert.True(t, res.Fits)
	assert.Equal(t, 9.0, res.Size)
	assert.Equal(t, 7, res.Steps)
	assert.Equal(t, []string{"abcdefghij"}, res.Lines)
}

func TestFitKeepsInitialSizeWhenItFits(t *testing.T) {
	f := NewFontFitter(6, 0.5)
	res := f.Fit("short", Rect{0, 0, 200, 20}, 12, Strategy{Layout: LayoutBox, Measurer: newCoreMeasurer("Helvetica")})
	assert.True(t, res.Fits)
	assert.Equal(t, 12.0, res.Size)
	assert.Equal(t, 1, res.Steps)
}

func TestFitClampsToFloor(t *testing.T) {
	f := NewFontFitter(6, 0.5)
	text := strings.Repeat("overflowing ", 50)
	res := f.Fit(text, Rect{0, 0, 40, 8}, 12, Strategy{Layout: LayoutBox, Measurer: newCoreMeasurer("Helvetica")})
	assert.False(t, res.Fits)
	assert.Equal(t, 6.0, res.Size)
	assert.Equal(t, 13, res.Steps)
}

func TestFitInitialBelowFloor(t *testing.T) {
	f := NewFontFitter(6, 0.5)
	res := f.Fit("x", Rect{0, 0, 100, 100}, 4, Strategy{Layout: LayoutLines, Measurer: heuristicMeasurer{}})
	assert.Equal(t, 6.0, res.Size)
	assert.True(t, res.Fits)
	assert.Equal(t, 1, res.Steps)
}

func TestFitLongTranslationOfTwelvePointBlock(t *testing.T) {
	f := NewFontFitter(DefaultMinFontSize, DefaultFontStep)
	text := strings.TrimSpace(strings.Repeat("Short ", 20))
	res := f.Fit(text, Rect{72, 100, 500, 118}, 12, Strategy{Layout: LayoutBox, Measurer: newCoreMeasurer("Helvetica")})

	assert.Less(t, res.Size, 12.0)
	assert.GreaterOrEqual(t, res.Size, 6.0)
	assert.True(t, res.Fits)
}

func TestFitStepsAreExactMultiples(t *testing.T) {
	f := NewFontFitter(6, 0.1)
	m := fixedMeasurer{em: 1, metrics: LineMetrics{Ascent: 0.8, Descent: 0.2, Spacing: 1.2}}
	// width 10 runes * size <= 73 means size <= 7.3
	res := f.Fit("0123456789", Rect{0, 0, 73, 50}, 12, Strategy{Layout: LayoutLines, Measurer: m})
	assert.True(t, res.Fits)
	assert.Equal(t, 7.3, res.Size)
}

func TestFitWordWrapFlattensBreaks(t *testing.T) {
	f := NewFontFitter(6, 0.5)
	m := fixedMeasurer{em: 0.5, metrics: LineMetrics{Ascent: 1, Descent: 0, Spacing: 1}}
	res := f.Fit(`one\ntwo`+"\nthree   four", Rect{0, 0, 60, 100}, 10, Strategy{Layout: LayoutWordWrap, Measurer: m})
	require.True(t, res.Fits)
	// 12 runes per line at 10pt
	assert.Equal(t, []string{"one two", "three four"}, res.Lines)
}

func TestFitProperties(t *testing.T) {
	cfg := &quick.Config{MaxCount: 100, Rand: rand.New(rand.NewSource(42))}
	strategies := []Strategy{
		{Layout: LayoutBox, Measurer: newCoreMeasurer("Helvetica")},
		{Layout: LayoutLines, Measurer: heuristicMeasurer{}},
		{Layout: LayoutWordWrap, Measurer: heuristicMeasurer{}},
	}
	words := []string{"a", "word", "translation", "layout", "ग्रंथ", "x", "preserving"}

	property := func(seed int64, wRaw, hRaw, initRaw uint16, which uint8) bool {
		r := rand.New(rand.NewSource(seed))
		n := 1 + r.Intn(30)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = words[r.Intn(len(words))]
		}
		text := strings.Join(parts, " ")
		rect := Rect{0, 0, 10 + float64(wRaw%500), 5 + float64(hRaw%200)}
		initial := 6 + float64(initRaw%60)/2
		s := strategies[int(which)%len(strategies)]

		f := NewFontFitter(6, 0.5)
		res := f.Fit(text, rect, initial, s)

		if res.Size < 6 || res.Size > initial {
			return false
		}
		if !res.Fits && res.Size != 6 {
			return false
		}
		// deterministic
		again := f.Fit(text, rect, initial, s)
		if again.Size != res.Size || again.Fits != res.Fits {
			return false
		}
		// a fitting size is really the first that fits
		if res.Fits && res.Size < initial {
			if _, ok := layoutText(text, rect, res.Size+0.5, s); ok {
				return false
			}
		}
		return true
	}
	assert.NoError(t, quick.Check(property, cfg))
}

func TestWrapWordsBreaksLongWords(t *testing.T) {
	m := fixedMeasurer{em: 1, metrics: LineMetrics{1, 0, 1}}

	lines, ok := wrapWords([]string{"abcdefgh"}, 3, 1, m, true)
	assert.True(t, ok)
	assert.Equal(t, []string{"abc", "def", "gh"}, lines)

	lines, ok = wrapWords([]string{"ab", "abcdefgh", "c"}, 3, 1, m, false)
	assert.False(t, ok)
	assert.Equal(t, []string{"ab", "abcdefgh", "c"}, lines)
}

func TestTruncateToWidth(t *testing.T) {
	m := fixedMeasurer{em: 1}

	got, cut := truncateToWidth("abc", 5, 1, m)
	assert.False(t, cut)
	assert.Equal(t, "abc", got)

	got, cut = truncateToWidth("abcdef", 5, 1, m)
	assert.True(t, cut)
	assert.Equal(t, "abcde", got)

	got, cut = truncateToWidth("abcdefghijkl", 5, 1, m)
	assert.True(t, cut)
	assert.Equal(t, "abc..", got)
}

func TestFlattenAndSplit(t *testing.T) {
	assert.Equal(t, "a b c", FlattenText("a\nb\n  c "))
	assert.Equal(t, []string{"a", "b", "c"}, splitLines("a\nb\nc"))
	assert.Equal(t, []string{`C:\new`, "b"}, splitLines("C:\\new\nb"), "a backslash-n in text is not a break")
	assert.Equal(t, `C:\new b`, FlattenText("C:\\new\nb"))
}

func TestLineMetricsStackHeight(t *testing.T) {
	m := LineMetrics{Ascent: 0.8, Descent: 0.2, Spacing: 1.2}
	assert.Equal(t, 0.0, m.stackHeight(0, 10))
	assert.InDelta(t, 10.0, m.stackHeight(1, 10), 1e-9)
	assert.InDelta(t, 34.0, m.stackHeight(3, 10), 1e-9)
}
