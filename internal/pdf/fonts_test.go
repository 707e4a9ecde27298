package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFontMapperMap(t *testing.T) {
	m := NewFontMapper("")
	tests := []struct {
		font string
		want string
	}{
		{"", "helv"},
		{"Helvetica", "helv"},
		{"ABCDEF+Arial-BoldMT", "helvbo"},
		{"Arial-BoldItalicMT", "helvbi"},
		{"TimesNewRomanPS-ItalicMT", "tiroit"},
		{"Georgia-BoldItalic", "tirobi"},
		{"CourierNewPSMT", "cour"},
		{"Consolas-Bold", "courbo"},
		{"Symbol", "symb"},
		{"Wingdings-Regular", "zadb"},
		{"tirobo", "tirobo"},
		{"UnknownFace-Oblique", "helvit"},
		{"DejaVuSansMono-Bold", "courbo"},
	}
	for _, tt := range tests {
		t.Run(tt.font, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Map(tt.font))
		})
	}
}

func TestFontMapperFallback(t *testing.T) {
	assert.Equal(t, "tiro", NewFontMapper("TIRO").Map("MysteryFont"))
	assert.Equal(t, "helv", NewFontMapper("comic").Fallback)
}

func TestStandardFontNames(t *testing.T) {
	assert.Equal(t, "Helvetica-Bold", StandardFontName("Arial-BoldMT"))
	assert.Equal(t, "Times-Roman", StandardFontName("Times New Roman"))
	assert.Equal(t, "Courier-BoldOblique", StandardFontName("courbi"))
	assert.Equal(t, "Helvetica", StandardFontName(""))

	std, ok := BuiltinFontName("ZADB")
	assert.True(t, ok)
	assert.Equal(t, "ZapfDingbats", std)
	_, ok = BuiltinFontName("arial")
	assert.False(t, ok)
}

func TestFontClassification(t *testing.T) {
	assert.True(t, IsMonospace("Courier New"))
	assert.True(t, IsMonospace("DejaVuSansMono"))
	assert.False(t, IsMonospace("Arial"))

	assert.True(t, IsSerif("Times New Roman"))
	assert.True(t, IsSerif("Garamond"))
	assert.False(t, IsSerif("Microsoft Sans Serif"))
	assert.False(t, IsSerif("Helvetica"))
}

func TestCoreGlyphWidth(t *testing.T) {
	assert.Equal(t, 278.0, coreGlyphWidth("Helvetica", ' '))
	assert.Equal(t, 600.0, coreGlyphWidth("Courier", 'W'))
	assert.Equal(t, coreGlyphWidth("Helvetica", 'e'), coreGlyphWidth("Helvetica", 'é'), "accented letters measure like their base")
	assert.Equal(t, coreGlyphWidth("Helvetica", 'n'), coreGlyphWidth("Helvetica", 'क'))
}

func TestLocateUnicodeFont(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "font.ttf")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))
	missing := filepath.Join(dir, "missing.ttf")

	assert.Equal(t, present, LocateUnicodeFont(present, nil))
	assert.Equal(t, present, LocateUnicodeFont(missing, []string{missing, present}))
	assert.Equal(t, "", LocateUnicodeFont("", []string{missing}))
}
