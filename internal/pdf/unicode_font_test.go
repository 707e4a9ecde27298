package pdf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

func loadGoRegular(t *testing.T) *UnicodeFont {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Go-Regular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0644))
	uf, err := LoadUnicodeFont(path)
	require.NoError(t, err)
	return uf
}

func TestLoadUnicodeFont(t *testing.T) {
	uf := loadGoRegular(t)

	assert.NotEmpty(t, uf.Name)
	assert.NotContains(t, uf.Name, " ")
	assert.False(t, uf.cff)
	assert.True(t, uf.HasGlyph('ü'))
	assert.True(t, uf.HasGlyph('ß'))
	assert.False(t, uf.HasGlyph('क'))

	m := uf.LineMetrics()
	assert.Greater(t, m.Ascent, 0.0)
	assert.Greater(t, m.Descent, 0.0)
	assert.GreaterOrEqual(t, m.Spacing, m.Ascent+m.Descent)

	w := uf.Advance("ab", 10)
	assert.Greater(t, w, 0.0)
	assert.InDelta(t, 2*w, uf.Advance("abab", 10), 1e-9)
	assert.InDelta(t, 2*w, uf.Advance("ab", 20), 1e-9)
}

func TestLoadUnicodeFontErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadUnicodeFont(filepath.Join(dir, "missing.ttf"))
	require.Error(t, err)
	assert.Equal(t, ErrFontUnavailable, pdfErrorCode(t, err))

	bad := filepath.Join(dir, "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0644))
	_, err = LoadUnicodeFont(bad)
	require.Error(t, err)
	assert.Equal(t, ErrFontUnavailable, pdfErrorCode(t, err))
}

func TestExtractCollectionFace(t *testing.T) {
	// wrap the font in a one-face collection; table offsets move by the
	// 16-byte collection header
	font := append([]byte(nil), goregular.TTF...)
	numTables := int(binary.BigEndian.Uint16(font[4:]))
	for i := 0; i < numTables; i++ {
		rec := 12 + 16*i
		off := binary.BigEndian.Uint32(font[rec+8:])
		binary.BigEndian.PutUint32(font[rec+8:], off+16)
	}
	ttc := []byte("ttcf")
	ttc = binary.BigEndian.AppendUint32(ttc, 0x00010000)
	ttc = binary.BigEndian.AppendUint32(ttc, 1)
	ttc = binary.BigEndian.AppendUint32(ttc, 16)
	ttc = append(ttc, font...)

	face, err := extractCollectionFace(ttc, 0)
	require.NoError(t, err)
	f, err := sfnt.Parse(face)
	require.NoError(t, err)
	assert.Greater(t, f.NumGlyphs(), 0)

	_, err = extractCollectionFace(ttc, 1)
	assert.Error(t, err)
	_, err = extractCollectionFace([]byte("ttcf"), 0)
	assert.Error(t, err)
}

func TestUnicodeEncoder(t *testing.T) {
	uf := loadGoRegular(t)
	enc := newUnicodeEncoder(uf)

	code, missing := enc.encode("aक")
	assert.Len(t, code, 4)
	assert.Equal(t, 1, missing)
	assert.Len(t, enc.used, 1, "missing glyphs are not recorded")

	cmap := string(enc.toUnicodeCMap())
	assert.Contains(t, cmap, "begincodespacerange\n<0000> <FFFF>")
	assert.Contains(t, cmap, "1 beginbfchar")
	assert.Contains(t, cmap, "<0061>")
	assert.True(t, strings.HasSuffix(cmap, "end\nend\n"))
}

func TestWidthArrayGroupsConsecutiveGlyphs(t *testing.T) {
	df := &documentFonts{unicode: &unicodeEncoder{used: map[sfnt.GlyphIndex]glyphUse{
		5: {width: 500},
		6: {width: 610.4},
		9: {width: 250},
	}}}
	w := df.widthArray()
	assert.Equal(t, types.Array{
		types.Integer(5), types.Array{types.Integer(500), types.Integer(610)},
		types.Integer(9), types.Array{types.Integer(250)},
	}, w)
}

func TestSanitizeFontName(t *testing.T) {
	assert.Equal(t, "NotoSans-Regular", sanitizeFontName("Noto Sans-Regular"))
	assert.Equal(t, "UnicodeFont", sanitizeFontName("  ()"))
	assert.Equal(t, "Nirmala", filenameBase(`C:\Windows\Fonts\Nirmala.ttc`))
}
