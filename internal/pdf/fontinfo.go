package pdf

import (
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

const (
	defaultAscent  = 0.8
	defaultDescent = -0.2
)

// glyphCode is one character code of a shown string.
type glyphCode struct {
	raw   string  // code bytes
	text  string  // decoded Unicode text
	width float64 // advance in thousandths of text space
	space bool    // single-byte code 32, subject to word spacing
}

// fontInfo is the part of a page font the interpreter needs: how to split a
// string into codes, their widths and their Unicode text.
type fontInfo struct {
	name      string
	composite bool
	enc       lpdf.TextEncoding
	first     int
	widths    []float64
	scale     float64
	cidWidths map[int]float64
	dw        float64
	ascent    float64
	descent   float64
	core      string
	decoded   map[string]string
}

// fallbackFontInfo is used when a Tf names a font the page does not define.
func fallbackFontInfo(name string) *fontInfo {
	return &fontInfo{
		name:    name,
		scale:   1,
		ascent:  defaultAscent,
		descent: defaultDescent,
		core:    StandardFontName(name),
		decoded: map[string]string{},
	}
}

// loadFontInfo reads a font resource. ledongthuc panics on malformed
// objects, so callers run it under recoverPanic.
func loadFontInfo(f lpdf.Font) *fontInfo {
	v := f.V
	name := stripSubsetPrefix(v.Key("BaseFont").Name())
	fi := fallbackFontInfo(name)
	fi.enc = f.Encoder()

	descriptor := v.Key("FontDescriptor")
	if v.Key("Subtype").Name() == "Type0" {
		fi.composite = true
		fi.dw = 1000
		desc := v.Key("DescendantFonts").Index(0)
		if desc.Key("DW").Kind() == lpdf.Integer || desc.Key("DW").Kind() == lpdf.Real {
			fi.dw = desc.Key("DW").Float64()
		}
		fi.cidWidths = parseCIDWidths(desc.Key("W"))
		descriptor = desc.Key("FontDescriptor")
		if name == "" {
			fi.name = stripSubsetPrefix(desc.Key("BaseFont").Name())
		}
	} else {
		fi.first = f.FirstChar()
		fi.widths = f.Widths()
		if v.Key("Subtype").Name() == "Type3" {
			if m := v.Key("FontMatrix"); m.Len() > 0 && m.Index(0).Float64() != 0 {
				fi.scale = m.Index(0).Float64() * 1000
			}
		}
	}
	fi.core = StandardFontName(fi.name)

	if a := descriptor.Key("Ascent").Float64() / 1000; a > 0 && a <= 1.5 {
		fi.ascent = a
	}
	d := descriptor.Key("Descent").Float64() / 1000
	if d > 0 {
		d = -d
	}
	if d < 0 && d >= -1 {
		fi.descent = d
	}
	return fi
}

// parseCIDWidths reads a /W array: "c [w1 w2 ...]" and "cfirst clast w" forms.
func parseCIDWidths(w lpdf.Value) map[int]float64 {
	out := map[int]float64{}
	n := w.Len()
	for i := 0; i < n; {
		start := int(w.Index(i).Int64())
		if i+1 >= n {
			break
		}
		next := w.Index(i + 1)
		if next.Kind() == lpdf.Array {
			for k := 0; k < next.Len(); k++ {
				out[start+k] = next.Index(k).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= n {
			break
		}
		end := int(next.Int64())
		width := w.Index(i + 2).Float64()
		for c := start; c <= end && c-start < 65536; c++ {
			out[c] = width
		}
		i += 3
	}
	return out
}

func stripSubsetPrefix(name string) string {
	if len(name) > 7 && name[6] == '+' {
		prefix := name[:6]
		if strings.ToUpper(prefix) == prefix && strings.IndexFunc(prefix, func(r rune) bool { return r < 'A' || r > 'Z' }) < 0 {
			return name[7:]
		}
	}
	return name
}

// codes splits a shown string into character codes.
func (fi *fontInfo) codes(s string) []glyphCode {
	step := 1
	if fi.composite {
		step = 2
	}
	out := make([]glyphCode, 0, len(s)/step+1)
	for i := 0; i < len(s); i += step {
		end := i + step
		if end > len(s) {
			end = len(s)
		}
		raw := s[i:end]
		out = append(out, glyphCode{
			raw:   raw,
			text:  fi.decode(raw),
			width: fi.width(raw),
			space: len(raw) == 1 && raw[0] == ' ',
		})
	}
	return out
}

func (fi *fontInfo) decode(raw string) string {
	if t, ok := fi.decoded[raw]; ok {
		return t
	}
	t := raw
	if fi.enc != nil {
		t = safeDecode(fi.enc, raw)
	}
	fi.decoded[raw] = t
	return t
}

func safeDecode(enc lpdf.TextEncoding, raw string) (text string) {
	defer func() {
		if recover() != nil {
			text = raw
		}
	}()
	return enc.Decode(raw)
}

func (fi *fontInfo) width(raw string) float64 {
	if fi.composite {
		cid := 0
		for i := 0; i < len(raw); i++ {
			cid = cid<<8 | int(raw[i])
		}
		if w, ok := fi.cidWidths[cid]; ok {
			return w
		}
		return fi.dw
	}
	code := int(raw[0])
	if idx := code - fi.first; idx >= 0 && idx < len(fi.widths) && fi.widths[idx] != 0 {
		return fi.widths[idx] * fi.scale
	}
	text := fi.decode(raw)
	for _, r := range text {
		return coreGlyphWidth(fi.core, r)
	}
	return coreGlyphWidth(fi.core, ' ')
}

// recoverPanic turns a panic raised by the PDF reader into an error.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%v", r)
	}
}
