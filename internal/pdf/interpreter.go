package pdf

import "math"

// matrix is a PDF transformation [a b c d e f]; points are row vectors.
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m×n: apply m first, then n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}

func matrixFrom(v []float64) matrix {
	if len(v) < 6 {
		return identity
	}
	return matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
}

type textState struct {
	font      *fontInfo
	fontSize  float64
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	rise      float64
}

type graphicsState struct {
	ctm  matrix
	fill RGB
	text textState
}

// glyph is one shown character code in device space (PDF user space of the
// page, bottom-left origin).
type glyph struct {
	code     glyphCode
	x, y     float64 // origin
	endX     float64
	endY     float64
	box      Rect // Y grows upwards here
	advance  float64
	size     float64 // effective size after CTM and Tm scaling
	fontSize float64 // Tf size
	hscale   float64
	dirX     float64
	dirY     float64
	font     string
	color    RGB
	op       int // index of the show operator
	elem     int // index of the string inside a TJ array
}

// interpreter walks text operators of a content stream and reports every
// glyph through onGlyph.
type interpreter struct {
	fonts   func(resource string) *fontInfo
	onGlyph func(glyph)

	gs    graphicsState
	stack []graphicsState
	tm    matrix
	tlm   matrix
}

func newInterpreter(fonts func(string) *fontInfo, onGlyph func(glyph)) *interpreter {
	return &interpreter{
		fonts:   fonts,
		onGlyph: onGlyph,
		gs: graphicsState{
			ctm:  identity,
			text: textState{hscale: 1},
		},
		tm:  identity,
		tlm: identity,
	}
}

func (in *interpreter) run(ops []contentOp) {
	for i, op := range ops {
		in.step(i, op)
	}
}

func (in *interpreter) step(idx int, op contentOp) {
	ts := &in.gs.text
	switch op.Op {
	case "q":
		in.stack = append(in.stack, in.gs)
	case "Q":
		if n := len(in.stack); n > 0 {
			in.gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		in.gs.ctm = matrixFrom(op.nums()).mul(in.gs.ctm)
	case "BT":
		in.tm, in.tlm = identity, identity
	case "ET":
	case "Tf":
		if len(op.Args) >= 2 {
			ts.font = in.fonts(op.Args[0].str)
			ts.fontSize = op.num(1)
		}
	case "Tc":
		ts.charSpace = op.num(0)
	case "Tw":
		ts.wordSpace = op.num(0)
	case "Tz":
		ts.hscale = op.num(0) / 100
	case "TL":
		ts.leading = op.num(0)
	case "Ts":
		ts.rise = op.num(0)
	case "Td":
		in.moveLine(op.num(0), op.num(1))
	case "TD":
		ts.leading = -op.num(1)
		in.moveLine(op.num(0), op.num(1))
	case "Tm":
		in.tm = matrixFrom(op.nums())
		in.tlm = in.tm
	case "T*":
		in.moveLine(0, -ts.leading)
	case "Tj":
		if len(op.Args) > 0 {
			in.show(idx, 0, op.Args[0].str)
		}
	case "'":
		in.moveLine(0, -ts.leading)
		if len(op.Args) > 0 {
			in.show(idx, 0, op.Args[0].str)
		}
	case "\"":
		if len(op.Args) >= 3 {
			ts.wordSpace = op.num(0)
			ts.charSpace = op.num(1)
			in.moveLine(0, -ts.leading)
			in.show(idx, 0, op.Args[2].str)
		}
	case "TJ":
		if len(op.Args) == 0 {
			return
		}
		for e, item := range op.Args[0].arr {
			switch item.kind {
			case kindString:
				in.show(idx, e, item.str)
			case kindNumber:
				tx := -item.num / 1000 * ts.fontSize * ts.hscale
				in.tm = matrix{1, 0, 0, 1, tx, 0}.mul(in.tm)
			}
		}
	case "g":
		v := op.num(0)
		in.gs.fill = RGB{v, v, v}
	case "rg":
		in.gs.fill = RGB{op.num(0), op.num(1), op.num(2)}
	case "k":
		in.gs.fill = cmykToRGB(op.num(0), op.num(1), op.num(2), op.num(3))
	case "cs":
		in.gs.fill = Black
	case "sc", "scn":
		in.gs.fill = colorFromComponents(op.nums())
	}
}

func (in *interpreter) moveLine(tx, ty float64) {
	in.tlm = matrix{1, 0, 0, 1, tx, ty}.mul(in.tlm)
	in.tm = in.tlm
}

func (in *interpreter) show(opIdx, elem int, s string) {
	ts := &in.gs.text
	if ts.font == nil {
		ts.font = fallbackFontInfo("Helvetica")
	}
	fi := ts.font
	for _, c := range fi.codes(s) {
		w0 := c.width / 1000
		tx := w0*ts.fontSize + ts.charSpace
		if c.space {
			tx += ts.wordSpace
		}
		tx *= ts.hscale

		trm := in.tm.mul(in.gs.ctm)
		x, y := trm.apply(0, ts.rise)
		ex, ey := trm.apply(tx, ts.rise)

		gw := w0 * ts.fontSize * ts.hscale
		lo := fi.descent*ts.fontSize + ts.rise
		hi := fi.ascent*ts.fontSize + ts.rise
		box := boundsOf(trm, 0, lo, gw, hi)

		dx, dy := trm[0], trm[1]
		norm := math.Hypot(dx, dy)
		if norm > 0 {
			dx, dy = dx/norm, dy/norm
		} else {
			dx, dy = 1, 0
		}

		in.onGlyph(glyph{
			code:     c,
			x:        x,
			y:        y,
			endX:     ex,
			endY:     ey,
			box:      box,
			advance:  tx,
			size:     math.Abs(ts.fontSize) * math.Hypot(trm[2], trm[3]),
			fontSize: ts.fontSize,
			hscale:   ts.hscale,
			dirX:     dx,
			dirY:     dy,
			font:     fi.name,
			color:    in.gs.fill,
			op:       opIdx,
			elem:     elem,
		})
		in.tm = matrix{1, 0, 0, 1, tx, 0}.mul(in.tm)
	}
}

// boundsOf transforms the rectangle [x0,x1]×[y0,y1] and returns the bounding
// box of its corners.
func boundsOf(m matrix, x0, y0, x1, y1 float64) Rect {
	r := Rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range [4][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		x, y := m.apply(p[0], p[1])
		r.X0, r.Y0 = math.Min(r.X0, x), math.Min(r.Y0, y)
		r.X1, r.Y1 = math.Max(r.X1, x), math.Max(r.Y1, y)
	}
	return r
}

func cmykToRGB(c, m, y, k float64) RGB {
	return RGB{(1 - c) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)}
}

// colorFromComponents interprets sc/scn operands by their count. Pattern
// names carry no numeric operands and map to black.
func colorFromComponents(v []float64) RGB {
	switch len(v) {
	case 1:
		return RGB{v[0], v[0], v[0]}
	case 3:
		return RGB{v[0], v[1], v[2]}
	case 4:
		return cmykToRGB(v[0], v[1], v[2], v[3])
	}
	return Black
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string {
	return FormatColor(int(math.Round(c.R*255)), int(math.Round(c.G*255)), int(math.Round(c.B*255)))
}
