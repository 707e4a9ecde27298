package pdf

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindName
	kindArray
	kindDict
)

// csValue is an operand of a content stream operator.
type csValue struct {
	kind valueKind
	num  float64
	str  string // decoded bytes of strings, names without the slash
	arr  []csValue
}

// contentOp is one operator with its operands. Start and End delimit the
// operator and its operands in the source bytes so untouched operators can
// be copied through verbatim.
type contentOp struct {
	Op    string
	Args  []csValue
	Start int
	End   int
}

func (op contentOp) num(i int) float64 {
	if i < 0 || i >= len(op.Args) || op.Args[i].kind != kindNumber {
		return 0
	}
	return op.Args[i].num
}

func (op contentOp) nums() []float64 {
	out := make([]float64, 0, len(op.Args))
	for _, a := range op.Args {
		if a.kind == kindNumber {
			out = append(out, a.num)
		}
	}
	return out
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

type csLexer struct {
	data []byte
	pos  int
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokValue
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
	tokKeyword
)

type csToken struct {
	kind  tokKind
	val   csValue
	word  string
	start int
}

func (l *csLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isPDFSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *csLexer) next() csToken {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return csToken{kind: tokEOF, start: l.pos}
	}
	start := l.pos
	c := l.data[l.pos]
	switch {
	case c == '(':
		return csToken{kind: tokValue, val: csValue{kind: kindString, str: l.literalString()}, start: start}
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return csToken{kind: tokDictOpen, start: start}
		}
		return csToken{kind: tokValue, val: csValue{kind: kindString, str: l.hexString()}, start: start}
	case c == '>':
		l.pos++
		if l.pos < len(l.data) && l.data[l.pos] == '>' {
			l.pos++
			return csToken{kind: tokDictClose, start: start}
		}
		return l.next()
	case c == '[':
		l.pos++
		return csToken{kind: tokArrayOpen, start: start}
	case c == ']':
		l.pos++
		return csToken{kind: tokArrayClose, start: start}
	case c == '{' || c == '}' || c == ')':
		l.pos++
		return l.next()
	case c == '/':
		l.pos++
		return csToken{kind: tokValue, val: csValue{kind: kindName, str: l.name()}, start: start}
	}

	word := l.regular()
	if word == "" {
		l.pos++
		return l.next()
	}
	if f, ok := parseNumber(word); ok {
		return csToken{kind: tokValue, val: csValue{kind: kindNumber, num: f}, start: start}
	}
	switch word {
	case "true", "false":
		return csToken{kind: tokValue, val: csValue{kind: kindBool, str: word}, start: start}
	case "null":
		return csToken{kind: tokValue, val: csValue{kind: kindNull}, start: start}
	}
	return csToken{kind: tokKeyword, word: word, start: start}
}

func parseNumber(word string) (float64, bool) {
	c := word[0]
	if !(c >= '0' && c <= '9') && c != '-' && c != '+' && c != '.' {
		return 0, false
	}
	f, err := strconv.ParseFloat(word, 64)
	if err != nil {
		// malformed numbers such as "--1" or "1.2.3" are read as zero
		return 0, true
	}
	return f, true
}

func (l *csLexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *csLexer) name() string {
	raw := l.regular()
	if !strings.Contains(raw, "#") {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			if v, err := strconv.ParseUint(raw[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func (l *csLexer) literalString() string {
	l.pos++ // (
	var b bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return b.String()
			}
			b.WriteByte(c)
		case '\\':
			if l.pos >= len(l.data) {
				return b.String()
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; k++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
				}
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (l *csLexer) hexString() string {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		if isPDFSpace(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return ""
	}
	return string(out)
}

// skipInlineImage moves past the image data that follows an ID operator.
// Data ends at an EI keyword surrounded by whitespace.
func (l *csLexer) skipInlineImage() {
	if l.pos < len(l.data) && isPDFSpace(l.data[l.pos]) {
		l.pos++
	}
	for i := l.pos; i+1 < len(l.data); i++ {
		if l.data[i] == 'E' && l.data[i+1] == 'I' &&
			i > 0 && isPDFSpace(l.data[i-1]) &&
			(i+2 == len(l.data) || isPDFSpace(l.data[i+2]) || isPDFDelim(l.data[i+2])) {
			l.pos = i + 2
			return
		}
	}
	l.pos = len(l.data)
}

// parseContent splits a decoded content stream into operators. It is lenient:
// unbalanced brackets and stray tokens are dropped rather than reported.
func parseContent(data []byte) []contentOp {
	l := &csLexer{data: data}
	var ops []contentOp
	var operands []csValue
	type frame struct {
		kind  valueKind
		items []csValue
	}
	var nest []frame
	opStart := -1

	push := func(v csValue) {
		if len(nest) > 0 {
			nest[len(nest)-1].items = append(nest[len(nest)-1].items, v)
			return
		}
		operands = append(operands, v)
	}

	for {
		tok := l.next()
		if tok.kind == tokEOF {
			break
		}
		if opStart < 0 {
			opStart = tok.start
		}
		switch tok.kind {
		case tokValue:
			push(tok.val)
		case tokArrayOpen:
			nest = append(nest, frame{kind: kindArray})
		case tokDictOpen:
			nest = append(nest, frame{kind: kindDict})
		case tokArrayClose, tokDictClose:
			if len(nest) == 0 {
				continue
			}
			f := nest[len(nest)-1]
			nest = nest[:len(nest)-1]
			push(csValue{kind: f.kind, arr: f.items})
		case tokKeyword:
			if len(nest) > 0 {
				push(csValue{kind: kindNull})
				continue
			}
			if tok.word == "BI" {
				for {
					t := l.next()
					if t.kind == tokEOF || (t.kind == tokKeyword && t.word == "ID") {
						break
					}
				}
				l.skipInlineImage()
			}
			ops = append(ops, contentOp{Op: tok.word, Args: operands, Start: opStart, End: l.pos})
			operands = nil
			opStart = -1
		}
	}
	return ops
}

// formatNum writes a number the way content streams expect: no exponent,
// at most 4 decimals, no trailing zeros.
func formatNum(v float64) string {
	v = math.Round(v*10000) / 10000
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func hexLiteral(b []byte) string {
	return "<" + strings.ToUpper(hex.EncodeToString(b)) + ">"
}

func nameLiteral(name string) string {
	var b strings.Builder
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || c == '#' || isPDFDelim(c) {
			b.WriteString("#" + strings.ToUpper(hex.EncodeToString([]byte{c})))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
