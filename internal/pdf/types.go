package pdf

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Direction is the writing direction of a block, taken from its first line.
type Direction string

const (
	DirectionLTR Direction = "ltr"
	DirectionRTL Direction = "rtl"
	DirectionTTB Direction = "ttb"
)

// Rect is an axis-aligned rectangle in page points with a top-left origin:
// X grows to the right, Y grows downwards.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Valid reports whether the rectangle has positive area.
func (r Rect) Valid() bool { return r.X1 > r.X0 && r.Y1 > r.Y0 }

// Pad grows the rectangle by d on every side.
func (r Rect) Pad(d float64) Rect {
	return Rect{r.X0 - d, r.Y0 - d, r.X1 + d, r.Y1 + d}
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{math.Min(r.X0, o.X0), math.Min(r.Y0, o.Y0), math.Max(r.X1, o.X1), math.Max(r.Y1, o.Y1)}
}

// Contains reports whether the point lies inside r (edges included).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// MarshalJSON encodes the rectangle as [x0, y0, x1, y1] rounded to 3 decimals.
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{round3(r.X0), round3(r.Y0), round3(r.X1), round3(r.Y1)})
}

// UnmarshalJSON decodes [x0, y0, x1, y1].
func (r *Rect) UnmarshalJSON(data []byte) error {
	var a [4]float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Rect{a[0], a[1], a[2], a[3]}
	return nil
}

// TextBlock is one visually contiguous run of text on one page.
// Blocks are immutable once extracted; translations live in a side table.
type TextBlock struct {
	BlockID          string    `json:"block_id"`
	PageNumber       int       `json:"page_number"`
	BBox             Rect      `json:"bbox"`
	Text             string    `json:"text"`
	FontName         string    `json:"font_name"`
	FontSize         float64   `json:"font_size"`
	Color            string    `json:"color"`
	WritingDirection Direction `json:"writing_direction"`
	LineHeight       *float64  `json:"line_height"`
}

// Page holds the blocks of one page plus its geometry.
type Page struct {
	PageNumber int         `json:"page_number"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Rotation   int         `json:"rotation"`
	Blocks     []TextBlock `json:"blocks"`
}

// Document is the extracted layout of a whole PDF.
type Document struct {
	SourceFile     string   `json:"source_file"`
	Pipeline       string   `json:"pipeline,omitempty"`
	TargetLanguage string   `json:"target_language,omitempty"`
	Encoding       string   `json:"encoding,omitempty"`
	Pages          []Page   `json:"pages"`
	BlockOrder     []string `json:"block_order"`
}

// Blocks returns every block in document order.
func (d *Document) Blocks() []TextBlock {
	var out []TextBlock
	for _, p := range d.Pages {
		out = append(out, p.Blocks...)
	}
	return out
}

// BlockCount returns the number of blocks across all pages.
func (d *Document) BlockCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Blocks)
	}
	return n
}

// RGB is a color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// Black is the fallback text color.
var Black = RGB{}

// FormatColor packs 0..255 components into "#rrggbb", clamping out of range values.
func FormatColor(r, g, b int) string {
	return fmt.Sprintf("#%02x%02x%02x", clampByte(r), clampByte(g), clampByte(b))
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// ParseColor parses "#rrggbb" (the hash is optional). It returns false and
// black for anything that is not six hex digits.
func ParseColor(s string) (RGB, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Black, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Black, false
	}
	return RGB{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, true
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// PDFErrorCode classifies a PDFError.
type PDFErrorCode string

const (
	ErrPDFNotFound     PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid      PDFErrorCode = "PDF_INVALID"
	ErrPDFEncrypted    PDFErrorCode = "PDF_ENCRYPTED"
	ErrPDFCorrupted    PDFErrorCode = "PDF_CORRUPTED"
	ErrLayoutInvalid   PDFErrorCode = "LAYOUT_INVALID"
	ErrExtractFailed   PDFErrorCode = "EXTRACT_FAILED"
	ErrGenerateFailed  PDFErrorCode = "GENERATE_FAILED"
	ErrFontUnavailable PDFErrorCode = "FONT_UNAVAILABLE"
	ErrRenderFailed    PDFErrorCode = "RENDER_FAILED"
	ErrCacheFailed     PDFErrorCode = "CACHE_FAILED"
	ErrCancelled       PDFErrorCode = "CANCELLED"
)

// PDFError is a PDF processing error, optionally tied to a page.
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Page    int          `json:"page,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("%s (page %d)", msg, e.Page)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPDFErrorWithPage creates a new PDFError with page information
func NewPDFErrorWithPage(code PDFErrorCode, message string, page int, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}
