package exchange

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// XLIFF versions.
const (
	XLIFF12 = "1.2"
	XLIFF20 = "2.0"

	xliffNS12 = "urn:oasis:names:tc:xliff:document:1.2"
	xliffNS20 = "urn:oasis:names:tc:xliff:document:2.0"
)

// XLIFFOptions describe the file header.
type XLIFFOptions struct {
	Version        string
	SourceLanguage string
	TargetLanguage string
}

type xliff12 struct {
	XMLName xml.Name    `xml:"xliff"`
	Version string      `xml:"version,attr"`
	NS      string      `xml:"xmlns,attr"`
	File    xliff12File `xml:"file"`
}

type xliff12File struct {
	Original       string        `xml:"original,attr"`
	SourceLanguage string        `xml:"source-language,attr"`
	TargetLanguage string        `xml:"target-language,attr"`
	Datatype       string        `xml:"datatype,attr"`
	Units          []xliff12Unit `xml:"body>trans-unit"`
}

type xliff12Unit struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source"`
	Target xliff12Target `xml:"target"`
	Note   string        `xml:"note"`
}

type xliff12Target struct {
	State string `xml:"state,attr"`
	Text  string `xml:",chardata"`
}

type xliff20 struct {
	XMLName xml.Name    `xml:"xliff"`
	Version string      `xml:"version,attr"`
	NS      string      `xml:"xmlns,attr"`
	SrcLang string      `xml:"srcLang,attr"`
	TrgLang string      `xml:"trgLang,attr"`
	File    xliff20File `xml:"file"`
}

type xliff20File struct {
	ID       string        `xml:"id,attr"`
	Original string        `xml:"original,attr"`
	Units    []xliff20Unit `xml:"unit"`
}

type xliff20Unit struct {
	ID     string   `xml:"id,attr"`
	Notes  []string `xml:"notes>note"`
	Source string   `xml:"segment>source"`
	Target string   `xml:"segment>target"`
}

func blockNote(page int, font string) string {
	if font == "" {
		font = "unknown"
	}
	return fmt.Sprintf("Page %d, Font: %s", page, font)
}

// MarshalXLIFF renders the non-blank blocks of doc as an XLIFF document with
// empty targets. Units are keyed by block id.
func MarshalXLIFF(doc *pdf.Document, opts XLIFFOptions) ([]byte, error) {
	original := doc.SourceFile
	if original == "" {
		original = "unknown"
	}
	srcLang := LanguageCode(opts.SourceLanguage)
	trgLang := LanguageCode(opts.TargetLanguage)

	var v interface{}
	switch opts.Version {
	case "", XLIFF12:
		f := xliff12File{
			Original:       original,
			SourceLanguage: srcLang,
			TargetLanguage: trgLang,
			Datatype:       "plaintext",
		}
		for _, b := range doc.Blocks() {
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			f.Units = append(f.Units, xliff12Unit{
				ID:     b.BlockID,
				Source: b.Text,
				Target: xliff12Target{State: "new"},
				Note:   blockNote(b.PageNumber, b.FontName),
			})
		}
		v = xliff12{Version: XLIFF12, NS: xliffNS12, File: f}
	case XLIFF20:
		f := xliff20File{ID: "f1", Original: original}
		for _, b := range doc.Blocks() {
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			f.Units = append(f.Units, xliff20Unit{
				ID:     b.BlockID,
				Notes:  []string{blockNote(b.PageNumber, b.FontName)},
				Source: b.Text,
			})
		}
		v = xliff20{Version: XLIFF20, NS: xliffNS20, SrcLang: srcLang, TrgLang: trgLang, File: f}
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unsupported XLIFF version", opts.Version, nil)
	}

	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to encode XLIFF", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// ParseXLIFF reads the targets of an XLIFF 1.2 or 2.0 document. Units with an
// empty target are left out so their blocks fall back to the source text.
// Inline markup inside a target contributes its text only.
func ParseXLIFF(data []byte) (*Result, error) {
	res := &Result{Translations: make(map[string]string)}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		sawRoot   bool
		unitID    string
		inTarget  int
		target    strings.Builder
		unitsSeen = make(map[string]bool)
		ordinal   int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "malformed XLIFF", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "xliff":
				sawRoot = true
			case "trans-unit", "unit":
				unitID = attr(t, "id")
				target.Reset()
			case "target":
				if unitID != "" {
					inTarget++
				}
			}
		case xml.CharData:
			if inTarget > 0 {
				target.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "target":
				if inTarget > 0 {
					inTarget--
				}
			case "trans-unit", "unit":
				text := strings.TrimSpace(target.String())
				if unitsSeen[unitID] {
					res.Duplicates = append(res.Duplicates, ordinal)
				}
				unitsSeen[unitID] = true
				if unitID != "" && text != "" {
					res.Translations[unitID] = text
				}
				unitID = ""
				ordinal++
			}
		}
	}
	if !sawRoot {
		return nil, types.NewAppError(types.ErrInvalidInput, "not an XLIFF document", nil)
	}
	return res, nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// FilterKnown moves translations whose id is not in order to UnknownIDs.
func (r *Result) FilterKnown(order []string) {
	known := make(map[string]bool, len(order))
	for _, id := range order {
		known[id] = true
	}
	for id := range r.Translations {
		if !known[id] {
			delete(r.Translations, id)
			r.UnknownIDs = append(r.UnknownIDs, id)
		}
	}
	sort.Strings(r.UnknownIDs)
}

var commonLanguages = []string{
	"en", "hi", "bn", "ta", "te", "mr", "gu", "kn", "ml", "pa", "ur", "or", "as", "ne", "si",
	"fr", "de", "es", "it", "pt", "nl", "sv", "no", "da", "fi", "pl", "cs", "sk", "ro", "hu",
	"el", "ru", "uk", "bg", "sr", "hr", "tr", "ar", "fa", "he", "zh", "ja", "ko", "vi", "th",
	"id", "ms", "sw",
}

// LanguageCode turns a language name or tag ("Hindi", "hi", "pt-BR") into a
// BCP 47 tag. Names that cannot be resolved fall back to their first two
// letters, lowercased.
func LanguageCode(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "und"
	}
	if tag, err := language.Parse(name); err == nil {
		return tag.String()
	}
	namer := display.English.Languages()
	for _, code := range commonLanguages {
		tag := language.MustParse(code)
		if strings.EqualFold(namer.Name(tag), name) {
			return code
		}
	}
	lower := strings.ToLower(name)
	if len(lower) > 2 {
		lower = lower[:2]
	}
	return lower
}
