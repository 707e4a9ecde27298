// Package exchange implements the translator-facing file formats: the tagged
// text format, its template and prompt, XLIFF, and Moses parallel text.
// Every format maps back to the same block_id -> text table.
package exchange

import (
	"strconv"
	"strings"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pdf"
)

// escapedNewline is written in place of a real line break inside a tag.
const escapedNewline = `\n`

// Result is a parsed translation table plus what could not be mapped.
type Result struct {
	// Translations maps block_id to translated text.
	Translations map[string]string
	// Unknown lists indices (or lines) that have no block, in file order.
	Unknown []int
	// UnknownIDs lists unit ids that name no block (id-keyed formats).
	UnknownIDs []string
	// Duplicates lists indices seen more than once; the last occurrence won.
	Duplicates []int
}

// Warnings describes the degradations found while parsing.
func (r *Result) Warnings() []string {
	var w []string
	if len(r.Unknown) > 0 {
		w = append(w, "ignored unknown indices "+joinInts(r.Unknown))
	}
	if len(r.UnknownIDs) > 0 {
		w = append(w, "ignored unknown ids "+strings.Join(r.UnknownIDs, ", "))
	}
	if len(r.Duplicates) > 0 {
		w = append(w, "duplicate indices (last one kept) "+joinInts(r.Duplicates))
	}
	return w
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// Serialize renders every non-blank block of doc as one <i>text</i> line and
// returns the content together with the index -> block_id order.
func Serialize(doc *pdf.Document) (string, []string) {
	var lines []string
	order := []string{}
	for _, b := range doc.Blocks() {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		idx := strconv.Itoa(len(order))
		order = append(order, b.BlockID)
		lines = append(lines, "<"+idx+">"+EscapeNewlines(b.Text)+"</"+idx+">")
	}
	return strings.Join(lines, "\n"), order
}

// Render writes the translations of table as <i>text</i> lines in the
// index order of order. Ids without a translation are left out so a later
// Parse reports them as missing.
func Render(order []string, table map[string]string) string {
	var lines []string
	for i, id := range order {
		text, ok := table[id]
		if !ok {
			continue
		}
		idx := strconv.Itoa(i)
		lines = append(lines, "<"+idx+">"+EscapeNewlines(text)+"</"+idx+">")
	}
	return strings.Join(lines, "\n")
}

// Template returns an empty <i></i> line for each of n indices.
func Template(n int) string {
	lines := make([]string, n)
	for i := range lines {
		idx := strconv.Itoa(i)
		lines[i] = "<" + idx + "></" + idx + ">"
	}
	return strings.Join(lines, "\n")
}

// EscapeNewlines replaces line breaks with the two characters `\n`.
func EscapeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", escapedNewline)
}

// UnescapeNewlines turns `\n` back into line breaks.
func UnescapeNewlines(s string) string {
	return strings.ReplaceAll(s, escapedNewline, "\n")
}

// Parse reads <N>content</N> pairs from content. The closing tag must repeat
// the opening digits and the shortest match wins, so a pair may span lines.
// Content is unescaped and trimmed. Indices outside order are collected in
// Unknown; repeated indices overwrite earlier ones and land in Duplicates.
func Parse(content string, order []string) *Result {
	res := &Result{Translations: make(map[string]string)}
	seen := make(map[int]bool)

	for i := 0; i < len(content); {
		digits, open := openingTag(content, i)
		if open == 0 {
			i++
			continue
		}
		closing := "</" + digits + ">"
		end := strings.Index(content[i+open:], closing)
		if end < 0 {
			i++
			continue
		}
		body := content[i+open : i+open+end]
		i += open + end + len(closing)

		idx, err := strconv.Atoi(digits)
		if err != nil || idx >= len(order) {
			if err != nil {
				idx = -1
			}
			res.Unknown = append(res.Unknown, idx)
			continue
		}
		if seen[idx] {
			res.Duplicates = append(res.Duplicates, idx)
		}
		seen[idx] = true
		res.Translations[order[idx]] = strings.TrimSpace(UnescapeNewlines(body))
	}

	if len(res.Unknown) > 0 || len(res.Duplicates) > 0 {
		logger.Warn("tagged translation file has unmapped entries",
			logger.Int("unknown", len(res.Unknown)),
			logger.Int("duplicates", len(res.Duplicates)))
	}
	return res
}

// openingTag matches "<digits>" at s[i:]. It returns the digits and the tag
// length, or a zero length when there is no tag.
func openingTag(s string, i int) (string, int) {
	if s[i] != '<' {
		return "", 0
	}
	j := i + 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i+1 || j >= len(s) || s[j] != '>' {
		return "", 0
	}
	return s[i+1 : j], j + 1 - i
}

// Missing lists the ids of order that have no translation, in order.
func (r *Result) Missing(order []string) []string {
	var out []string
	for _, id := range order {
		if _, ok := r.Translations[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
