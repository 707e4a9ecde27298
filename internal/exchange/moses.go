package exchange

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// MosesBreak stands for a line break inside a Moses segment.
const MosesBreak = " <br> "

// MosesMapping ties each line of a Moses file to a block id.
type MosesMapping struct {
	Format   string         `json:"format"`
	Segments []MosesSegment `json:"segments"`
}

// MosesSegment is one line of the mapping.
type MosesSegment struct {
	Line    int    `json:"line"`
	BlockID string `json:"block_id"`
}

// MosesLine normalizes text for a one-line segment: line breaks become
// " <br> " and runs of whitespace collapse to one space.
func MosesLine(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", MosesBreak)
	return strings.Join(strings.Fields(text), " ")
}

// SerializeMoses returns the source side (one non-blank block per line) and
// the line mapping.
func SerializeMoses(doc *pdf.Document) (string, *MosesMapping) {
	mapping := &MosesMapping{Format: "moses", Segments: []MosesSegment{}}
	var lines []string
	for _, b := range doc.Blocks() {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		mapping.Segments = append(mapping.Segments, MosesSegment{Line: len(lines), BlockID: b.BlockID})
		lines = append(lines, MosesLine(b.Text))
	}
	return strings.Join(lines, "\n"), mapping
}

// MappingFromOrder builds a mapping where line i belongs to order[i].
func MappingFromOrder(order []string) *MosesMapping {
	m := &MosesMapping{Format: "moses", Segments: make([]MosesSegment, len(order))}
	for i, id := range order {
		m.Segments[i] = MosesSegment{Line: i, BlockID: id}
	}
	return m
}

// ParseMoses maps the lines of a target file back to block ids. Blank lines
// are treated as untranslated. Non-blank lines without a mapping entry are
// reported in Unknown by line number.
func ParseMoses(content string, mapping *MosesMapping) *Result {
	res := &Result{Translations: make(map[string]string)}
	byLine := make(map[int]string, len(mapping.Segments))
	for _, s := range mapping.Segments {
		byLine[s.Line] = s.BlockID
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	for i, line := range strings.Split(content, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		id, ok := byLine[i]
		if !ok {
			res.Unknown = append(res.Unknown, i)
			continue
		}
		text = strings.ReplaceAll(text, MosesBreak, "\n")
		text = strings.ReplaceAll(text, strings.TrimSpace(MosesBreak), "\n")
		res.Translations[id] = strings.TrimSpace(text)
	}
	return res
}

// SaveMosesMapping writes the mapping as indented JSON.
func SaveMosesMapping(m *MosesMapping, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to encode Moses mapping", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to write Moses mapping", path, err)
	}
	return nil
}

// LoadMosesMapping reads a mapping written by SaveMosesMapping.
func LoadMosesMapping(path string) (*MosesMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "Moses mapping not found", path, err)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to read Moses mapping", path, err)
	}
	var m MosesMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid Moses mapping", path, err)
	}
	return &m, nil
}
