package pdf

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

//go:embed schema/layout.schema.json
var layoutSchemaJSON []byte

var (
	layoutSchemaOnce sync.Once
	layoutSchema     *jsonschema.Schema
	layoutSchemaErr  error
)

func compiledLayoutSchema() (*jsonschema.Schema, error) {
	layoutSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("layout.schema.json", bytes.NewReader(layoutSchemaJSON)); err != nil {
			layoutSchemaErr = err
			return
		}
		layoutSchema, layoutSchemaErr = compiler.Compile("layout.schema.json")
	})
	return layoutSchema, layoutSchemaErr
}

// MarshalLayout encodes a document as indented JSON. Output is deterministic
// for a given document.
func MarshalLayout(doc *Document) ([]byte, error) {
	if doc.BlockOrder == nil {
		doc.BlockOrder = []string{}
	}
	for i := range doc.Pages {
		if doc.Pages[i].Blocks == nil {
			doc.Pages[i].Blocks = []TextBlock{}
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// SaveLayout writes the layout file.
func SaveLayout(doc *Document, path string) error {
	data, err := MarshalLayout(doc)
	if err != nil {
		return NewPDFError(ErrLayoutInvalid, "failed to encode layout", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return NewPDFErrorWithDetails(ErrLayoutInvalid, "failed to write layout", path, err)
	}
	logger.Debug("layout saved", logger.String("path", path), logger.Int("blocks", doc.BlockCount()))
	return nil
}

// LoadLayout reads and validates a layout file. Missing writing directions
// default to ltr, a missing block_order is rebuilt from page order, and a
// relative source_file is resolved against the layout's directory when the
// file is not found as given.
func LoadLayout(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewPDFErrorWithDetails(ErrLayoutInvalid, "layout file not found", path, err)
		}
		return nil, NewPDFErrorWithDetails(ErrLayoutInvalid, "failed to read layout", path, err)
	}
	doc, err := ParseLayout(data)
	if err != nil {
		return nil, err
	}
	if doc.SourceFile != "" && !filepath.IsAbs(doc.SourceFile) {
		if _, statErr := os.Stat(doc.SourceFile); statErr != nil {
			candidate := filepath.Join(filepath.Dir(path), filepath.Base(doc.SourceFile))
			if _, err := os.Stat(candidate); err == nil {
				doc.SourceFile = candidate
			}
		}
	}
	return doc, nil
}

// ParseLayout validates raw layout JSON against the layout schema and decodes it.
func ParseLayout(data []byte) (*Document, error) {
	schema, err := compiledLayoutSchema()
	if err != nil {
		return nil, NewPDFError(ErrLayoutInvalid, "layout schema failed to compile", err)
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewPDFError(ErrLayoutInvalid, "layout is not valid JSON", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, NewPDFError(ErrLayoutInvalid, "layout does not match schema", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewPDFError(ErrLayoutInvalid, "failed to decode layout", err)
	}

	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for bi := range page.Blocks {
			b := &page.Blocks[bi]
			if b.WritingDirection == "" {
				b.WritingDirection = DirectionLTR
			}
			if b.PageNumber == 0 {
				b.PageNumber = page.PageNumber
			}
		}
	}
	if len(doc.BlockOrder) == 0 {
		doc.BlockOrder = BlockOrder(&doc)
	}
	return &doc, nil
}

// BlockOrder lists the ids of every non-blank block in document order. The
// position of an id in this list is its exchange index.
func BlockOrder(doc *Document) []string {
	order := []string{}
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if !isBlank(b.Text) {
				order = append(order, b.BlockID)
			}
		}
	}
	return order
}
