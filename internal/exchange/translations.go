package exchange

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// SaveTranslations writes the block_id -> text table as indented JSON with
// sorted keys.
func SaveTranslations(translations map[string]string, path string) error {
	if translations == nil {
		translations = map[string]string{}
	}
	data, err := json.MarshalIndent(translations, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to encode translations", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to write translations", path, err)
	}
	return nil
}

// LoadTranslations reads a table written by SaveTranslations.
func LoadTranslations(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "translations file not found", path, err)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to read translations", path, err)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid translations file", path, err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}
