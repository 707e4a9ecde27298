package exchange

import (
	"os"
	"strings"

	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// TargetLanguagePlaceholder is replaced by the target language in prompts.
const TargetLanguagePlaceholder = "{target_language}"

// DefaultPromptTemplate instructs a model to translate a tagged file.
const DefaultPromptTemplate = `Translate to {target_language}. Rules:
- Format: <N>text</N> where N is number
- Translate ONLY text between tags
- Keep <N> and </N> tags exactly as-is
- \n = line break, preserve them
- One block per line, no extra text`

// RenderPrompt fills the target language into template.
func RenderPrompt(template, targetLanguage string) string {
	return strings.ReplaceAll(template, TargetLanguagePlaceholder, targetLanguage)
}

// LoadPrompt renders the template file at path, or the default template when
// path is empty.
func LoadPrompt(path, targetLanguage string) (string, error) {
	if path == "" {
		return RenderPrompt(DefaultPromptTemplate, targetLanguage), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrConfig, "failed to read prompt template", path, err)
	}
	return RenderPrompt(string(data), targetLanguage), nil
}
