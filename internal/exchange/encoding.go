package exchange

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// encodingAliases maps codec names people type on the command line to names
// the IANA or WHATWG indexes know.
var encodingAliases = map[string]string{
	"utf8":      "utf-8",
	"utf-8-sig": "utf-8",
	"latin1":    "iso-8859-1",
	"latin-1":   "iso-8859-1",
	"l1":        "iso-8859-1",
	"cp1250":    "windows-1250",
	"cp1251":    "windows-1251",
	"cp1252":    "windows-1252",
	"cp1253":    "windows-1253",
	"cp1254":    "windows-1254",
	"cp1255":    "windows-1255",
	"cp1256":    "windows-1256",
	"cp1257":    "windows-1257",
	"cp1258":    "windows-1258",
	"cp437":     "ibm437",
	"cp850":     "ibm850",
	"cp866":     "ibm866",
	"koi8r":     "koi8-r",
	"sjis":      "shift_jis",
	"shift-jis": "shift_jis",
	"eucjp":     "euc-jp",
	"euckr":     "euc-kr",
}

// LookupEncoding resolves an encoding name. Empty and UTF-8 names return
// unicode.UTF8; underscores and case are ignored.
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if alias, ok := encodingAliases[key]; ok {
		key = alias
	}
	if key == "" || key == "utf-8" {
		return unicode.UTF8, nil
	}
	if enc, err := ianaindex.IANA.Encoding(key); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(key); err == nil && enc != nil {
		return enc, nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrEncoding, "unknown text encoding", name, nil)
}

func isUTF8(enc encoding.Encoding) bool {
	return enc == unicode.UTF8
}

// EncodeText converts s to the named encoding. Characters the encoding cannot
// represent are an error.
func EncodeText(s, encodingName string) ([]byte, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	if isUTF8(enc) {
		return []byte(s), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrEncoding,
			"text cannot be represented in encoding", encodingName, err)
	}
	return out, nil
}

// DecodeText converts data from the named encoding to UTF-8. A UTF-8 byte
// order mark is dropped.
func DecodeText(data []byte, encodingName string) (string, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return "", err
	}
	if isUTF8(enc) {
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrEncoding, "failed to decode text", encodingName, err)
	}
	return string(out), nil
}

// ReadTextFile reads path and decodes it from the named encoding.
func ReadTextFile(path, encodingName string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewAppErrorWithDetails(types.ErrFileNotFound, "file not found", path, err)
		}
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to read file", path, err)
	}
	text, err := DecodeText(data, encodingName)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// WriteTextFile encodes content and writes it to path, creating parent
// directories as needed.
func WriteTextFile(path, content, encodingName string) error {
	data, err := EncodeText(content, encodingName)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppErrorWithDetails(types.ErrInternal, "failed to create directory", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to write file", path, err)
	}
	return nil
}
