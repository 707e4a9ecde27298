package pdf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	seen := map[string]string{}
	for _, text := range []string{"", "Hello", "hello", "Hello ", "नमस्ते दुनिया", "🎉", "   \t\n"} {
		hash := ComputeHash(text)
		assert.Len(t, hash, 64)
		assert.Equal(t, hash, ComputeHash(text))
		if prev, ok := seen[hash]; ok {
			t.Fatalf("hash collision between %q and %q", text, prev)
		}
		seen[hash] = text
	}
}

func TestCacheSetGet(t *testing.T) {
	cache := NewTranslationCache("", "Hindi")

	cache.Set("Hello", "नमस्ते")
	got, ok := cache.Get("Hello")
	require.True(t, ok)
	assert.Equal(t, "नमस्ते", got)

	cache.Set("Hello", "हैलो")
	got, _ = cache.Get("Hello")
	assert.Equal(t, "हैलो", got, "Set overwrites")

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestCacheIgnoresBlankTranslations(t *testing.T) {
	cache := NewTranslationCache("", "Hindi")
	cache.Set("Hello", "   ")
	_, ok := cache.Get("Hello")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())
}

func TestCacheSeparatesLanguages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf_cache.json")

	hindi := NewTranslationCache(path, "Hindi")
	hindi.Set("Hello", "नमस्ते")
	require.NoError(t, hindi.Save())

	bengali := NewTranslationCache(path, "Bengali")
	require.NoError(t, bengali.Load())
	_, ok := bengali.Get("Hello")
	assert.False(t, ok, "a Hindi entry is not a Bengali translation")
	bengali.Set("Hello", "হ্যালো")
	require.NoError(t, bengali.Save())

	reloaded := NewTranslationCache(path, "Hindi")
	require.NoError(t, reloaded.Load())
	got, ok := reloaded.Get("Hello")
	require.True(t, ok, "saving one language keeps the others")
	assert.Equal(t, "नमस्ते", got)
	assert.Equal(t, 1, reloaded.Size())

	reloaded.Clear()
	require.NoError(t, reloaded.Save())
	require.NoError(t, bengali.Load())
	assert.Equal(t, 1, bengali.Size(), "Clear only drops its own language")
}

func TestCacheSaveLoad(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "nested", "doc.pdf_cache.json")

	cache1 := NewTranslationCache(cachePath, "Hindi")
	testData := map[string]string{
		"Hello":          "नमस्ते",
		"World":          "दुनिया",
		"Special: !@#$%": "विशेष: !@#$%",
		"Line\nbreak":    "पंक्ति\nविराम",
	}
	for text, translation := range testData {
		cache1.Set(text, translation)
	}
	require.NoError(t, cache1.Save())

	first, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	require.NoError(t, cache1.Save())
	second, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, first, second, "saving an unchanged cache is deterministic")

	cache2 := NewTranslationCache(cachePath, "Hindi")
	require.NoError(t, cache2.Load())
	assert.Equal(t, cache1.Size(), cache2.Size())
	for text, want := range testData {
		got, ok := cache2.Get(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got)
	}
}

func TestCacheLoadMissingOrEmptyPath(t *testing.T) {
	missing := NewTranslationCache(filepath.Join(t.TempDir(), "absent.json"), "Hindi")
	require.NoError(t, missing.Load())
	assert.Equal(t, 0, missing.Size())

	noPath := NewTranslationCache("", "Hindi")
	noPath.Set("a", "b")
	assert.NoError(t, noPath.Load())
	assert.NoError(t, noPath.Save())
}

func TestCacheLoadOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	data, err := json.Marshal(CacheFile{Version: "1.0", Entries: []CacheEntry{{Hash: ComputeHash("a"), Original: "a", Translation: "b"}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cache := NewTranslationCache(path, "")
	require.NoError(t, cache.Load())
	assert.Equal(t, 0, cache.Size())
}

func TestCacheLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	err := NewTranslationCache(path, "Hindi").Load()
	require.Error(t, err)
	var pdfErr *PDFError
	require.ErrorAs(t, err, &pdfErr)
	assert.Equal(t, ErrCacheFailed, pdfErr.Code)
}

func TestCachePathFor(t *testing.T) {
	assert.Equal(t, "docs/report.pdf_cache.json", CachePathFor("docs/report.pdf"))
}
