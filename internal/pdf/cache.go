package pdf

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// cacheVersion is written into every cache file. Files of another version
// are ignored on load.
const cacheVersion = "2"

// CacheEntry is one cached translation of one source text into one language.
type CacheEntry struct {
	Hash        string    `json:"hash"` // SHA-256 of Original
	Language    string    `json:"language"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk form of a TranslationCache.
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache keeps translated block texts next to a document so a
// repeated translate only sends new text. One file holds every target
// language; a cache instance reads and writes the entries of its own.
type TranslationCache struct {
	cachePath string
	language  string
	entries   map[string]CacheEntry // language + hash -> entry
	mu        sync.RWMutex
}

// NewTranslationCache creates a cache for translations into language.
func NewTranslationCache(cachePath, language string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		language:  language,
		entries:   make(map[string]CacheEntry),
	}
}

// CachePathFor returns the cache file kept next to a document.
func CachePathFor(documentPath string) string {
	return documentPath + "_cache.json"
}

// ComputeHash returns the hex SHA-256 of text.
func ComputeHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

func entryKey(language, hash string) string {
	return language + "\x00" + hash
}

// Get returns the cached translation of text.
func (c *TranslationCache) Get(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[entryKey(c.language, ComputeHash(text))]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set stores a translation. Blank translations are not cached.
func (c *TranslationCache) Set(text, translation string) {
	if isBlank(translation) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := ComputeHash(text)
	c.entries[entryKey(c.language, hash)] = CacheEntry{
		Hash:        hash,
		Language:    c.language,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now().UTC(),
	}
}

// Load reads the cache file. A missing file, or one written by another
// cache version, leaves the cache empty.
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return NewPDFErrorWithDetails(ErrCacheFailed, "failed to read cache file", c.cachePath, err)
	}

	var file CacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return NewPDFErrorWithDetails(ErrCacheFailed, "failed to parse cache file", c.cachePath, err)
	}
	c.entries = make(map[string]CacheEntry, len(file.Entries))
	if file.Version != cacheVersion {
		logger.Info("ignoring translation cache of another version",
			logger.String("path", c.cachePath),
			logger.String("version", file.Version))
		return nil
	}
	for _, entry := range file.Entries {
		c.entries[entryKey(entry.Language, entry.Hash)] = entry
	}
	return nil
}

// Save writes every language's entries. Entries are sorted so unchanged
// caches produce identical files; the file is replaced atomically.
func (c *TranslationCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Language != entries[j].Language {
			return entries[i].Language < entries[j].Language
		}
		return entries[i].Hash < entries[j].Hash
	})

	data, err := json.MarshalIndent(CacheFile{Version: cacheVersion, Entries: entries}, "", "  ")
	if err != nil {
		return NewPDFError(ErrCacheFailed, "failed to marshal cache", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return NewPDFErrorWithDetails(ErrCacheFailed, "failed to create cache directory", c.cachePath, err)
	}
	tmp := c.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return NewPDFErrorWithDetails(ErrCacheFailed, "failed to write cache file", c.cachePath, err)
	}
	if err := os.Rename(tmp, c.cachePath); err != nil {
		os.Remove(tmp)
		return NewPDFErrorWithDetails(ErrCacheFailed, "failed to write cache file", c.cachePath, err)
	}
	return nil
}

// Size returns the number of entries for the cache's language.
func (c *TranslationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.Language == c.language {
			n++
		}
	}
	return n
}

// Clear drops the entries of the cache's language; other languages stay.
func (c *TranslationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.Language == c.language {
			delete(c.entries, k)
		}
	}
}
