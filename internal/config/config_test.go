package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debabrota1604/pdfTranslator/internal/types"
)

func TestNewConfigManagerMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	m, err := NewConfigManager(path)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, DefaultTargetLanguage, cfg.TargetLanguage)
	assert.Equal(t, DefaultPipeline, cfg.Pipeline)
	assert.Equal(t, DefaultMinFontSize, cfg.Render.MinFontSize)
	assert.Equal(t, DefaultFontStep, cfg.Render.FontStep)
	assert.Equal(t, DefaultEncoding, cfg.Exchange.Encoding)
	assert.Equal(t, DefaultWorkers, cfg.Batch.Workers)
	assert.NoError(t, m.Validate())
	assert.Equal(t, path, m.GetConfigPath())
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdft.yaml")
	yaml := `target_language: Bengali
pipeline: xliff
render:
  method: word_wrap
  min_font_size: 5
  font_step: 0.25
exchange:
  encoding: windows-1252
  xliff_version: "2.0"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	m, err := NewConfigManager(path)
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, "Bengali", cfg.TargetLanguage)
	assert.Equal(t, "xliff", cfg.Pipeline)
	assert.Equal(t, "word_wrap", cfg.Render.Method)
	assert.Equal(t, 5.0, cfg.Render.MinFontSize)
	assert.Equal(t, 0.25, cfg.Render.FontStep)
	assert.Equal(t, DefaultFitMode, cfg.Render.FitMode, "unset keys keep defaults")
	assert.Equal(t, "windows-1252", cfg.Exchange.Encoding)
	assert.Equal(t, "2.0", cfg.Exchange.XLIFFVersion)
	assert.NoError(t, m.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PDFT_RENDER_MIN_FONT_SIZE", "4.5")
	t.Setenv("PDFT_TARGET_LANGUAGE", "Tamil")
	t.Setenv("PDFT_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	m, err := NewConfigManager(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, 4.5, cfg.Render.MinFontSize)
	assert.Equal(t, "Tamil", cfg.TargetLanguage)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestSetOverridesFileAndEnv(t *testing.T) {
	t.Setenv("PDFT_PIPELINE", "moses")
	m, err := NewConfigManager(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "moses", m.GetConfig().Pipeline)

	require.NoError(t, m.Set("pipeline", "direct"))
	assert.Equal(t, "direct", m.GetConfig().Pipeline)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *types.Config)
		ok     bool
	}{
		{"defaults", func(c *types.Config) {}, true},
		{"zero floor", func(c *types.Config) { c.Render.MinFontSize = 0 }, false},
		{"negative step", func(c *types.Config) { c.Render.FontStep = -0.5 }, false},
		{"unknown method", func(c *types.Config) { c.Render.Method = "reflow" }, false},
		{"unknown fit mode", func(c *types.Config) { c.Render.FitMode = "exact" }, false},
		{"unknown pipeline", func(c *types.Config) { c.Pipeline = "docx" }, false},
		{"unknown encoding", func(c *types.Config) { c.Exchange.Encoding = "klingon-8" }, false},
		{"legacy encoding", func(c *types.Config) { c.Exchange.Encoding = "latin-1" }, true},
		{"no workers", func(c *types.Config) { c.Batch.Workers = 0 }, false},
		{"bad log level", func(c *types.Config) { c.Log.Level = "loud" }, false},
		{"json logs", func(c *types.Config) { c.Log.Format = "json" }, true},
		{"bad log format", func(c *types.Config) { c.Log.Format = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrConfig))
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	path := filepath.Join(t.TempDir(), "nested", "pdft.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# pdfTranslator configuration")
	assert.Contains(t, string(data), "min_font_size: 6")

	m, err := NewConfigManager(path)
	require.NoError(t, err)
	assert.Equal(t, *DefaultConfig(), *m.GetConfig())
}

func TestSaveOmitsAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	path := filepath.Join(t.TempDir(), "saved.yaml")
	m, err := NewConfigManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Set("target_language", "Marathi"))

	require.NoError(t, m.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "target_language: Marathi")
	assert.NotContains(t, string(data), "sk-secret")
}
