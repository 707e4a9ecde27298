// Package config provides configuration management for pdfTranslator.
// Values come from defaults, an optional YAML file, and PDFT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

const (
	// DefaultConfigName is the config file base name searched in . and $HOME/.pdft
	DefaultConfigName = "pdft"
	// EnvPrefix prefixes every environment override, e.g. PDFT_RENDER_MIN_FONT_SIZE
	EnvPrefix = "PDFT"
	// EnvOpenAIAPIKey is honored when PDFT_LLM_API_KEY is unset
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is honored when PDFT_LLM_BASE_URL is unset
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"

	DefaultTargetLanguage = "Hindi"
	DefaultPipeline       = "direct"
	DefaultRenderMethod   = "line_by_line"
	DefaultFitMode        = "metrics"
	DefaultMinFontSize    = 6.0
	DefaultFontStep       = 0.5
	DefaultFallbackFont   = "helv"
	DefaultOverlayColor   = "#ffffff"
	DefaultEncoding       = "utf-8"
	DefaultXLIFFVersion   = "1.2"
	DefaultSourceLanguage = "en"
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4o-mini"
	// DefaultContextWindow is the batch size, in characters, for LLM translation
	DefaultContextWindow = 4000
	DefaultConcurrency   = 3
	DefaultMaxRetries    = 3
	DefaultTimeoutSec    = 180
	DefaultWorkers       = 2
	DefaultDocTimeoutSec = 600
	DefaultLogLevel      = "info"
)

var (
	// RenderMethods lists accepted render.method values
	RenderMethods = []string{"line_by_line", "word_wrap"}
	// FitModes lists accepted render.fit_mode values
	FitModes = []string{"metrics", "heuristic"}
	// Pipelines lists accepted pipeline values
	Pipelines = []string{"direct", "xliff", "moses"}
	// XLIFFVersions lists accepted exchange.xliff_version values
	XLIFFVersions = []string{"1.2", "2.0"}
	// LogFormats lists accepted log.format values
	LogFormats = []string{logger.FormatText, logger.FormatJSON}
)

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *types.Config {
	return &types.Config{
		TargetLanguage: DefaultTargetLanguage,
		Pipeline:       DefaultPipeline,
		Render: types.RenderConfig{
			Method:       DefaultRenderMethod,
			FitMode:      DefaultFitMode,
			MinFontSize:  DefaultMinFontSize,
			FontStep:     DefaultFontStep,
			FallbackFont: DefaultFallbackFont,
			OverlayColor: DefaultOverlayColor,
		},
		Exchange: types.ExchangeConfig{
			Encoding:       DefaultEncoding,
			XLIFFVersion:   DefaultXLIFFVersion,
			SourceLanguage: DefaultSourceLanguage,
		},
		LLM: types.LLMConfig{
			BaseURL:       DefaultBaseURL,
			Model:         DefaultModel,
			ContextWindow: DefaultContextWindow,
			Concurrency:   DefaultConcurrency,
			MaxRetries:    DefaultMaxRetries,
			TimeoutSec:    DefaultTimeoutSec,
		},
		Batch: types.BatchConfig{
			Workers:            DefaultWorkers,
			DocumentTimeoutSec: DefaultDocTimeoutSec,
		},
		Log: types.LogConfig{
			Level:  DefaultLogLevel,
			Format: logger.FormatText,
		},
	}
}

// ConfigManager loads, validates, saves and watches the configuration.
type ConfigManager struct {
	mu         sync.RWMutex
	v          *viper.Viper
	configPath string
	config     *types.Config
	callbacks  []func(*types.Config)
}

// NewConfigManager creates a manager. An empty configPath searches ./pdft.yaml
// and $HOME/.pdft/pdft.yaml; a missing file is not an error.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	m := &ConfigManager{
		v:          viper.New(),
		configPath: configPath,
	}
	if err := m.initViper(); err != nil {
		return nil, err
	}
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ConfigManager) initViper() error {
	setDefaults(m.v, DefaultConfig())

	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()
	if err := m.v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", EnvOpenAIAPIKey); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to bind api key environment", err)
	}
	if err := m.v.BindEnv("llm.base_url", EnvPrefix+"_LLM_BASE_URL", EnvOpenAIBaseURL); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to bind base url environment", err)
	}

	if m.configPath != "" {
		m.v.SetConfigFile(m.configPath)
	} else {
		m.v.SetConfigName(DefaultConfigName)
		m.v.SetConfigType("yaml")
		m.v.AddConfigPath(".")
		m.v.AddConfigPath("$HOME/.pdft")
	}

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("no config file found, using defaults")
			return nil
		}
		if m.configPath != "" && errors.Is(err, fs.ErrNotExist) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			return nil
		}
		return types.NewAppErrorWithDetails(types.ErrConfig, "failed to read config file", m.configPath, err)
	}
	logger.Info("configuration file loaded", logger.String("path", m.v.ConfigFileUsed()))
	return nil
}

func setDefaults(v *viper.Viper, d *types.Config) {
	v.SetDefault("target_language", d.TargetLanguage)
	v.SetDefault("pipeline", d.Pipeline)

	v.SetDefault("render.method", d.Render.Method)
	v.SetDefault("render.fit_mode", d.Render.FitMode)
	v.SetDefault("render.min_font_size", d.Render.MinFontSize)
	v.SetDefault("render.font_step", d.Render.FontStep)
	v.SetDefault("render.fallback_font", d.Render.FallbackFont)
	v.SetDefault("render.unicode_font_path", d.Render.UnicodeFontPath)
	v.SetDefault("render.overlay_color", d.Render.OverlayColor)
	v.SetDefault("render.object_streams", d.Render.ObjectStreams)

	v.SetDefault("exchange.encoding", d.Exchange.Encoding)
	v.SetDefault("exchange.xliff_version", d.Exchange.XLIFFVersion)
	v.SetDefault("exchange.source_language", d.Exchange.SourceLanguage)
	v.SetDefault("exchange.prompt_template", d.Exchange.PromptTemplate)

	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.context_window", d.LLM.ContextWindow)
	v.SetDefault("llm.concurrency", d.LLM.Concurrency)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)
	v.SetDefault("llm.timeout_sec", d.LLM.TimeoutSec)

	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.document_timeout_sec", d.Batch.DocumentTimeoutSec)
	v.SetDefault("batch.state_dir", d.Batch.StateDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.console", d.Log.Console)
}

// Load parses the current viper state into the managed Config.
func (m *ConfigManager) Load() error {
	cfg := &types.Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		logger.Error("failed to unmarshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to unmarshal config", err)
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Set overrides a single key (dotted, e.g. "render.min_font_size") and reloads.
// Used for command-line flags, which take precedence over every other source.
func (m *ConfigManager) Set(key string, value interface{}) error {
	m.v.Set(key, value)
	return m.Load()
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return DefaultConfig()
	}
	return m.config
}

// GetConfigPath returns the file in use, or the path Save would write to.
func (m *ConfigManager) GetConfigPath() string {
	if used := m.v.ConfigFileUsed(); used != "" {
		return used
	}
	if m.configPath != "" {
		return m.configPath
	}
	return DefaultConfigName + ".yaml"
}

// Validate checks enumerations and numeric ranges.
func (m *ConfigManager) Validate() error {
	return Validate(m.GetConfig())
}

// Validate checks enumerations and numeric ranges of cfg.
func Validate(cfg *types.Config) error {
	var problems []string
	if cfg.Render.MinFontSize <= 0 {
		problems = append(problems, "render.min_font_size must be positive")
	}
	if cfg.Render.FontStep <= 0 {
		problems = append(problems, "render.font_step must be positive")
	}
	if !contains(RenderMethods, cfg.Render.Method) {
		problems = append(problems, fmt.Sprintf("render.method %q is not one of %v", cfg.Render.Method, RenderMethods))
	}
	if !contains(FitModes, cfg.Render.FitMode) {
		problems = append(problems, fmt.Sprintf("render.fit_mode %q is not one of %v", cfg.Render.FitMode, FitModes))
	}
	if !contains(Pipelines, cfg.Pipeline) {
		problems = append(problems, fmt.Sprintf("pipeline %q is not one of %v", cfg.Pipeline, Pipelines))
	}
	if !contains(XLIFFVersions, cfg.Exchange.XLIFFVersion) {
		problems = append(problems, fmt.Sprintf("exchange.xliff_version %q is not one of %v", cfg.Exchange.XLIFFVersion, XLIFFVersions))
	}
	if _, err := exchange.LookupEncoding(cfg.Exchange.Encoding); err != nil {
		problems = append(problems, fmt.Sprintf("exchange.encoding %q is not supported", cfg.Exchange.Encoding))
	}
	if cfg.Batch.Workers < 1 {
		problems = append(problems, "batch.workers must be at least 1")
	}
	if _, ok := logger.ParseLevel(cfg.Log.Level); !ok {
		problems = append(problems, fmt.Sprintf("log.level %q is not recognized", cfg.Log.Level))
	}
	if !contains(LogFormats, cfg.Log.Format) {
		problems = append(problems, fmt.Sprintf("log.format %q is not one of %v", cfg.Log.Format, LogFormats))
	}
	if len(problems) > 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", strings.Join(problems, "; "), nil)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Save writes the current configuration as YAML. The API key is never written.
func (m *ConfigManager) Save() error {
	path := m.GetConfigPath()
	cfg := *m.GetConfig()
	cfg.LLM.APIKey = ""
	return writeYAML(path, &cfg, nil)
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	header := []byte(`# pdfTranslator configuration
# Every key can be overridden with PDFT_<SECTION>_<KEY>, e.g. PDFT_RENDER_MIN_FONT_SIZE=5
# The LLM key is read from PDFT_LLM_API_KEY or OPENAI_API_KEY, never from this file.

`)
	return writeYAML(path, DefaultConfig(), header)
}

func writeYAML(path string, cfg *types.Config, header []byte) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
		}
	}
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", path))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}
	logger.Info("configuration saved", logger.String("path", path))
	return nil
}

// OnChange registers a callback for configuration reloads.
func (m *ConfigManager) OnChange(fn func(*types.Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch enables hot-reloading of the config file. Reloads that fail to parse
// or validate keep the previous configuration.
func (m *ConfigManager) Watch() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		cfg := &types.Config{}
		if err := m.v.Unmarshal(cfg); err != nil {
			logger.Warn("config reload failed", logger.String("file", e.Name), logger.Err(err))
			return
		}
		if err := Validate(cfg); err != nil {
			logger.Warn("config reload rejected", logger.String("file", e.Name), logger.Err(err))
			return
		}

		m.mu.Lock()
		m.config = cfg
		callbacks := make([]func(*types.Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		logger.Info("configuration reloaded", logger.String("file", e.Name))
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()
}
