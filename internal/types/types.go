// Package types defines configuration and error types shared by pdfTranslator packages.
package types

// Config is the application configuration. Viper fills it through the
// mapstructure tags; Save and WriteDefault serialize it through the yaml tags.
type Config struct {
	TargetLanguage string         `mapstructure:"target_language" yaml:"target_language"`
	Pipeline       string         `mapstructure:"pipeline" yaml:"pipeline"`
	Render         RenderConfig   `mapstructure:"render" yaml:"render"`
	Exchange       ExchangeConfig `mapstructure:"exchange" yaml:"exchange"`
	LLM            LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Batch          BatchConfig    `mapstructure:"batch" yaml:"batch"`
	Log            LogConfig      `mapstructure:"log" yaml:"log"`
}

// RenderConfig controls font fitting and page composition.
type RenderConfig struct {
	Method          string  `mapstructure:"method" yaml:"method"`     // line_by_line | word_wrap
	FitMode         string  `mapstructure:"fit_mode" yaml:"fit_mode"` // metrics | heuristic
	MinFontSize     float64 `mapstructure:"min_font_size" yaml:"min_font_size"`
	FontStep        float64 `mapstructure:"font_step" yaml:"font_step"`
	FallbackFont    string  `mapstructure:"fallback_font" yaml:"fallback_font"`
	UnicodeFontPath string  `mapstructure:"unicode_font_path" yaml:"unicode_font_path"`
	OverlayColor    string  `mapstructure:"overlay_color" yaml:"overlay_color"` // #rrggbb, empty disables
	ObjectStreams   bool    `mapstructure:"object_streams" yaml:"object_streams"`
}

// ExchangeConfig controls the translator-facing files.
type ExchangeConfig struct {
	Encoding       string `mapstructure:"encoding" yaml:"encoding"`
	XLIFFVersion   string `mapstructure:"xliff_version" yaml:"xliff_version"` // 1.2 | 2.0
	SourceLanguage string `mapstructure:"source_language" yaml:"source_language"`
	PromptTemplate string `mapstructure:"prompt_template" yaml:"prompt_template"`
}

// LLMConfig configures the optional machine translation step.
type LLMConfig struct {
	APIKey        string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	Model         string `mapstructure:"model" yaml:"model"`
	ContextWindow int    `mapstructure:"context_window" yaml:"context_window"` // characters per batch
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
	MaxRetries    int    `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// BatchConfig configures multi-document runs.
type BatchConfig struct {
	Workers            int    `mapstructure:"workers" yaml:"workers"`
	DocumentTimeoutSec int    `mapstructure:"document_timeout_sec" yaml:"document_timeout_sec"`
	StateDir           string `mapstructure:"state_dir" yaml:"state_dir"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"` // text | json
	File    string `mapstructure:"file" yaml:"file"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit ErrorCode = "API_RATE_LIMIT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
	ErrEncoding     ErrorCode = "ENCODING_ERROR"
	ErrPipeline     ErrorCode = "PIPELINE_ERROR"
)

// AppError is an application error with a code and an optional cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// HasCode reports whether err (or anything it wraps) is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
