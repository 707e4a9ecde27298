// Package translator sends tagged text units to an OpenAI-compatible chat
// model and maps the tagged replies back to block ids.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

const (
	// DefaultContextWindow is the default batch size in characters
	DefaultContextWindow = 4000
	// DefaultConcurrency is the default number of batches in flight
	DefaultConcurrency = 3
	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 180 * time.Second
	// DefaultMaxRetries is the default number of attempts per request
	DefaultMaxRetries = 3
	// BaseRetryDelay is the first backoff delay; it doubles per attempt
	BaseRetryDelay = 2 * time.Second

	maxRetryDelay = 30 * time.Second
)

// ChatModel is the part of an eino chat model the translator uses.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config configures a BatchTranslator.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	ContextWindow int
	Concurrency   int
	MaxRetries    int
	Timeout       time.Duration
	RetryDelay    time.Duration
	// SystemPrompt is sent with every batch, usually the pipeline prompt.
	SystemPrompt string
}

// FromLLMConfig converts the llm section of the configuration.
func FromLLMConfig(c types.LLMConfig, systemPrompt string) Config {
	return Config{
		APIKey:        c.APIKey,
		BaseURL:       c.BaseURL,
		Model:         c.Model,
		ContextWindow: c.ContextWindow,
		Concurrency:   c.Concurrency,
		MaxRetries:    c.MaxRetries,
		Timeout:       time.Duration(c.TimeoutSec) * time.Second,
		SystemPrompt:  systemPrompt,
	}
}

func (c *Config) applyDefaults() {
	if c.ContextWindow <= 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = BaseRetryDelay
	}
}

// Unit is one translatable block at its exchange index.
type Unit struct {
	Index   int
	BlockID string
	Text    string
}

// tagged renders the unit as one <i>text</i> line.
func (u Unit) tagged() string {
	idx := strconv.Itoa(u.Index)
	return "<" + idx + ">" + exchange.EscapeNewlines(u.Text) + "</" + idx + ">"
}

// UnitsFromLayout lists the blocks of doc in exchange order.
func UnitsFromLayout(doc *pdf.Document) []Unit {
	texts := make(map[string]string, doc.BlockCount())
	for _, b := range doc.Blocks() {
		texts[b.BlockID] = b.Text
	}
	units := make([]Unit, 0, len(doc.BlockOrder))
	for i, id := range doc.BlockOrder {
		units = append(units, Unit{Index: i, BlockID: id, Text: texts[id]})
	}
	return units
}

// MergeBatches groups units so that each batch's tagged text stays within
// window characters. A unit longer than window gets a batch of its own.
func MergeBatches(units []Unit, window int) [][]Unit {
	if window <= 0 {
		window = DefaultContextWindow
	}
	var batches [][]Unit
	var current []Unit
	size := 0
	for _, u := range units {
		n := len(u.tagged())
		if len(current) > 0 {
			n++ // newline
		}
		if len(current) > 0 && size+n > window {
			batches = append(batches, current)
			current, size = nil, 0
			n = len(u.tagged())
		}
		current = append(current, u)
		size += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func batchText(batch []Unit) string {
	lines := make([]string, len(batch))
	for i, u := range batch {
		lines[i] = u.tagged()
	}
	return strings.Join(lines, "\n")
}

// Result is the outcome of a translation run.
type Result struct {
	// Translations maps block_id to translated text.
	Translations map[string]string
	FromCache    int
	Translated   int
	Batches      int
	// Missing lists block ids the model never returned, in index order.
	Missing  []string
	Warnings []string
}

// ProgressCallback reports completed units out of total.
type ProgressCallback func(completed, total int)

// BatchTranslator translates units in batches with bounded concurrency.
type BatchTranslator struct {
	model ChatModel
	cfg   Config
}

// NewBatchTranslator creates a translator backed by an OpenAI-compatible
// chat model.
func NewBatchTranslator(ctx context.Context, cfg Config) (*BatchTranslator, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "LLM API key is not configured (set PDFT_LLM_API_KEY or OPENAI_API_KEY)", nil)
	}
	cfg.applyDefaults()

	temperature := float32(0.2)
	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		Temperature: &temperature,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}
	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}
	return &BatchTranslator{model: chatModel, cfg: cfg}, nil
}

// NewBatchTranslatorWithModel uses m instead of a network model.
func NewBatchTranslatorWithModel(m ChatModel, cfg Config) *BatchTranslator {
	cfg.applyDefaults()
	return &BatchTranslator{model: m, cfg: cfg}
}

// Translate translates units. Cached texts are not sent. Units a batch
// reply leaves out are retried one by one; units still missing after that
// are reported, not failed, because merge keeps their original text.
// Authentication and invalid-request errors abort the run.
func (b *BatchTranslator) Translate(ctx context.Context, units []Unit, cache *pdf.TranslationCache, progress ProgressCallback) (*Result, error) {
	res := &Result{Translations: make(map[string]string)}
	if len(units) == 0 {
		return res, nil
	}

	order := indexOrder(units)
	pending := make([]Unit, 0, len(units))
	for _, u := range units {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		if cache != nil {
			if t, ok := cache.Get(u.Text); ok {
				res.Translations[u.BlockID] = t
				res.FromCache++
				continue
			}
		}
		pending = append(pending, u)
	}

	batches := MergeBatches(pending, b.cfg.ContextWindow)
	res.Batches = len(batches)
	logger.Info("starting LLM translation",
		logger.Int("units", len(units)),
		logger.Int("cached", res.FromCache),
		logger.Int("batches", len(batches)),
		logger.Int("concurrency", b.cfg.Concurrency))

	type batchResult struct {
		translations map[string]string
		missing      []Unit
		err          error
	}
	results := make([]batchResult, len(batches))

	sem := make(chan struct{}, b.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := res.FromCache
	total := len(units)
	if progress != nil {
		progress(completed, total)
	}

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []Unit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			translations, missing, err := b.translateBatch(ctx, batch, order)
			results[idx] = batchResult{translations: translations, missing: missing, err: err}

			mu.Lock()
			completed += len(batch)
			if progress != nil {
				progress(completed, total)
			}
			mu.Unlock()
		}(i, batch)
	}
	wg.Wait()

	var retryUnits []Unit
	for i, br := range results {
		if br.err != nil {
			if !isRetryableError(br.err) {
				return nil, br.err
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("batch %d failed: %v", i+1, br.err))
			retryUnits = append(retryUnits, batches[i]...)
			continue
		}
		for id, t := range br.translations {
			res.Translations[id] = t
			res.Translated++
		}
		retryUnits = append(retryUnits, br.missing...)
	}

	for _, u := range retryUnits {
		if err := ctx.Err(); err != nil {
			return nil, types.NewAppError(types.ErrTranslation, "translation cancelled", err)
		}
		translations, _, err := b.translateBatch(ctx, []Unit{u}, order)
		if err != nil && !isRetryableError(err) {
			return nil, err
		}
		if t, ok := translations[u.BlockID]; ok && err == nil {
			res.Translations[u.BlockID] = t
			res.Translated++
			continue
		}
		res.Missing = append(res.Missing, u.BlockID)
	}
	if len(res.Missing) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d block(s) were not translated and keep their original text", len(res.Missing)))
	}

	if cache != nil {
		for _, u := range units {
			if t, ok := res.Translations[u.BlockID]; ok {
				cache.Set(u.Text, t)
			}
		}
	}

	logger.Info("LLM translation finished",
		logger.Int("translated", res.Translated),
		logger.Int("cached", res.FromCache),
		logger.Int("missing", len(res.Missing)))
	return res, nil
}

// indexOrder builds the index -> block_id table the tagged parser needs.
func indexOrder(units []Unit) []string {
	maxIdx := -1
	for _, u := range units {
		if u.Index > maxIdx {
			maxIdx = u.Index
		}
	}
	order := make([]string, maxIdx+1)
	for _, u := range units {
		order[u.Index] = u.BlockID
	}
	return order
}

// translateBatch sends one batch and returns what came back for it plus
// the units the reply left out. Entries for units outside the batch are
// ignored.
func (b *BatchTranslator) translateBatch(ctx context.Context, batch []Unit, order []string) (map[string]string, []Unit, error) {
	reply, err := b.generate(ctx, batchText(batch))
	if err != nil {
		return nil, nil, err
	}

	parsed := exchange.Parse(reply, order)
	translations := make(map[string]string, len(batch))
	var missing []Unit
	for _, u := range batch {
		t, ok := parsed.Translations[u.BlockID]
		if !ok || strings.TrimSpace(t) == "" {
			missing = append(missing, u)
			continue
		}
		translations[u.BlockID] = t
	}
	if len(missing) > 0 {
		logger.Warn("model reply is missing units",
			logger.Int("batch", len(batch)),
			logger.Int("missing", len(missing)))
	}
	return translations, missing, nil
}

// generate calls the model with retries and exponential backoff.
func (b *BatchTranslator) generate(ctx context.Context, text string) (string, error) {
	messages := []*schema.Message{}
	if b.cfg.SystemPrompt != "" {
		messages = append(messages, schema.SystemMessage(b.cfg.SystemPrompt))
	}
	messages = append(messages, schema.UserMessage(text))

	var content string
	err := retry.Do(
		func() error {
			resp, err := b.model.Generate(ctx, messages)
			if err != nil {
				return classifyError(err)
			}
			// An empty reply leaves its units missing for the single-unit pass.
			if resp != nil {
				content = resp.Content
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(b.cfg.MaxRetries)),
		retry.Delay(b.cfg.RetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryableError),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("LLM request failed, retrying", logger.Int("attempt", int(n)+1), logger.Err(err))
		}),
	)
	if err != nil {
		return "", err
	}
	return content, nil
}

// classifyError wraps a model error with an error code.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(types.ErrTranslation, "translation cancelled", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return types.NewAppError(types.ErrAPIRateLimit, "API rate limit exceeded", err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid_api_key") || strings.Contains(msg, "incorrect api key"):
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API authentication failed", "invalid API key or unauthorized access", err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid_request"):
		return types.NewAppErrorWithDetails(types.ErrAPICall, "invalid API request", "request rejected", err)
	}
	return types.NewAppError(types.ErrAPICall, "API request failed", err)
}

// isRetryableError reports whether a request may succeed when repeated.
// Authentication failures, rejected requests and cancellation are final.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if types.HasCode(err, types.ErrTranslation) {
		return false
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrAPICall {
		if appErr.Message == "API authentication failed" || appErr.Message == "invalid API request" {
			return false
		}
	}
	return true
}
