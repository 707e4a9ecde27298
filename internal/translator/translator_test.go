package translator

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

var unitRe = regexp.MustCompile(`<(\d+)>(.*?)</(\d+)>`)

// fakeModel upper-cases every tagged unit of the user message, keeping
// escaped newlines intact. Units whose text is listed in drop are left out
// of the reply; empty makes every reply blank.
type fakeModel struct {
	mu      sync.Mutex
	calls   int
	system  []string
	drop    map[string]bool
	empty   bool
	failFor int // fail the first failFor calls with failErr
	failErr error
}

func (m *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	for _, msg := range input {
		if msg.Role == schema.System {
			m.system = append(m.system, msg.Content)
		}
	}
	m.mu.Unlock()

	if call <= m.failFor {
		return nil, m.failErr
	}

	if m.empty {
		return schema.AssistantMessage("", nil), nil
	}
	user := input[len(input)-1].Content
	var out []string
	for _, match := range unitRe.FindAllStringSubmatch(user, -1) {
		if m.drop[match[2]] {
			continue
		}
		out = append(out, "<"+match[1]+">"+upperKeepingEscapes(match[2])+"</"+match[1]+">")
	}
	return schema.AssistantMessage(strings.Join(out, "\n"), nil), nil
}

func upperKeepingEscapes(s string) string {
	parts := strings.Split(s, `\n`)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, `\n`)
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testUnits() []Unit {
	return []Unit{
		{Index: 0, BlockID: "page1_b0", Text: "hello"},
		{Index: 1, BlockID: "page1_b1", Text: "two\nlines"},
		{Index: 2, BlockID: "page2_b0", Text: "world"},
	}
}

func testConfig() Config {
	return Config{ContextWindow: 4000, Concurrency: 2, MaxRetries: 3, RetryDelay: time.Millisecond, SystemPrompt: "Translate to Hindi"}
}

func TestMergeBatches(t *testing.T) {
	units := []Unit{
		{Index: 0, Text: strings.Repeat("a", 10)},
		{Index: 1, Text: strings.Repeat("b", 10)},
		{Index: 2, Text: strings.Repeat("c", 60)},
		{Index: 3, Text: strings.Repeat("d", 10)},
	}
	// "<0>aaaaaaaaaa</0>" is 17 characters.
	batches := MergeBatches(units, 40)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1, "an oversized unit gets its own batch")
	assert.Len(t, batches[2], 1)

	total := 0
	for _, b := range batches {
		total += len(b)
		if len(b) > 1 {
			assert.LessOrEqual(t, len(batchText(b)), 40)
		}
	}
	assert.Equal(t, len(units), total)
	assert.Nil(t, MergeBatches(nil, 40))
}

func TestUnitsFromLayout(t *testing.T) {
	doc := &pdf.Document{
		Pages: []pdf.Page{
			{PageNumber: 1, Blocks: []pdf.TextBlock{{BlockID: "page1_b0", Text: "A"}, {BlockID: "page1_b1", Text: "B"}}},
			{PageNumber: 2, Blocks: []pdf.TextBlock{{BlockID: "page2_b0", Text: "C"}}},
		},
		BlockOrder: []string{"page1_b0", "page1_b1", "page2_b0"},
	}
	units := UnitsFromLayout(doc)
	require.Len(t, units, 3)
	assert.Equal(t, Unit{Index: 2, BlockID: "page2_b0", Text: "C"}, units[2])
}

func TestTranslate(t *testing.T) {
	m := &fakeModel{}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	var progress []int
	res, err := tr.Translate(context.Background(), testUnits(), nil, func(done, total int) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"page1_b0": "HELLO",
		"page1_b1": "TWO\nLINES",
		"page2_b0": "WORLD",
	}, res.Translations)
	assert.Equal(t, 3, res.Translated)
	assert.Equal(t, 1, res.Batches)
	assert.Empty(t, res.Missing)
	assert.Equal(t, 3, progress[len(progress)-1])
	assert.Equal(t, []string{"Translate to Hindi"}, m.system)
}

func TestTranslateUsesCache(t *testing.T) {
	cache := pdf.NewTranslationCache(filepath.Join(t.TempDir(), "cache.json"), "Hindi")
	m := &fakeModel{}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	_, err := tr.Translate(context.Background(), testUnits(), cache, nil)
	require.NoError(t, err)
	require.Equal(t, 1, m.callCount())
	assert.Equal(t, 3, cache.Size())

	res, err := tr.Translate(context.Background(), testUnits(), cache, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.callCount(), "cached units are not sent again")
	assert.Equal(t, 3, res.FromCache)
	assert.Equal(t, "WORLD", res.Translations["page2_b0"])
}

func TestTranslateRetriesUnitsMissingFromReply(t *testing.T) {
	m := &fakeModel{drop: map[string]bool{"world": true}}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	res, err := tr.Translate(context.Background(), testUnits(), nil, nil)
	require.NoError(t, err)

	// The batch drops "world"; the single-unit retry drops it again.
	assert.Equal(t, []string{"page2_b0"}, res.Missing)
	assert.NotContains(t, res.Translations, "page2_b0")
	assert.Equal(t, 2, m.callCount())
	assert.NotEmpty(t, res.Warnings)
}

func TestTranslateEmptyReplyIsNotRetriedAsAnError(t *testing.T) {
	m := &fakeModel{empty: true}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	res, err := tr.Translate(context.Background(), testUnits(), nil, nil)
	require.NoError(t, err)

	// One batch call, then one single-unit call per unit; no backoff retries.
	assert.Equal(t, 1+len(testUnits()), m.callCount())
	assert.ElementsMatch(t, []string{"page1_b0", "page1_b1", "page2_b0"}, res.Missing)
	assert.Empty(t, res.Translations)
}

func TestTranslateRetriesTransientErrors(t *testing.T) {
	m := &fakeModel{failFor: 2, failErr: errors.New("error, status code: 503, message: overloaded")}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	res, err := tr.Translate(context.Background(), testUnits(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, m.callCount())
	assert.Len(t, res.Translations, 3)
}

func TestTranslateStopsOnAuthError(t *testing.T) {
	m := &fakeModel{failFor: 100, failErr: errors.New("error, status code: 401, message: Incorrect API key provided")}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	_, err := tr.Translate(context.Background(), testUnits(), nil, nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrAPICall))
	assert.Equal(t, 1, m.callCount(), "authentication errors are not retried")
}

func TestTranslateSkipsBlankUnits(t *testing.T) {
	m := &fakeModel{}
	tr := NewBatchTranslatorWithModel(m, testConfig())

	res, err := tr.Translate(context.Background(), []Unit{{Index: 0, BlockID: "page1_b0", Text: "  "}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.callCount())
	assert.Empty(t, res.Translations)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg       string
		code      types.ErrorCode
		retryable bool
	}{
		{"status code: 429, rate limit reached", types.ErrAPIRateLimit, true},
		{"status code: 401, unauthorized", types.ErrAPICall, false},
		{"status code: 400, invalid_request_error", types.ErrAPICall, false},
		{"dial tcp: connection refused", types.ErrAPICall, true},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := classifyError(errors.New(tt.msg))
			assert.True(t, types.HasCode(err, tt.code))
			assert.Equal(t, tt.retryable, isRetryableError(err))
		})
	}

	cancelled := classifyError(context.Canceled)
	assert.False(t, isRetryableError(cancelled))
	assert.ErrorIs(t, cancelled, context.Canceled)
}

func TestNewBatchTranslatorRequiresKey(t *testing.T) {
	_, err := NewBatchTranslator(context.Background(), Config{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrConfig))
}
