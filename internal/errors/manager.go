// Package errors keeps the failure ledger of batch runs: one record per
// document that could not be processed, with the stage it failed in.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorStage is the step a document failed in.
type ErrorStage string

const (
	StageExtract   ErrorStage = "extract"   // layout extraction
	StageTranslate ErrorStage = "translate" // LLM translation
	StageMerge     ErrorStage = "merge"     // rebuild with translations
	StageVerify    ErrorStage = "verify"    // page count or dimension check
	StageTimeout   ErrorStage = "timeout"   // per-document deadline exceeded
)

// ledgerFile is the file name inside the ledger directory.
const ledgerFile = "failures.json"

// ErrorRecord is one failed document.
type ErrorRecord struct {
	ID         string     `json:"id"`    // entry id, stable across retries
	Input      string     `json:"input"` // document path
	RunID      string     `json:"run_id,omitempty"`
	Stage      ErrorStage `json:"stage"`
	ErrorMsg   string     `json:"error_msg"`
	Timestamp  time.Time  `json:"timestamp"`
	CanRetry   bool       `json:"can_retry"`
	RetryCount int        `json:"retry_count"`
	LastRetry  time.Time  `json:"last_retry,omitempty"`
}

// ErrorManager is the failure ledger. Records are keyed by input path.
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord
}

// NewErrorManager opens the ledger in baseDir, or ~/.pdft/state when empty.
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".pdft", "state")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		errors:  make(map[string]*ErrorRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// RecordError records a failure of input. A document that already failed
// keeps its entry id and retry count.
func (em *ErrorManager) RecordError(input, runID string, stage ErrorStage, errorMsg string) (*ErrorRecord, error) {
	em.mu.Lock()
	defer em.mu.Unlock()

	record := &ErrorRecord{
		ID:        uuid.NewString(),
		Input:     input,
		RunID:     runID,
		Stage:     stage,
		ErrorMsg:  errorMsg,
		Timestamp: time.Now(),
		CanRetry:  stage != StageVerify,
	}
	if existing, ok := em.errors[input]; ok {
		record.ID = existing.ID
		record.RetryCount = existing.RetryCount
		record.LastRetry = existing.LastRetry
	}
	em.errors[input] = record

	recordCopy := *record
	return &recordCopy, em.save()
}

// IncrementRetry counts another attempt at input.
func (em *ErrorManager) IncrementRetry(input string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if record, ok := em.errors[input]; ok {
		record.RetryCount++
		record.LastRetry = time.Now()
		return em.save()
	}
	return fmt.Errorf("error record not found: %s", input)
}

// RemoveError drops the record of input after it succeeded.
func (em *ErrorManager) RemoveError(input string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[input]; !ok {
		return nil
	}
	delete(em.errors, input)
	return em.save()
}

// ListErrors returns copies of every record, oldest first.
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].Input < records[j].Input
	})
	return records
}

// GetError returns a copy of the record of input.
func (em *ErrorManager) GetError(input string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[input]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// Retryable lists the inputs whose failures may be retried.
func (em *ErrorManager) Retryable() []string {
	var inputs []string
	for _, r := range em.ListErrors() {
		if r.CanRetry {
			inputs = append(inputs, r.Input)
		}
	}
	return inputs
}

// ClearAll empties the ledger.
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

func (em *ErrorManager) load() error {
	filePath := filepath.Join(em.baseDir, ledgerFile)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	for _, record := range records {
		em.errors[record.Input] = record
	}
	return nil
}

func (em *ErrorManager) save() error {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Input < records[j].Input })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	filePath := filepath.Join(em.baseDir, ledgerFile)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

// ExportInputs writes the failed inputs to outputPath, one per line, so
// they can be fed back to the batch command.
func (em *ErrorManager) ExportInputs(outputPath string) error {
	records := em.ListErrors()
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Input)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write inputs file: %w", err)
	}
	return nil
}

// GetStageDisplayName returns a human label for stage.
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageExtract:
		return "Extraction"
	case StageTranslate:
		return "Translation"
	case StageMerge:
		return "Merge"
	case StageVerify:
		return "Verification"
	case StageTimeout:
		return "Timeout"
	default:
		return string(stage)
	}
}
