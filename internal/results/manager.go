// Package results stores run records: one JSON file per extract, translate,
// merge or batch step, keyed by a run id.
package results

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	// StatusRunning is written when a run starts
	StatusRunning RunStatus = "running"
	// StatusComplete means the run produced its output
	StatusComplete RunStatus = "complete"
	// StatusDegraded means output was produced with warnings
	StatusDegraded RunStatus = "degraded"
	// StatusError means the run failed
	StatusError RunStatus = "error"
)

// RunRecord describes one command applied to one document.
type RunRecord struct {
	ID         string        `json:"id" yaml:"id"`
	Command    string        `json:"command" yaml:"command"`
	Input      string        `json:"input" yaml:"input"`
	InputHash  string        `json:"input_hash,omitempty" yaml:"input_hash,omitempty"` // SHA-256 of the input file
	Pipeline   string        `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Output     string        `json:"output,omitempty" yaml:"output,omitempty"`
	Status     RunStatus     `json:"status" yaml:"status"`
	Pages      int           `json:"pages,omitempty" yaml:"pages,omitempty"`
	Blocks     int           `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Warnings   []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ResultManager keeps run records in a directory.
type ResultManager struct {
	baseDir string
}

// NewResultManager opens the store in baseDir, or ~/.pdft/runs when empty.
func NewResultManager(baseDir string) (*ResultManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".pdft", "runs")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ResultManager{baseDir: baseDir}, nil
}

// Start creates and saves a running record for input. The input hash is
// filled when the file is readable.
func (m *ResultManager) Start(command, input, pipeline string) (*RunRecord, error) {
	rec := &RunRecord{
		ID:        uuid.NewString(),
		Command:   command,
		Input:     input,
		Pipeline:  pipeline,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if hash, err := CalculateFileHash(input); err == nil {
		rec.InputHash = hash
	}
	return rec, m.Save(rec)
}

// Finish stamps the record with its outcome and saves it. Warnings turn a
// successful run into a degraded one.
func (m *ResultManager) Finish(rec *RunRecord, runErr error) error {
	rec.FinishedAt = time.Now().UTC()
	rec.Duration = rec.FinishedAt.Sub(rec.StartedAt)
	switch {
	case runErr != nil:
		rec.Status = StatusError
		rec.Error = runErr.Error()
	case len(rec.Warnings) > 0:
		rec.Status = StatusDegraded
	default:
		rec.Status = StatusComplete
	}
	return m.Save(rec)
}

func (m *ResultManager) recordPath(id string) string {
	return filepath.Join(m.baseDir, id+".json")
}

// Save writes rec.
func (m *ResultManager) Save(rec *RunRecord) error {
	if rec.ID == "" {
		return os.ErrInvalid
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.recordPath(rec.ID), data, 0644)
}

// Load reads the record with id.
func (m *ResultManager) Load(id string) (*RunRecord, error) {
	data, err := os.ReadFile(m.recordPath(id))
	if err != nil {
		return nil, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record, newest first. Unreadable files are skipped.
func (m *ResultManager) List() ([]*RunRecord, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*RunRecord{}, nil
		}
		return nil, err
	}

	records := []*RunRecord{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.ID == "" {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// Delete removes the record with id.
func (m *ResultManager) Delete(id string) error {
	return os.RemoveAll(m.recordPath(id))
}

// FindByHash returns the newest completed run of command on a file with
// the given content hash, or nil.
func (m *ResultManager) FindByHash(command, hash string) (*RunRecord, error) {
	records, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Command == command && rec.InputHash == hash && rec.Status != StatusError && rec.Status != StatusRunning {
			return rec, nil
		}
	}
	return nil, nil
}

// ExportYAML writes every record to path as a YAML list.
func (m *ResultManager) ExportYAML(path string) error {
	records, err := m.List()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal run records: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// CalculateFileHash returns the hex SHA-256 of a file's content.
func CalculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
