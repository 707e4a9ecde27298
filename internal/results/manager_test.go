package results

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewResultManager(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "runs")

	if _, err := NewResultManager(dir); err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected %s to be created", dir)
	}
}

func TestStartAndFinish(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewResultManager(filepath.Join(tempDir, "runs"))
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}

	input := filepath.Join(tempDir, "doc.pdf")
	if err := os.WriteFile(input, []byte("%PDF-1.4 test"), 0644); err != nil {
		t.Fatal(err)
	}

	rec, err := manager.Start("extract", input, "direct")
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	if rec.ID == "" || rec.Status != StatusRunning {
		t.Fatalf("Unexpected running record: %+v", rec)
	}
	if len(rec.InputHash) != 64 {
		t.Errorf("Expected a SHA-256 hex hash, got %q", rec.InputHash)
	}

	rec.Blocks = 12
	if err := manager.Finish(rec, nil); err != nil {
		t.Fatalf("Failed to finish run: %v", err)
	}

	loaded, err := manager.Load(rec.ID)
	if err != nil {
		t.Fatalf("Failed to load run: %v", err)
	}
	if loaded.Status != StatusComplete {
		t.Errorf("Expected status complete, got %s", loaded.Status)
	}
	if loaded.Blocks != 12 {
		t.Errorf("Expected 12 blocks, got %d", loaded.Blocks)
	}
	if loaded.FinishedAt.Before(loaded.StartedAt) {
		t.Error("Finish time is before start time")
	}
}

func TestFinishStatus(t *testing.T) {
	manager, err := NewResultManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		warnings []string
		err      error
		want     RunStatus
	}{
		{"clean", nil, nil, StatusComplete},
		{"warnings", []string{"block page1_b0 clamped"}, nil, StatusDegraded},
		{"failed", nil, errors.New("cannot parse PDF"), StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := manager.Start("merge", "missing.pdf", "direct")
			if err != nil {
				t.Fatal(err)
			}
			if rec.InputHash != "" {
				t.Errorf("Expected no hash for a missing file, got %q", rec.InputHash)
			}
			rec.Warnings = tt.warnings
			if err := manager.Finish(rec, tt.err); err != nil {
				t.Fatal(err)
			}
			if rec.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, rec.Status)
			}
			if tt.err != nil && rec.Error != tt.err.Error() {
				t.Errorf("Expected error %q, got %q", tt.err.Error(), rec.Error)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewResultManager(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := &RunRecord{ID: id, Command: "extract", Status: StatusComplete, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := manager.Save(rec); err != nil {
			t.Fatal(err)
		}
	}
	// Garbage is skipped.
	if err := os.WriteFile(filepath.Join(tempDir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[0].ID != "c" || records[2].ID != "a" {
		t.Errorf("Expected newest first, got %s..%s", records[0].ID, records[2].ID)
	}

	if err := manager.Delete("b"); err != nil {
		t.Fatal(err)
	}
	records, _ = manager.List()
	if len(records) != 2 {
		t.Errorf("Expected 2 records after delete, got %d", len(records))
	}
}

func TestFindByHash(t *testing.T) {
	manager, err := NewResultManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	for _, rec := range []*RunRecord{
		{ID: "1", Command: "merge", InputHash: "h", Status: StatusError, StartedAt: now.Add(2 * time.Minute)},
		{ID: "2", Command: "merge", InputHash: "h", Status: StatusDegraded, StartedAt: now.Add(time.Minute)},
		{ID: "3", Command: "extract", InputHash: "h", Status: StatusComplete, StartedAt: now.Add(3 * time.Minute)},
	} {
		if err := manager.Save(rec); err != nil {
			t.Fatal(err)
		}
	}

	found, err := manager.FindByHash("merge", "h")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != "2" {
		t.Fatalf("Expected run 2, got %+v", found)
	}

	found, err = manager.FindByHash("merge", "other")
	if err != nil || found != nil {
		t.Errorf("Expected nothing, got %+v, %v", found, err)
	}
}

func TestExportYAML(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewResultManager(filepath.Join(tempDir, "runs"))
	if err != nil {
		t.Fatal(err)
	}
	if err := manager.Save(&RunRecord{ID: "x1", Command: "verify", Input: "a.pdf", Status: StatusComplete, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(tempDir, "runs.yaml")
	if err := manager.ExportYAML(out); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"id: x1", "command: verify", "input: a.pdf"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected export to contain %q, got:\n%s", want, data)
		}
	}
}

func TestCalculateFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	hash, err := CalculateFileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if hash != want {
		t.Errorf("Expected %s, got %s", want, hash)
	}
	if _, err := CalculateFileHash(path + ".missing"); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
