package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metadata for a single rotation run
type Metadata struct {
	RunID          string        `json:"run_id"`
	Status         string        `json:"status"`
	FailedStage    Stage         `json:"failed_stage,omitempty"`
	FailureKind    string        `json:"failure_kind,omitempty"`
	Error          string        `json:"error,omitempty"`
	Backup         string        `json:"backup,omitempty"`
	FileName       string        `json:"file_name,omitempty"`
	RemoteURL      string        `json:"remote_url,omitempty"`
	Compressed     bool          `json:"compressed,omitempty"`
	Checksum       string        `json:"xxhash,omitempty"`
	SizeBytes      int64         `json:"size_bytes"`
	Deleted        int           `json:"deleted"`
	DeleteFailures int           `json:"delete_failures"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"`
	Duration       time.Duration `json:"duration_ns"`
}

// Load reads a run record written by Write.
func (m *Metadata) Load(filePath string) error {
	jsonFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("couldn't open run record %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	decoder := json.NewDecoder(jsonFile)
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decode run record JSON: %w", err)
	}
	return nil
}

// Write replaces the run record at filePath.
func (m *Metadata) Write(filePath string) error {
	if err := EnsureDirectoryExist(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure run record directory: %w", err)
	}

	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create run record %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("encode run record JSON: %w", err)
	}
	return nil
}
