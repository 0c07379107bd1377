// Package manifest appends the machine-readable run log: one JSON line
// per output file attempt, preceded by a run header. The stream is
// append-only so successive runs over the same workspace accumulate into
// one auditable history.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status classifies one record.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Record is one output attempt: a written file, an intentional skip, or
// a failure.
type Record struct {
	Type      string      `json:"type"` // always "unit"
	Time      time.Time   `json:"time"`
	Op        string      `json:"op"`
	Sources   []string    `json:"sources"`
	Output    string      `json:"output,omitempty"`
	Channels  []string    `json:"channels,omitempty"`
	DType     string      `json:"dtype,omitempty"`
	BigTIFF   bool        `json:"bigtiff,omitempty"`
	Scenes    []SceneSkip `json:"scenes_skipped,omitempty"`
	Status    Status      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Bytes     int64       `json:"bytes,omitempty"`
	DryRun    bool        `json:"dry_run,omitempty"`
	ElapsedMS int64       `json:"elapsed_ms"`
}

// SceneSkip records one scene left out of a container's outputs.
type SceneSkip struct {
	Scene  int    `json:"scene"`
	Reason string `json:"reason"`
}

// header opens every run in the stream.
type header struct {
	Type    string    `json:"type"` // always "run"
	RunID   string    `json:"run_id"`
	Started time.Time `json:"started"`
	Command []string  `json:"command"`
	Version string    `json:"version"`
}

// Appender writes records to one manifest file. Safe for concurrent use
// by pipeline workers.
type Appender struct {
	mu    sync.Mutex
	f     *os.File
	enc   *json.Encoder
	runID string
}

// Open appends a new run header to the manifest at path, creating the
// file and its directory as needed.
func Open(path string, command []string, version string) (*Appender, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	a := &Appender{f: f, enc: json.NewEncoder(f), runID: uuid.NewString()}
	if err := a.enc.Encode(header{
		Type:    "run",
		RunID:   a.runID,
		Started: time.Now().UTC(),
		Command: command,
		Version: version,
	}); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

// RunID returns the identifier written in this run's header.
func (a *Appender) RunID() string { return a.runID }

// Append writes one record. A zero Time is stamped with the current UTC
// time.
func (a *Appender) Append(r Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	r.Type = "unit"
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}
	return a.enc.Encode(r)
}

// Close flushes the stream to disk.
func (a *Appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.f.Sync(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}
