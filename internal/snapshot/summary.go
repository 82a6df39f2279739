package snapshot

// ============================================================================
// Run summary snapshot
// Responsibilities:
// 1. Serialize the outcome of one processor run to a JSON file
// 2. Write atomically (temp file + rename) so readers never see half a file
// 3. Check the schema version on load
// 4. Keep a bounded number of previous summaries as timestamped backups
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ChuLiYu/procsim/pkg/types"
)

// SchemaVersion is the only summary layout Load accepts
const SchemaVersion = 1

const backupLayout = "20060102_150405.000"

var (
	ErrCorruptedSnapshot   = errors.New("snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("snapshot schema version is incompatible")
	ErrSnapshotNotFound    = errors.New("snapshot file not found")
)

// Summary is what one run produced
type Summary struct {
	SchemaVer  int           `json:"schema_version"`
	RunID      string        `json:"run_id"`
	JobOrder   string        `json:"job_order"`
	Mission    string        `json:"mission"`
	Resumed    bool          `json:"resumed"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Tasks      []TaskSummary `json:"tasks"`
	LastSeq    uint64        `json:"last_seq"` // journal sequence at the end of the run
}

// TaskSummary counts the products of one job-order task
type TaskSummary struct {
	Name      string               `json:"name"`
	Window    types.Window         `json:"window"`
	Planned   int                  `json:"planned"`
	Generated int                  `json:"generated"`
	Skipped   int                  `json:"skipped"` // already generated by an earlier run
	Failed    int                  `json:"failed"`
	Statuses  map[types.Status]int `json:"statuses,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
}

// Duration is how long the run took
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Totals sums generated, skipped and failed over every task
func (s Summary) Totals() (generated, skipped, failed int) {
	for _, t := range s.Tasks {
		generated += t.Generated
		skipped += t.Skipped
		failed += t.Failed
	}
	return generated, skipped, failed
}

// Manager reads and writes the summary file
type Manager struct {
	path string
	mu   sync.Mutex
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Write replaces the summary atomically
func (m *Manager) Write(s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(s)
}

func (m *Manager) write(s Summary) error {
	s.SchemaVer = SchemaVersion

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// Load reads the summary. A missing file is ErrSnapshotNotFound.
func (m *Manager) Load() (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Summary
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, fmt.Errorf("%w: %s", ErrSnapshotNotFound, m.path)
		}
		return s, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if s.SchemaVer != SchemaVersion {
		return s, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, s.SchemaVer, SchemaVersion)
	}
	return s, nil
}

// WriteWithBackup moves the current summary aside as
// <path>.<timestamp> before writing, then prunes all but the newest
// keepBackups backups. keepBackups <= 0 keeps every backup.
func (m *Manager) WriteWithBackup(s Summary, keepBackups int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exists() {
		backup := fmt.Sprintf("%s.%s", m.path, time.Now().Format(backupLayout))
		if err := os.Rename(m.path, backup); err != nil {
			return fmt.Errorf("failed to backup old snapshot: %w", err)
		}
	}
	if err := m.write(s); err != nil {
		return err
	}
	if keepBackups > 0 {
		return m.prune(keepBackups)
	}
	return nil
}

// Backups lists the backup files, oldest first
func (m *Manager) Backups() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backups()
}

func (m *Manager) backups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(m.path))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dir: %w", err)
	}
	prefix := filepath.Base(m.path) + "."
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".tmp") {
			continue
		}
		out = append(out, filepath.Join(filepath.Dir(m.path), name))
	}
	// the timestamp suffix sorts lexically
	sort.Strings(out)
	return out, nil
}

func (m *Manager) prune(keep int) error {
	backups, err := m.backups()
	if err != nil {
		return err
	}
	for len(backups) > keep {
		if err := os.Remove(backups[0]); err != nil {
			return fmt.Errorf("failed to prune snapshot backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}

// Exists reports whether the summary file exists
func (m *Manager) Exists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists()
}

func (m *Manager) exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// GetPath returns the summary file path
func (m *Manager) GetPath() string {
	return m.path
}
