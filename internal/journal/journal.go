package journal

// ============================================================================
// Generation journal
// Responsibilities:
// 1. Append one event per product outcome (append-only JSON lines)
// 2. Replay events in order so a resumed run can skip finished products
// 3. Rotate the file when a fresh run starts
// 4. Detect torn or edited lines through CRC32 checksums
// ============================================================================

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Journal is an append-only event log
type Journal struct {
	mu           sync.Mutex
	file         *os.File
	encoder      *json.Encoder
	path         string
	seq          uint64 // last assigned sequence number
	syncOnAppend bool
	now          func() time.Time
}

// Open creates or opens the journal at path. An existing file is scanned
// to continue its sequence numbering; a corrupted file is an error.
func Open(path string, syncOnAppend bool) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}

	var seq uint64
	if err := scan(path, func(e Event) error {
		seq = e.Seq
		return nil
	}); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Journal{
		file:         file,
		encoder:      json.NewEncoder(file),
		path:         path,
		seq:          seq,
		syncOnAppend: syncOnAppend,
		now:          time.Now,
	}, nil
}

// Append writes one event and returns it with its sequence number and
// checksum filled in
func (j *Journal) Append(rec Record) (Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return Event{}, ErrClosed
	}

	event := Event{
		Seq:       j.seq + 1,
		Type:      rec.Type,
		RunID:     rec.RunID,
		Product:   rec.Product,
		Task:      rec.Task,
		Error:     rec.Error,
		Timestamp: j.now().UnixMilli(),
	}
	event.Checksum = CalculateChecksum(event)

	if err := j.encoder.Encode(event); err != nil {
		return Event{}, fmt.Errorf("journal: append seq=%d: %w", event.Seq, err)
	}
	if j.syncOnAppend {
		if err := j.file.Sync(); err != nil {
			return Event{}, fmt.Errorf("journal: sync seq=%d: %w", event.Seq, err)
		}
	}
	j.seq = event.Seq
	return event, nil
}

// Replay calls handler for every event in file order, stopping at the
// first corrupted line, checksum failure or handler error
func (j *Journal) Replay(handler EventHandler) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return scan(j.path, handler)
}

// Generated returns the names of products whose latest event is GENERATED
func (j *Journal) Generated() (map[string]bool, error) {
	done := make(map[string]bool)
	err := j.Replay(func(e Event) error {
		done[e.Product] = e.Type == EventGenerated
		return nil
	})
	if err != nil {
		return nil, err
	}
	for name, ok := range done {
		if !ok {
			delete(done, name)
		}
	}
	return done, nil
}

// Rotate moves the current file aside with a timestamp suffix and starts
// an empty one. Sequence numbers restart at 1.
func (j *Journal) Rotate() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return "", ErrClosed
	}
	if err := j.file.Close(); err != nil {
		return "", err
	}

	backupPath := j.path + "." + j.now().Format("20060102_150405.000")
	if err := os.Rename(j.path, backupPath); err != nil {
		return "", fmt.Errorf("failed to rotate journal: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		j.file = nil
		return "", fmt.Errorf("failed to reopen journal: %w", err)
	}
	j.file = file
	j.encoder = json.NewEncoder(file)
	j.seq = 0
	return backupPath, nil
}

// LastSeq returns the last assigned sequence number
func (j *Journal) LastSeq() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.path
}

// Close syncs and closes the file. A closed journal cannot be reused.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	syncErr := j.file.Sync()
	closeErr := j.file.Close()
	j.file = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// scan reads path line by line, verifying each event
func scan(path string, handler EventHandler) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var offset int64
	for line := 1; ; line++ {
		raw, readErr := r.ReadBytes('\n')
		if len(bytes.TrimSpace(raw)) > 0 {
			var event Event
			if err := json.Unmarshal(raw, &event); err != nil {
				return &CorruptionError{Line: line, Offset: offset, Cause: err}
			}
			if expected := CalculateChecksum(event); expected != event.Checksum {
				return &ChecksumError{Seq: event.Seq, Expected: expected, Actual: event.Checksum}
			}
			if err := handler(event); err != nil {
				return err
			}
		}
		offset += int64(len(raw))

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read journal: %w", readErr)
		}
	}
}
