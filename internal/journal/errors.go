package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupted means a journal line could not be decoded
	ErrCorrupted = errors.New("journal: file is corrupted")

	// ErrChecksumMismatch means an event's content does not match its checksum
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")

	// ErrClosed means the journal was used after Close
	ErrClosed = errors.New("journal: already closed")
)

// ChecksumError reports the event whose checksum failed
type ChecksumError struct {
	Seq      uint64
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("journal: checksum mismatch at seq=%d (expected=0x%08x, got=0x%08x)", e.Seq, e.Expected, e.Actual)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// CorruptionError reports where an undecodable line starts
type CorruptionError struct {
	Line   int   // 1-based line number
	Offset int64 // byte offset of the line
	Cause  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("journal: corrupted line %d at offset %d: %v", e.Line, e.Offset, e.Cause)
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupted
}

func (e *CorruptionError) Unwrap() error {
	return e.Cause
}
