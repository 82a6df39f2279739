package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal", "journal.log"), false)
	require.NoError(t, err, "Failed to open journal")
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndReplay(t *testing.T) {
	j := openTemp(t)

	_, err := j.Append(Record{Type: EventGenerated, RunID: "r1", Product: "A", Task: "L0_Slicer"})
	require.NoError(t, err)
	_, err = j.Append(Record{Type: EventFailed, RunID: "r1", Product: "B", Task: "L0_Slicer", Error: "context deadline exceeded"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), j.LastSeq())

	var events []Event
	require.NoError(t, j.Replay(func(e Event) error {
		events = append(events, e)
		return nil
	}))

	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, EventGenerated, events[0].Type)
	assert.Equal(t, "B", events[1].Product)
	assert.Equal(t, "context deadline exceeded", events[1].Error)
	for _, e := range events {
		assert.True(t, VerifyChecksum(e), "seq %d", e.Seq)
	}
}

func TestOpen_ContinuesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	j, err := Open(path, true)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := j.Append(Record{Type: EventGenerated, Product: "P"})
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())

	j, err = Open(path, true)
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, uint64(3), j.LastSeq())

	e, err := j.Append(Record{Type: EventGenerated, Product: "Q"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.Seq)
}

func TestGenerated_LatestEventWins(t *testing.T) {
	j := openTemp(t)

	for _, rec := range []Record{
		{Type: EventFailed, Product: "A"},
		{Type: EventGenerated, Product: "A"},
		{Type: EventGenerated, Product: "B"},
		{Type: EventFailed, Product: "B"},
		{Type: EventGenerated, Product: "C"},
	} {
		_, err := j.Append(rec)
		require.NoError(t, err)
	}

	done, err := j.Generated()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "C": true}, done)
}

func TestReplay_DetectsChecksumMismatch(t *testing.T) {
	j := openTemp(t)
	_, err := j.Append(Record{Type: EventGenerated, Product: "ORIGINAL"})
	require.NoError(t, err)

	data, err := os.ReadFile(j.Path())
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "ORIGINAL", "TAMPERED", 1)
	require.NoError(t, os.WriteFile(j.Path(), []byte(tampered), 0644))

	err = j.Replay(func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	var ce *ChecksumError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, uint64(1), ce.Seq)
	assert.Contains(t, ce.Error(), "seq=1")
}

func TestReplay_DetectsCorruptedLine(t *testing.T) {
	j := openTemp(t)
	_, err := j.Append(Record{Type: EventGenerated, Product: "A"})
	require.NoError(t, err)

	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"seq\":2,\"type\":\"GENER")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = j.Replay(func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrCorrupted)

	var ce *CorruptionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Line)
	assert.Greater(t, ce.Offset, int64(0))

	_, err = Open(j.Path(), false)
	assert.ErrorIs(t, err, ErrCorrupted, "a corrupted journal cannot be reopened")
}

func TestReplay_StopsOnHandlerError(t *testing.T) {
	j := openTemp(t)
	for i := 0; i < 3; i++ {
		_, err := j.Append(Record{Type: EventGenerated, Product: "P"})
		require.NoError(t, err)
	}

	boom := errors.New("boom")
	calls := 0
	err := j.Replay(func(Event) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRotate(t *testing.T) {
	j := openTemp(t)
	_, err := j.Append(Record{Type: EventGenerated, Product: "OLD"})
	require.NoError(t, err)

	backup, err := j.Rotate()
	require.NoError(t, err)
	assert.FileExists(t, backup)
	assert.Equal(t, uint64(0), j.LastSeq())

	e, err := j.Append(Record{Type: EventGenerated, Product: "NEW"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Seq)

	done, err := j.Generated()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"NEW": true}, done)
}

func TestClose(t *testing.T) {
	j := openTemp(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "second close is a no-op")

	_, err := j.Append(Record{Type: EventGenerated})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = j.Rotate()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentAppends(t *testing.T) {
	j := openTemp(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 10; k++ {
				_, err := j.Append(Record{Type: EventGenerated, Product: "P"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	var last uint64
	count := 0
	require.NoError(t, j.Replay(func(e Event) error {
		assert.Equal(t, last+1, e.Seq, "sequence is gap-free")
		last = e.Seq
		count++
		return nil
	}))
	assert.Equal(t, 200, count)
}
