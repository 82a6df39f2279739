package orbit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const period = 25 * time.Second

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(Config{ANX: []time.Time{epoch}, Period: 0})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewTable(Config{ANX: []time.Time{epoch}, Period: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewTable(Config{Period: period})
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestNewTable_SortsAndDeduplicates(t *testing.T) {
	tbl, err := NewTable(Config{
		ANX:    []time.Time{at(50), at(0), at(25), at(0), at(50)},
		Period: period,
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{at(0), at(25), at(50)}, tbl.Entries())
	assert.Equal(t, 3, tbl.Len())

	first, last := tbl.Span()
	assert.Equal(t, at(0), first)
	assert.Equal(t, at(50), last)
}

func TestNearestPrecedingANX(t *testing.T) {
	// drifted second crossing: adjacent entries need not be one period apart
	tbl, err := NewTable(Config{ANX: []time.Time{at(0), at(25.5), at(50)}, Period: period})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query time.Time
		want  time.Time
	}{
		{"exact first entry", at(0), at(0)},
		{"inside first orbit", at(12), at(0)},
		{"just before drifted entry", at(25.4), at(0)},
		{"exact drifted entry", at(25.5), at(25.5)},
		{"after last entry", at(1000), at(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.NearestPrecedingANX(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNearestPrecedingANX_NotFound(t *testing.T) {
	tbl, err := NewTable(Config{ANX: []time.Time{at(0)}, Period: period})
	require.NoError(t, err)

	_, err = tbl.NearestPrecedingANX(at(-0.001))
	assert.ErrorIs(t, err, ErrNoANX)
	assert.Equal(t, 1, tbl.Len(), "lookup must not extend a non-extrapolating table")
}

func TestNearestPrecedingANX_ExtrapolatesForward(t *testing.T) {
	tbl, err := NewTable(Config{ANX: []time.Time{at(0)}, Period: period, Extrapolate: true})
	require.NoError(t, err)

	got, err := tbl.NearestPrecedingANX(at(2*25 + 3))
	require.NoError(t, err)
	assert.Equal(t, at(50), got)
	// extended until the last entry is at or after the query
	assert.Equal(t, []time.Time{at(0), at(25), at(50), at(75)}, tbl.Entries())
}

func TestNearestPrecedingANX_ExtrapolatesBackward(t *testing.T) {
	tbl, err := NewTable(Config{ANX: []time.Time{at(0)}, Period: period, Extrapolate: true, FirstOrbit: 10})
	require.NoError(t, err)

	got, err := tbl.NearestPrecedingANX(at(-26))
	require.NoError(t, err)
	assert.Equal(t, at(-50), got)

	orbit, err := tbl.AbsoluteOrbit(at(-26))
	require.NoError(t, err)
	assert.Equal(t, 8, orbit)

	orbit, err = tbl.AbsoluteOrbit(at(3))
	require.NoError(t, err)
	assert.Equal(t, 10, orbit)
}

func TestExtendToCover_KeepsExistingEntries(t *testing.T) {
	tbl, err := NewTable(Config{ANX: []time.Time{at(0), at(25.5)}, Period: period})
	require.NoError(t, err)

	require.NoError(t, tbl.ExtendToCover(at(-10), at(80)))

	// extrapolated entries are exactly one period from their neighbour
	assert.Equal(t, []time.Time{at(-25), at(0), at(25.5), at(50.5), at(75.5), at(100.5)}, tbl.Entries())

	// already covered: no change
	require.NoError(t, tbl.ExtendToCover(at(-25), at(100.5)))
	assert.Equal(t, 6, tbl.Len())

	first, last := tbl.Span()
	assert.False(t, first.After(at(-10)))
	assert.False(t, last.Before(at(80)))
}

func TestExtendToCover_Limit(t *testing.T) {
	tbl, err := NewTable(Config{ANX: []time.Time{at(0)}, Period: time.Second})
	require.NoError(t, err)

	err = tbl.ExtendToCover(at(0), at(float64(MaxExtrapolated)*2))
	assert.ErrorIs(t, err, ErrExtrapolationLimit)
	assert.Equal(t, 1, tbl.Len())
}

func TestTable_ConcurrentLookups(t *testing.T) {
	tbl, err := NewTable(Config{ANX: []time.Time{at(0)}, Period: period, Extrapolate: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := at(float64(i*25) + 1)
			got, err := tbl.NearestPrecedingANX(q)
			assert.NoError(t, err)
			assert.Equal(t, at(float64(i*25)), got)
		}(i)
	}
	wg.Wait()

	entries := tbl.Entries()
	assert.Len(t, entries, 33, "last entry at or after the latest query")
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, period, entries[i].Sub(entries[i-1]))
	}
}
