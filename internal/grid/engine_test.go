package grid

import (
	"errors"
	"testing"
	"time"

	"github.com/ChuLiYu/procsim/internal/orbit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Illustrative constants: 5 cells of 5s per 25s orbit, 1s overlaps, 2s minimum
var (
	epoch   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testCfg = Config{
		OrbitalPeriod: 25 * time.Second,
		Spacing:       5 * time.Second,
		OverlapStart:  time.Second,
		OverlapEnd:    time.Second,
		MinDuration:   2 * time.Second,
	}
)

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func newTestEngine(t *testing.T, extrapolate bool, anx ...time.Time) *Engine {
	t.Helper()
	if len(anx) == 0 {
		anx = []time.Time{at(0)}
	}
	table, err := orbit.NewTable(orbit.Config{ANX: anx, Period: testCfg.OrbitalPeriod, Extrapolate: extrapolate})
	require.NoError(t, err)
	engine, err := New(testCfg, table)
	require.NoError(t, err)
	return engine
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero period", func(c *Config) { c.OrbitalPeriod = 0 }},
		{"zero spacing", func(c *Config) { c.Spacing = 0 }},
		{"negative spacing", func(c *Config) { c.Spacing = -time.Second }},
		{"spacing longer than orbit", func(c *Config) { c.Spacing = 30 * time.Second }},
		{"spacing equal to orbit", func(c *Config) { c.Spacing = c.OrbitalPeriod }},
		{"negative overlap start", func(c *Config) { c.OverlapStart = -time.Second }},
		{"negative overlap end", func(c *Config) { c.OverlapEnd = -time.Second }},
		{"negative minimum", func(c *Config) { c.MinDuration = -time.Second }},
	}

	require.NoError(t, testCfg.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testCfg
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestCellsPerOrbit(t *testing.T) {
	assert.Equal(t, 5, testCfg.CellsPerOrbit())

	cfg := testCfg
	cfg.OrbitalPeriod = 5944*time.Second + 700*time.Millisecond
	cfg.Spacing = 62 * time.Second
	assert.Equal(t, 96, cfg.CellsPerOrbit(), "5944.7/62 = 95.88 rounds up")
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(testCfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	table, err := orbit.NewTable(orbit.Config{ANX: []time.Time{at(0)}, Period: 30 * time.Second})
	require.NoError(t, err)
	_, err = New(testCfg, table)
	assert.ErrorIs(t, err, ErrInvalidConfig, "period mismatch with table")

	bad := testCfg
	bad.Spacing = 0
	table, err = orbit.NewTable(orbit.Config{ANX: []time.Time{at(0)}, Period: bad.OrbitalPeriod})
	require.NoError(t, err)
	_, err = New(bad, table)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCellIndex(t *testing.T) {
	engine := newTestEngine(t, false)

	tests := []struct {
		t    float64
		want int
	}{
		{0, 1},
		{4.999, 1},
		{5, 2},
		{24.999, 5},
		{25, 1}, // wraps at the next (unlisted) crossing
		{57, 2}, // two orbits later, still anchored to the only ANX
	}
	for _, tt := range tests {
		got, err := engine.CellIndex(at(tt.t))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "t=%v", tt.t)
	}

	_, err := engine.CellIndex(at(-1))
	assert.ErrorIs(t, err, orbit.ErrNoANX)
}

func TestCellInterval(t *testing.T) {
	engine := newTestEngine(t, false)

	start, end, err := engine.CellInterval(at(7.5))
	require.NoError(t, err)
	assert.Equal(t, at(5), start)
	assert.Equal(t, at(10), end)

	// not wrapped: anchored to the true preceding ANX many cells later
	start, end, err = engine.CellInterval(at(57))
	require.NoError(t, err)
	assert.Equal(t, at(55), start)
	assert.Equal(t, at(60), end)

	_, _, err = engine.CellInterval(at(-3))
	assert.ErrorIs(t, err, orbit.ErrNoANX)
}

func TestCell_UsesDriftedANX(t *testing.T) {
	engine := newTestEngine(t, false, at(0), at(25.5))

	cell, err := engine.Cell(at(26))
	require.NoError(t, err)
	assert.Equal(t, 1, cell.Index)
	assert.Equal(t, at(25.5), cell.Start)
	assert.Equal(t, at(30.5), cell.End)

	cell, err = engine.Cell(at(25.2))
	require.NoError(t, err)
	assert.Equal(t, 1, cell.Index, "still in orbit 1, raw count 5 wraps")
	assert.Equal(t, at(25), cell.Start)
}

func TestCell_Extrapolates(t *testing.T) {
	engine := newTestEngine(t, true)

	cell, err := engine.Cell(at(-7))
	require.NoError(t, err)
	assert.Equal(t, 4, cell.Index)
	assert.Equal(t, at(-10), cell.Start)
	assert.Equal(t, at(-5), cell.End)
}

func TestCellIndexAgreesWithInterval(t *testing.T) {
	engine := newTestEngine(t, true)

	for ms := int64(-60000); ms <= 120000; ms += 777 {
		q := epoch.Add(time.Duration(ms) * time.Millisecond)

		start, end, err := engine.CellInterval(q)
		require.NoError(t, err)
		assert.Equal(t, testCfg.Spacing, end.Sub(start))
		assert.False(t, q.Before(start), "t=%s start=%s", q, start)
		assert.True(t, q.Before(end), "t=%s end=%s", q, end)

		want, err := engine.CellIndex(q)
		require.NoError(t, err)
		got, err := engine.CellIndex(start)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrInvalidConfig, ErrUnalignable, ErrDegenerateWindow, ErrWindowTooShort}
	for i, a := range all {
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(a, b))
		}
	}
}
