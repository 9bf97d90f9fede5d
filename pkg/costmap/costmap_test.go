package costmap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostMapGetSet(t *testing.T) {
	cm, err := New(5, 4, 1)
	require.NoError(t, err)

	testCases := []struct {
		name        string
		cell        Cell
		cost        uint8
		wantChanged bool
		wantErr     error
	}{
		{name: "first write changes", cell: NewCell(3, 2), cost: 255, wantChanged: true},
		{name: "same value is a no-op", cell: NewCell(3, 2), cost: 255, wantChanged: false},
		{name: "overwrite changes", cell: NewCell(3, 2), cost: 0, wantChanged: true},
		{name: "negative x", cell: NewCell(-1, 0), cost: 1, wantErr: ErrOutOfBounds},
		{name: "x == width", cell: NewCell(5, 0), cost: 1, wantErr: ErrOutOfBounds},
		{name: "y == height", cell: NewCell(0, 4), cost: 1, wantErr: ErrOutOfBounds},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := cm.Set(tt.cell, tt.cost)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				_, err = cm.Get(tt.cell)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			got, err := cm.Get(tt.cell)
			require.NoError(t, err)
			assert.Equal(t, tt.cost, got)
		})
	}
}

func TestCostMapIsObstacle(t *testing.T) {
	cm, err := NewFromRows([][]uint8{
		{0, 9, 10},
		{11, 255, 0},
	}, 10)
	require.NoError(t, err)

	want := map[Cell]bool{
		NewCell(0, 0): false, NewCell(1, 0): false, NewCell(2, 0): true,
		NewCell(0, 1): true, NewCell(1, 1): true, NewCell(2, 1): false,
	}
	for c, w := range want {
		got, err := cm.IsObstacle(c)
		require.NoError(t, err)
		assert.Equal(t, w, got, "cell %v", c)
	}

	_, err = cm.IsObstacle(NewCell(3, 0))
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestCostMapCloneIsIndependent(t *testing.T) {
	cm, err := New(3, 3, 1)
	require.NoError(t, err)
	clone := cm.Clone()
	_, err = clone.Set(NewCell(1, 1), 200)
	require.NoError(t, err)

	got, _ := cm.Get(NewCell(1, 1))
	assert.Equal(t, uint8(0), got)
	assert.Equal(t, NewCell(1, 2), cm.CellAt(cm.Index(NewCell(1, 2))))
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(0, 3, 1)
	assert.ErrorIs(t, err, ErrEmptyMap)
	_, err = NewFromRows([][]uint8{{0, 0}, {0}}, 1)
	assert.ErrorIs(t, err, ErrMalformedConfig)
}

func TestCellThreshold(t *testing.T) {
	a := NewCell(4, 2)
	assert.True(t, a.WithinThreshold(NewCell(4, 2), 0))
	assert.False(t, a.WithinThreshold(NewCell(3, 2), 0))
	assert.True(t, a.WithinThreshold(NewCell(3, 3), 1))
	assert.Equal(t, 5, NewCell(0, 0).ManhattanDistance(NewCell(2, 3)))
}

const scenario5x5 = `discretization(cells): 5 5
obsthresh: 1
start(cells): 0 2
end(cells): 4 2
environment:
0 0 0 0 0
0 0 0 0 0
0 0 0 255 0
0 0 0 0 0
0 0 0 0 0
`

func TestParseEnvConfig(t *testing.T) {
	cfg, err := ParseEnvConfig(strings.NewReader(scenario5x5))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Map.Width())
	assert.Equal(t, 5, cfg.Map.Height())
	assert.Equal(t, uint8(1), cfg.Map.ObstacleThreshold())
	assert.Equal(t, NewCell(0, 2), cfg.Start)
	assert.Equal(t, NewCell(4, 2), cfg.Goal)
	obstacle, err := cfg.Map.IsObstacle(NewCell(3, 2))
	require.NoError(t, err)
	assert.True(t, obstacle)

	var buf bytes.Buffer
	require.NoError(t, FormatEnvConfig(&buf, cfg))
	assert.Equal(t, scenario5x5, buf.String())
}

func TestParseEnvConfigErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "missing environment", input: "discretization(cells): 2 2\nobsthresh: 1\nstart(cells): 0 0\nend(cells): 1 1\n"},
		{name: "unknown key", input: "foo: 1\n"},
		{name: "too few cells", input: "discretization(cells): 2 2\nobsthresh: 1\nstart(cells): 0 0\nend(cells): 1 1\nenvironment:\n0 0\n0\n"},
		{name: "cost above 255", input: "discretization(cells): 1 1\nobsthresh: 1\nstart(cells): 0 0\nend(cells): 0 0\nenvironment:\n256\n"},
		{name: "goal out of bounds", input: "discretization(cells): 1 1\nobsthresh: 1\nstart(cells): 0 0\nend(cells): 1 0\nenvironment:\n0\n"},
		{name: "environment before header", input: "environment:\n0\n"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvConfig(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedConfig)
		})
	}
}

func TestWriteReadEnvConfigFile(t *testing.T) {
	cfg, err := ParseEnvConfig(strings.NewReader(scenario5x5))
	require.NoError(t, err)

	for _, name := range []string{"env.cfg", "env.cfg.bz2"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteEnvConfig(path, cfg))

			got, err := ReadEnvConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Start, got.Start)
			assert.Equal(t, cfg.Goal, got.Goal)
			assert.Equal(t, cfg.Map.Costs(), got.Map.Costs())
		})
	}
}

func TestWriteEnvConfigReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full on this system")
	}
	cfg, err := ParseEnvConfig(strings.NewReader(scenario5x5))
	require.NoError(t, err)

	assert.Error(t, WriteEnvConfig("/dev/full", cfg))
	assert.Error(t, WriteEnvConfig(filepath.Join(t.TempDir(), "missing", "env.cfg"), cfg))
}

func TestGenerateIsDeterministicAndFeasible(t *testing.T) {
	opts := GenerateOptions{
		Width: 20, Height: 15, ObstacleDensity: 0.25, MaxFreeCost: 5,
		ObstacleThreshold: 10, ObstacleCost: 255, Seed: 42,
	}
	a, err := Generate(opts)
	require.NoError(t, err)
	b, err := Generate(opts)
	require.NoError(t, err)

	assert.Equal(t, a.Map.Costs(), b.Map.Costs())
	assert.Equal(t, a.Start, b.Start)
	assert.True(t, Reachable(a.Map, a.Start, a.Goal))
	for _, c := range a.Map.Costs() {
		assert.True(t, c < 5 || c == 255)
	}
}

func TestReachableBlockedCorner(t *testing.T) {
	cm, err := NewFromRows([][]uint8{
		{0, 1},
		{1, 0},
	}, 1)
	require.NoError(t, err)
	assert.False(t, Reachable(cm, NewCell(0, 0), NewCell(1, 1)))
}
