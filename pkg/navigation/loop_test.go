package navigation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/environment"
	"github.com/lintang-b-s/gridnav/pkg/metrics"
	"github.com/lintang-b-s/gridnav/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var cycleLine = regexp.MustCompile(`^(\d+) (\d+) \d+\.\d{5} \d+\.\d{5}$`)

func testParams() Params {
	return Params{
		TimeBudget:    200 * time.Millisecond,
		SensingRadius: 2,
		GoalThreshold: 0,
	}
}

// newBeliefEnv a 16-connected environment over an all-free copy of truth's extents.
func newBeliefEnv(t *testing.T, truth *costmap.CostMap, start, goal costmap.Cell) *environment.Nav2D {
	t.Helper()
	env, err := environment.NewNav2D(16)
	require.NoError(t, err)
	blank, err := costmap.New(truth.Width(), truth.Height(), truth.ObstacleThreshold())
	require.NoError(t, err)
	require.NoError(t, env.InitializeFromMap(blank, start, goal))
	return env
}

func newNav2DLoop(t *testing.T, truth *costmap.CostMap, start, goal costmap.Cell, family planner.Family,
	params Params, out *bytes.Buffer) (*Loop, *environment.Nav2D) {
	t.Helper()
	env := newBeliefEnv(t, truth, start, goal)
	a, err := planner.NewAdapter(family, env, planner.Options{InitialEpsilon: 2, Seed: 1}, zap.NewNop())
	require.NoError(t, err)
	var w io.Writer
	if out != nil {
		w = out
	}
	loop, err := New(truth, env, a, params, w, metrics.NewCycleStats(family.String(), nil), zap.NewNop())
	require.NoError(t, err)
	return loop, env
}

func detourTruth(t *testing.T) *costmap.CostMap {
	return truthWithObstacles(t, 5, 5, 1, costmap.NewCell(3, 2))
}

func TestLoopDetourScenario(t *testing.T) {
	start, goal, obstacle := costmap.NewCell(0, 2), costmap.NewCell(4, 2), costmap.NewCell(3, 2)

	for _, family := range planner.Families() {
		t.Run(family.String(), func(t *testing.T) {
			var out bytes.Buffer
			loop, env := newNav2DLoop(t, detourTruth(t), start, goal, family, testParams(), &out)
			obstacleID, err := env.CellToStateID(obstacle)
			require.NoError(t, err)

			var firstPlan []environment.StateID
			visited := []costmap.Cell{start}
			loop.OnCycle(func(ev CycleEvent) {
				if ev.Cycle == 1 {
					firstPlan = ev.Plan
				}
				visited = append(visited, ev.To)
			})

			res, err := loop.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, res.GoalReached)
			assert.Equal(t, goal, loop.Pose())
			assert.Equal(t, StateTerminated, loop.State())
			assert.NotContains(t, visited, obstacle)
			assert.Len(t, res.Records, res.Cycles)
			assert.LessOrEqual(t, res.Cycles, 8)

			if family == planner.FamilyFullAnytimeReplanning || family == planner.FamilyIncrementalForwardRepair {
				// the obstacle is outside the sensing window at the start
				assert.Contains(t, firstPlan, obstacleID)
			}

			lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
			require.Len(t, lines, res.Cycles+1)
			for i, rec := range res.Records {
				m := cycleLine.FindStringSubmatch(lines[i])
				require.NotNil(t, m, lines[i])
				assert.Equal(t, strconv.Itoa(rec.Start.X), m[1])
				assert.Equal(t, strconv.Itoa(rec.Start.Y), m[2])
				assert.Equal(t, i+1, rec.Cycle)
			}
			assert.Equal(t, "0 2 ", lines[0][:4])
			assert.True(t, strings.HasPrefix(lines[len(lines)-1], "stats: plantimes over 1 secs="))
		})
	}
}

func TestLoopStartEqualsGoal(t *testing.T) {
	var out bytes.Buffer
	cell := costmap.NewCell(2, 2)
	loop, _ := newNav2DLoop(t, detourTruth(t), cell, cell, planner.FamilyFullAnytimeReplanning, testParams(), &out)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.GoalReached)
	assert.Equal(t, 0, res.Cycles)
	assert.Empty(t, res.Records)
	assert.Equal(t,
		"stats: plantimes over 1 secs=0; over 0.5; secs=0; over 0.1 secs=0; over 0.05 secs=0; below 0.05 secs=0\n",
		out.String())
}

func TestLoopGoalThreshold(t *testing.T) {
	var out bytes.Buffer
	truth := truthWithObstacles(t, 8, 3, 1)
	params := testParams()
	params.GoalThreshold = 2
	loop, _ := newNav2DLoop(t, truth, costmap.NewCell(0, 1), costmap.NewCell(7, 1), planner.FamilyIncrementalForwardRepair,
		params, &out)

	res, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.GoalReached)
	assert.True(t, loop.Pose().WithinThreshold(costmap.NewCell(7, 1), 2))
	assert.Less(t, res.Cycles, 7)
}

func TestLoopFatalErrors(t *testing.T) {
	start, goal := costmap.NewCell(0, 0), costmap.NewCell(4, 0)
	id := func(x, y int) environment.StateID {
		return environment.StateID(x + y*5)
	}

	testCases := []struct {
		name       string
		truth      []costmap.Cell
		planner    func() *scriptedPlanner
		wantErr    error
		wantOutput string
	}{
		{
			name: "no solution",
			planner: func() *scriptedPlanner {
				return newScriptedPlanner(func(environment.StateID) ([]environment.StateID, planner.Result) {
					return nil, planner.NoSolution
				})
			},
			wantErr:    ErrNavigationFailure,
			wantOutput: "0 0 ",
		},
		{
			name:  "next step on a true obstacle",
			truth: []costmap.Cell{costmap.NewCell(1, 0)},
			planner: func() *scriptedPlanner {
				return newScriptedPlanner(func(s environment.StateID) ([]environment.StateID, planner.Result) {
					return []environment.StateID{s, id(1, 0)}, planner.Solved
				})
			},
			wantErr: ErrNavigationFailure,
		},
		{
			name: "one-state plan away from the goal",
			planner: func() *scriptedPlanner {
				return newScriptedPlanner(func(s environment.StateID) ([]environment.StateID, planner.Result) {
					return []environment.StateID{s}, planner.Solved
				})
			},
			wantErr: ErrPlanning,
		},
		{
			name: "empty solved plan",
			planner: func() *scriptedPlanner {
				return newScriptedPlanner(func(environment.StateID) ([]environment.StateID, planner.Result) {
					return []environment.StateID{}, planner.Solved
				})
			},
			wantErr: ErrPlanning,
		},
		{
			name: "plan step without a cell",
			planner: func() *scriptedPlanner {
				return newScriptedPlanner(func(s environment.StateID) ([]environment.StateID, planner.Result) {
					return []environment.StateID{s, 999}, planner.Solved
				})
			},
			wantErr: ErrPlanning,
		},
		{
			name: "re-anchoring rejected",
			planner: func() *scriptedPlanner {
				p := newScriptedPlanner(func(s environment.StateID) ([]environment.StateID, planner.Result) {
					return []environment.StateID{s, s + 1}, planner.Solved
				})
				p.acceptStarts = 1
				return p
			},
			wantErr: ErrConfiguration,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			truth := truthWithObstacles(t, 5, 5, 1, tt.truth...)
			env := newGridEnv(5, 5, 1, start, goal)
			loop, err := New(truth, env, tt.planner(), testParams(), &out, nil, zap.NewNop())
			require.NoError(t, err)

			res, err := loop.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
			assert.False(t, res.GoalReached)
			assert.Empty(t, res.Records)
			assert.NotContains(t, out.String(), "stats:")
			if tt.wantOutput != "" {
				assert.Equal(t, tt.wantOutput, out.String())
			}
		})
	}
}

func TestNewRejectsConfiguration(t *testing.T) {
	truth := truthWithObstacles(t, 5, 5, 1)
	start, goal := costmap.NewCell(0, 0), costmap.NewCell(4, 4)
	solved := func(s environment.StateID) ([]environment.StateID, planner.Result) {
		return []environment.StateID{s}, planner.Solved
	}

	testCases := []struct {
		name    string
		env     *gridEnv
		planner func() *scriptedPlanner
		params  Params
	}{
		{
			name: "start rejected",
			env:  newGridEnv(5, 5, 1, start, goal),
			planner: func() *scriptedPlanner {
				p := newScriptedPlanner(solved)
				p.acceptStarts = 0
				return p
			},
			params: testParams(),
		},
		{
			name: "goal rejected",
			env:  newGridEnv(5, 5, 1, start, goal),
			planner: func() *scriptedPlanner {
				p := newScriptedPlanner(solved)
				p.rejectGoal = true
				return p
			},
			params: testParams(),
		},
		{
			name:    "goal outside the map",
			env:     newGridEnv(5, 5, 1, start, costmap.NewCell(5, 0)),
			planner: func() *scriptedPlanner { return newScriptedPlanner(solved) },
			params:  testParams(),
		},
		{
			name:    "extents differ from the true map",
			env:     newGridEnv(6, 5, 1, start, goal),
			planner: func() *scriptedPlanner { return newScriptedPlanner(solved) },
			params:  testParams(),
		},
		{
			name:    "zero time budget",
			env:     newGridEnv(5, 5, 1, start, goal),
			planner: func() *scriptedPlanner { return newScriptedPlanner(solved) },
			params:  Params{SensingRadius: 2},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(truth, tt.env, tt.planner(), tt.params, nil, nil, zap.NewNop())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), err.Error())
		})
	}
}

func TestLoopMaxCycles(t *testing.T) {
	truth := truthWithObstacles(t, 5, 5, 1)
	env := newGridEnv(5, 5, 1, costmap.NewCell(0, 0), costmap.NewCell(4, 4))
	// oscillates between (0,0) and (1,0)
	p := newScriptedPlanner(func(s environment.StateID) ([]environment.StateID, planner.Result) {
		return []environment.StateID{s, 1 - s}, planner.Solved
	})
	params := testParams()
	params.MaxCycles = 6

	loop, err := New(truth, env, p, params, nil, nil, zap.NewNop())
	require.NoError(t, err)
	res, err := loop.Run(context.Background())
	assert.True(t, errors.Is(err, ErrNavigationFailure))
	assert.Equal(t, 6, res.Cycles)
	assert.Len(t, res.Records, 6)
}

func TestLoopContextCancelled(t *testing.T) {
	var out bytes.Buffer
	loop, _ := newNav2DLoop(t, detourTruth(t), costmap.NewCell(0, 2), costmap.NewCell(4, 2),
		planner.FamilyFullAnytimeReplanning, testParams(), &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Cycles)
	assert.Empty(t, out.String())
}

func TestLoopIncrementalNotificationEqualsUnion(t *testing.T) {
	truth := truthWithObstacles(t, 9, 9, 1,
		costmap.NewCell(4, 2), costmap.NewCell(4, 3), costmap.NewCell(4, 4), costmap.NewCell(4, 5), costmap.NewCell(4, 6))
	start, goal := costmap.NewCell(0, 4), costmap.NewCell(8, 4)
	env := newBeliefEnv(t, truth, start, goal)
	rec := &recordingRepairer{ADStarPlanner: planner.NewADStarPlanner(env)}
	a := planner.NewIncrementalAdapter(rec, zap.NewNop())

	loop, err := New(truth, env, a, testParams(), nil, nil, zap.NewNop())
	require.NoError(t, err)

	notifications := 0
	loop.OnCycle(func(ev CycleEvent) {
		if len(ev.Changed) == 0 {
			assert.False(t, ev.Notified)
			assert.Len(t, rec.calls, notifications)
			return
		}
		notifications++
		require.Len(t, rec.calls, notifications)
		assert.True(t, ev.Notified)

		seen := map[environment.StateID]bool{}
		var want []environment.StateID
		for _, c := range ev.Changed {
			for _, id := range env.PredecessorsAffectedByCell(c) {
				if !seen[id] {
					seen[id] = true
					want = append(want, id)
				}
			}
		}
		assert.ElementsMatch(t, want, rec.calls[notifications-1])
		assert.Equal(t, ev.Affected, rec.calls[notifications-1])
	})

	res, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.GoalReached)
	assert.Greater(t, notifications, 0)
}

func TestLoopFullAnytimeNotifiedOncePerChange(t *testing.T) {
	start, goal := costmap.NewCell(0, 2), costmap.NewCell(4, 2)
	truth := detourTruth(t)
	env := newBeliefEnv(t, truth, start, goal)
	rec := &recordingAnytime{ARAPlanner: planner.NewARAPlanner(env)}
	a := planner.NewFullAnytimeAdapter(rec, zap.NewNop())

	loop, err := New(truth, env, a, testParams(), nil, nil, zap.NewNop())
	require.NoError(t, err)
	cyclesWithChanges := 0
	loop.OnCycle(func(ev CycleEvent) {
		if len(ev.Changed) > 0 {
			cyclesWithChanges++
		}
	})

	res, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.GoalReached)
	assert.Equal(t, 1, cyclesWithChanges)
	assert.Equal(t, cyclesWithChanges, rec.costsChanged)
}

// convergenceBound caps the cycles of a run: every cycle moves one cell, and the detours the
// belief forces are bounded by twice the map perimeter.
func convergenceBound(start, goal costmap.Cell, width, height int) int {
	return 4*start.ManhattanDistance(goal) + 2*(width+height)
}

func TestLoopConvergesOnRandomMaps(t *testing.T) {
	const size = 15
	for seed := int64(1); seed <= 4; seed++ {
		cfg, err := costmap.Generate(costmap.GenerateOptions{
			Width:             size,
			Height:            size,
			ObstacleDensity:   0.2,
			ObstacleThreshold: 1,
			ObstacleCost:      255,
			Seed:              seed,
		})
		require.NoError(t, err)

		for _, family := range planner.Families() {
			t.Run(fmt.Sprintf("seed %d %s", seed, family), func(t *testing.T) {
				params := testParams()
				params.MaxCycles = 10 * size * size
				loop, _ := newNav2DLoop(t, cfg.Map, cfg.Start, cfg.Goal, family, params, nil)

				revealed := map[costmap.Cell]bool{}
				loop.OnCycle(func(ev CycleEvent) {
					obstacle, err := cfg.Map.IsObstacle(ev.To)
					require.NoError(t, err)
					assert.False(t, obstacle, "stepped onto %v", ev.To)

					for c := range revealed {
						got, _ := ev.Belief.Get(c)
						want, _ := cfg.Map.Get(c)
						assert.Equal(t, want, got, "belief of %v regressed", c)
					}
					for i, cost := range ev.Belief.Costs() {
						if want := cfg.Map.Costs()[i]; cost == want {
							revealed[ev.Belief.CellAt(i)] = true
						}
					}
				})

				res, err := loop.Run(context.Background())
				require.NoError(t, err)
				assert.True(t, res.GoalReached)
				assert.Equal(t, cfg.Goal, loop.Pose())
				assert.LessOrEqual(t, res.Cycles, convergenceBound(cfg.Start, cfg.Goal, size, size))
			})
		}
	}
}
