// Package navigation runs the sense-plan-act loop: an agent walks a grid it only partially knows,
// correcting its belief map from a local sensing window and replanning under a fixed budget every cycle.
package navigation

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/environment"
	"github.com/lintang-b-s/gridnav/pkg/metrics"
	"github.com/lintang-b-s/gridnav/pkg/planner"
	"github.com/lintang-b-s/gridnav/pkg/util"
	"go.uber.org/zap"
)

// Planner is what the loop needs from a planner.Adapter.
type Planner interface {
	SetStart(id environment.StateID) bool
	SetGoal(id environment.StateID) bool
	Replan(budget time.Duration) ([]environment.StateID, planner.Result)
	SolutionEpsilon() float64
	// Notify forwards the states whose outgoing edges changed. Returns false if the planner ignored them.
	Notify(affected []environment.StateID) bool
}

// Params are immutable for the duration of a run.
type Params struct {
	TimeBudget    time.Duration
	SensingRadius int
	GoalThreshold int
	// MaxCycles 0 means unlimited.
	MaxCycles int
}

// CycleEvent is passed to the OnCycle hook after every completed cycle.
type CycleEvent struct {
	Cycle    int
	From     costmap.Cell
	To       costmap.Cell
	Changed  []costmap.Cell
	Affected []environment.StateID
	Notified bool
	Plan     []environment.StateID
	Record   metrics.CycleRecord
	// Belief is the loop's own map, read only.
	Belief *costmap.CostMap
}

// Result of a run.
type Result struct {
	RunID       string
	GoalReached bool
	Cycles      int
	Records     []metrics.CycleRecord
}

type Loop struct {
	id     string
	params Params

	truth  *costmap.CostMap
	belief *costmap.CostMap
	env    environment.Environment
	plnr   Planner

	pose  costmap.Cell
	goal  costmap.Cell
	state State
	cycle int

	stats   *metrics.CycleStats
	out     io.Writer
	onCycle func(CycleEvent)
	logger  *zap.Logger
}

/*
New prepares a run over truth. env is the agent's environment: it must already be initialized with
an all-free map of the same extents and threshold as truth, and it supplies the start and goal.
The loop keeps its own all-free belief map and keeps env in sync with it.

Per-cycle lines and the final latency summary are written to out (nil discards them). stats may be
nil.
*/
func New(truth *costmap.CostMap, env environment.Environment, p Planner, params Params, out io.Writer,
	stats *metrics.CycleStats, logger *zap.Logger) (*Loop, error) {
	if params.TimeBudget <= 0 || params.SensingRadius < 0 || params.GoalThreshold < 0 || params.MaxCycles < 0 {
		return nil, util.WrapErrorf(nil, ErrConfiguration, "navigation: invalid params %+v", params)
	}

	ext := env.MapExtentsAndEndpoints()
	if ext.Width != truth.Width() || ext.Height != truth.Height() || ext.ObstacleThreshold != truth.ObstacleThreshold() {
		return nil, util.WrapErrorf(nil, ErrConfiguration,
			"navigation: environment is %dx%d (threshold %d), true map is %dx%d (threshold %d)",
			ext.Width, ext.Height, ext.ObstacleThreshold, truth.Width(), truth.Height(), truth.ObstacleThreshold())
	}
	belief, err := costmap.New(ext.Width, ext.Height, ext.ObstacleThreshold)
	if err != nil {
		return nil, util.WrapErrorf(err, ErrConfiguration, "navigation: cannot allocate belief map")
	}

	startID, err := env.CellToStateID(ext.Start)
	if err != nil {
		return nil, util.WrapErrorf(err, ErrConfiguration, "navigation: no state for start %v", ext.Start)
	}
	goalID, err := env.CellToStateID(ext.Goal)
	if err != nil {
		return nil, util.WrapErrorf(err, ErrConfiguration, "navigation: no state for goal %v", ext.Goal)
	}
	if !p.SetStart(startID) {
		return nil, util.WrapErrorf(nil, ErrConfiguration, "navigation: failed to set start state %d", startID)
	}
	if !p.SetGoal(goalID) {
		return nil, util.WrapErrorf(nil, ErrConfiguration, "navigation: failed to set goal state %d", goalID)
	}

	if out == nil {
		out = io.Discard
	}
	if stats == nil {
		stats = metrics.NewCycleStats("", nil)
	}
	id := uuid.NewString()
	return &Loop{
		id:     id,
		params: params,
		truth:  truth,
		belief: belief,
		env:    env,
		plnr:   p,
		pose:   ext.Start,
		goal:   ext.Goal,
		state:  StateSensing,
		stats:  stats,
		out:    out,
		logger: logger.With(zap.String("run_id", id)),
	}, nil
}

// OnCycle registers fn to be called after every completed cycle.
func (l *Loop) OnCycle(fn func(CycleEvent)) {
	l.onCycle = fn
}

func (l *Loop) Belief() *costmap.CostMap {
	return l.belief
}

func (l *Loop) Pose() costmap.Cell {
	return l.pose
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) RunID() string {
	return l.id
}

func (l *Loop) atGoal() bool {
	return l.pose.WithinThreshold(l.goal, l.params.GoalThreshold)
}

func (l *Loop) result(goalReached bool) Result {
	return Result{
		RunID:       l.id,
		GoalReached: goalReached,
		Cycles:      l.cycle,
		Records:     l.stats.Records(),
	}
}

// Run cycles until the agent is within the goal threshold or a fatal error occurs. ctx is checked
// between cycles only, a started cycle always completes.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	l.logger.Info("navigation started", zap.Stringer("start", l.pose), zap.Stringer("goal", l.goal),
		zap.Int("manhattan_distance", l.pose.ManhattanDistance(l.goal)),
		zap.Duration("time_budget", l.params.TimeBudget), zap.Int("sensing_radius", l.params.SensingRadius))

	for !l.atGoal() {
		if err := ctx.Err(); err != nil {
			l.logger.Warn("navigation cancelled", zap.Int("cycle", l.cycle), zap.Error(err))
			return l.result(false), err
		}
		if l.params.MaxCycles > 0 && l.cycle >= l.params.MaxCycles {
			err := util.WrapErrorf(nil, ErrNavigationFailure, "navigation: goal not reached after %d cycles", l.cycle)
			l.logger.Warn("navigation failed", zap.Error(err))
			return l.result(false), err
		}

		done, err := l.step()
		if err != nil {
			l.logger.Warn("navigation failed", zap.Int("cycle", l.cycle), zap.Stringer("state", l.state),
				zap.Stringer("pose", l.pose), zap.Error(err))
			return l.result(false), err
		}
		if done {
			break
		}
	}

	l.state = StateTerminated
	if err := l.stats.WriteSummary(l.out); err != nil {
		return l.result(true), util.WrapErrorf(err, util.ErrInternalError, "navigation: writing summary")
	}
	l.logger.Info("navigation finished", zap.Int("cycles", l.cycle), zap.Stringer("pose", l.pose),
		zap.Float64("total_planning_seconds", l.stats.TotalPlanningSeconds()))
	return l.result(true), nil
}

// step runs one cycle. done is true when a one-state plan confirms the agent stands on the goal.
func (l *Loop) step() (bool, error) {
	l.cycle++
	from := l.pose

	l.state = StateSensing
	changed, err := Sense(l.truth, l.belief, l.env, l.pose, l.params.SensingRadius)
	if err != nil {
		return false, err
	}

	l.state = StatePropagating
	started := time.Now()
	affected := Propagate(l.env, changed)
	notified := false
	if len(affected) > 0 {
		l.state = StateNotifying
		notified = l.plnr.Notify(affected)
	}

	l.state = StatePlanning
	if _, err := fmt.Fprintf(l.out, "%d %d ", from.X, from.Y); err != nil {
		return false, util.WrapErrorf(err, util.ErrInternalError, "navigation: writing cycle line")
	}
	plan, res := l.plnr.Replan(l.params.TimeBudget)
	if res != planner.Solved {
		return false, util.WrapErrorf(nil, ErrNavigationFailure, "navigation: no solution from %v to %v", from, l.goal)
	}
	seconds := time.Since(started).Seconds()
	eps := l.plnr.SolutionEpsilon()
	if _, err := fmt.Fprintf(l.out, "%.5f %.5f\n", seconds, eps); err != nil {
		return false, util.WrapErrorf(err, util.ErrInternalError, "navigation: writing cycle line")
	}

	l.logger.Debug("planned", zap.Int("cycle", l.cycle), zap.Int("changed_cells", len(changed)),
		zap.Int("affected_states", len(affected)), zap.Bool("notified", notified),
		zap.Int("plan_length", len(plan)), zap.Float64("seconds", seconds), zap.Float64("eps", eps))

	if len(plan) < 2 {
		if len(plan) == 1 && from == l.goal {
			return true, nil
		}
		return false, util.WrapErrorf(nil, ErrPlanning, "navigation: plan of length %d at %v, goal %v", len(plan), from, l.goal)
	}

	l.state = StateAdvancing
	next, err := l.env.StateIDToCell(plan[1])
	if err != nil {
		return false, util.WrapErrorf(err, ErrPlanning, "navigation: plan step %d has no cell", plan[1])
	}
	blocked, err := l.truth.IsObstacle(next)
	if err != nil {
		return false, util.WrapErrorf(err, ErrPlanning, "navigation: plan step %v outside the map", next)
	}
	if blocked {
		return false, util.WrapErrorf(nil, ErrNavigationFailure, "navigation: commanded to move into obstacle %v", next)
	}
	l.pose = next
	if !l.plnr.SetStart(plan[1]) {
		return false, util.WrapErrorf(nil, ErrConfiguration, "navigation: failed to update pose %v in the planner", next)
	}

	rec := metrics.CycleRecord{
		Cycle:           l.cycle,
		Start:           from,
		PlanningSeconds: seconds,
		SolutionEpsilon: eps,
		ChangedCells:    len(changed),
	}
	l.stats.Record(rec)

	if l.onCycle != nil {
		l.onCycle(CycleEvent{
			Cycle:    l.cycle,
			From:     from,
			To:       next,
			Changed:  changed,
			Affected: affected,
			Notified: notified,
			Plan:     plan,
			Record:   rec,
			Belief:   l.belief,
		})
	}
	return false, nil
}
