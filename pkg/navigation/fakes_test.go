package navigation

import (
	"time"

	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/environment"
	"github.com/lintang-b-s/gridnav/pkg/planner"
)

// gridEnv a row-major environment without edges, for driving the loop with scripted planners.
type gridEnv struct {
	width, height int
	threshold     uint8
	start, goal   costmap.Cell

	updates []costmap.Cell
}

func newGridEnv(width, height int, threshold uint8, start, goal costmap.Cell) *gridEnv {
	return &gridEnv{width: width, height: height, threshold: threshold, start: start, goal: goal}
}

func (g *gridEnv) InitializeFromConfig(string) error { return nil }

func (g *gridEnv) CellToStateID(c costmap.Cell) (environment.StateID, error) {
	if c.X < 0 || c.Y < 0 || c.X >= g.width || c.Y >= g.height {
		return environment.INVALID_STATE_ID, costmap.ErrOutOfBounds
	}
	return environment.StateID(c.X + c.Y*g.width), nil
}

func (g *gridEnv) StateIDToCell(id environment.StateID) (costmap.Cell, error) {
	if id < 0 || int(id) >= g.width*g.height {
		return costmap.Cell{}, environment.ErrInvalidState
	}
	return costmap.NewCell(int(id)%g.width, int(id)/g.width), nil
}

func (g *gridEnv) PredecessorsAffectedByCell(c costmap.Cell) []environment.StateID {
	id, err := g.CellToStateID(c)
	if err != nil {
		return nil
	}
	return []environment.StateID{id}
}

func (g *gridEnv) UpdateCost(c costmap.Cell, cost uint8) error {
	g.updates = append(g.updates, c)
	return nil
}

func (g *gridEnv) MapExtentsAndEndpoints() environment.Extents {
	return environment.Extents{
		Width:             g.width,
		Height:            g.height,
		Start:             g.start,
		Goal:              g.goal,
		ObstacleThreshold: g.threshold,
	}
}

// scriptedPlanner returns whatever replan decides for the current start.
type scriptedPlanner struct {
	rejectGoal bool
	// acceptStarts number of SetStart calls accepted, negative accepts all
	acceptStarts int

	start, goal environment.StateID
	starts      []environment.StateID
	notified    [][]environment.StateID
	replan      func(start environment.StateID) ([]environment.StateID, planner.Result)
}

func newScriptedPlanner(replan func(start environment.StateID) ([]environment.StateID, planner.Result)) *scriptedPlanner {
	return &scriptedPlanner{acceptStarts: -1, replan: replan}
}

func (s *scriptedPlanner) SetStart(id environment.StateID) bool {
	if s.acceptStarts >= 0 && len(s.starts) >= s.acceptStarts {
		return false
	}
	s.starts = append(s.starts, id)
	s.start = id
	return true
}

func (s *scriptedPlanner) SetGoal(id environment.StateID) bool {
	if s.rejectGoal {
		return false
	}
	s.goal = id
	return true
}

func (s *scriptedPlanner) Replan(time.Duration) ([]environment.StateID, planner.Result) {
	return s.replan(s.start)
}

func (s *scriptedPlanner) SolutionEpsilon() float64 {
	return 1
}

func (s *scriptedPlanner) Notify(affected []environment.StateID) bool {
	s.notified = append(s.notified, affected)
	return true
}

type recordingRepairer struct {
	*planner.ADStarPlanner
	calls [][]environment.StateID
}

func (r *recordingRepairer) UpdatePredecessorsOfChangedEdges(states []environment.StateID) {
	r.calls = append(r.calls, append([]environment.StateID(nil), states...))
	r.ADStarPlanner.UpdatePredecessorsOfChangedEdges(states)
}

type recordingAnytime struct {
	*planner.ARAPlanner
	costsChanged int
}

func (r *recordingAnytime) CostsChanged() {
	r.costsChanged++
	r.ARAPlanner.CostsChanged()
}
