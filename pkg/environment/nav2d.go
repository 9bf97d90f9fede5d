package environment

import (
	"math"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/gridnav/pkg"
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/util"
)

const affectedCacheSize = 1 << 14

// action offsets: the 8 neighbours first, then the knight moves used when 16-connected.
var (
	actionDX = [16]int{1, 1, 0, -1, -1, -1, 0, 1, 2, 1, -1, -2, -2, -1, 1, 2}
	actionDY = [16]int{0, 1, 1, 1, 0, -1, -1, -1, 1, 2, 2, 1, -1, -2, -2, -1}
)

type action struct {
	dx, dy int

	// cells (relative to the source) whose cost is also charged, besides the target
	sideDX, sideDY [2]int
	numSide        int
	distanceMM     int
}

// Nav2D is an 8- or 16-connected grid environment. A state is a cell, StateID = x + y*width.
// Moving into a cell costs distanceMM * (1 + max cost of the target and the side cells the move
// passes through); the move is invalid if any of them is an obstacle.
type Nav2D struct {
	grid         *costmap.CostMap
	start, goal  costmap.Cell
	actions      []action
	connectivity int
	affected     *lru.Cache[costmap.Cell, []StateID]
}

// NewNav2D returns an uninitialized environment; connectivity is 8 or 16.
func NewNav2D(connectivity int) (*Nav2D, error) {
	if connectivity != 8 && connectivity != 16 {
		return nil, util.WrapErrorf(nil, ErrConnectivity, "environment: got connectivity %d", connectivity)
	}
	affected, err := lru.New[costmap.Cell, []StateID](affectedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Nav2D{
		actions:      buildActions(connectivity),
		connectivity: connectivity,
		affected:     affected,
	}, nil
}

func buildActions(connectivity int) []action {
	actions := make([]action, 0, connectivity)
	for i := 0; i < connectivity; i++ {
		dx, dy := actionDX[i], actionDY[i]
		a := action{
			dx:         dx,
			dy:         dy,
			distanceMM: int(float64(pkg.CELL_SIZE_MM) * math.Sqrt(float64(dx*dx+dy*dy))),
		}
		switch {
		case util.Abs(dx) == 1 && util.Abs(dy) == 1:
			a.sideDX, a.sideDY, a.numSide = [2]int{dx, 0}, [2]int{0, dy}, 2
		case util.Abs(dx) == 2:
			a.sideDX, a.sideDY, a.numSide = [2]int{dx / 2, dx / 2}, [2]int{0, dy}, 2
		case util.Abs(dy) == 2:
			a.sideDX, a.sideDY, a.numSide = [2]int{0, dx}, [2]int{dy / 2, dy / 2}, 2
		}
		actions = append(actions, a)
	}
	return actions
}

// InitializeFromConfig loads the true map and endpoints from a nav2d config file.
func (e *Nav2D) InitializeFromConfig(path string) error {
	cfg, err := costmap.ReadEnvConfig(path)
	if err != nil {
		return err
	}
	return e.InitializeFromMap(cfg.Map, cfg.Start, cfg.Goal)
}

// InitializeFromMap copies grid, so later changes to grid are not seen by the environment.
func (e *Nav2D) InitializeFromMap(grid *costmap.CostMap, start, goal costmap.Cell) error {
	if !grid.InBounds(start) || !grid.InBounds(goal) {
		return util.WrapErrorf(nil, costmap.ErrOutOfBounds, "environment: start %v or goal %v outside map", start, goal)
	}
	e.grid = grid.Clone()
	e.start = start
	e.goal = goal
	e.affected.Purge()
	return nil
}

func (e *Nav2D) Connectivity() int {
	return e.connectivity
}

func (e *Nav2D) MapExtentsAndEndpoints() Extents {
	if e.grid == nil {
		return Extents{}
	}
	return Extents{
		Width:             e.grid.Width(),
		Height:            e.grid.Height(),
		Start:             e.start,
		Goal:              e.goal,
		ObstacleThreshold: e.grid.ObstacleThreshold(),
	}
}

func (e *Nav2D) CellToStateID(c costmap.Cell) (StateID, error) {
	if e.grid == nil {
		return INVALID_STATE_ID, ErrNotInitialized
	}
	if !e.grid.InBounds(c) {
		return INVALID_STATE_ID, util.WrapErrorf(nil, costmap.ErrOutOfBounds, "environment: no state for cell %v", c)
	}
	return StateID(e.grid.Index(c)), nil
}

func (e *Nav2D) StateIDToCell(id StateID) (costmap.Cell, error) {
	if e.grid == nil {
		return costmap.Cell{}, ErrNotInitialized
	}
	if !e.validState(id) {
		return costmap.Cell{}, util.WrapErrorf(nil, ErrInvalidState, "environment: state %d", id)
	}
	return e.grid.CellAt(int(id)), nil
}

func (e *Nav2D) validState(id StateID) bool {
	return id >= 0 && int(id) < e.NumStates()
}

func (e *Nav2D) UpdateCost(c costmap.Cell, cost uint8) error {
	if e.grid == nil {
		return ErrNotInitialized
	}
	_, err := e.grid.Set(c, cost)
	return err
}

// Cost current cost of c as known to this environment.
func (e *Nav2D) Cost(c costmap.Cell) (uint8, error) {
	if e.grid == nil {
		return 0, ErrNotInitialized
	}
	return e.grid.Get(c)
}

// PredecessorsAffectedByCell returns c and every cell one action away from it: the sources of all
// edges that end in c or pass through c.
func (e *Nav2D) PredecessorsAffectedByCell(c costmap.Cell) []StateID {
	if e.grid == nil || !e.grid.InBounds(c) {
		return nil
	}
	if preds, ok := e.affected.Get(c); ok {
		return preds
	}

	preds := make([]StateID, 0, len(e.actions)+1)
	preds = append(preds, StateID(e.grid.Index(c)))
	for _, a := range e.actions {
		p := costmap.NewCell(c.X+a.dx, c.Y+a.dy)
		if !e.grid.InBounds(p) {
			continue
		}
		preds = append(preds, StateID(e.grid.Index(p)))
	}
	e.affected.Add(c, preds)
	return preds
}

func (e *Nav2D) NumStates() int {
	if e.grid == nil {
		return 0
	}
	return e.grid.Width() * e.grid.Height()
}

// edgeCost cost of applying a at from, or false if the move leaves the map or touches an obstacle.
func (e *Nav2D) edgeCost(from costmap.Cell, a action) (costmap.Cell, int, bool) {
	to := costmap.NewCell(from.X+a.dx, from.Y+a.dy)
	if !e.grid.InBounds(to) {
		return to, 0, false
	}
	costs := e.grid.Costs()
	threshold := e.grid.ObstacleThreshold()

	costMult := costs[e.grid.Index(to)]
	for i := 0; i < a.numSide; i++ {
		side := costmap.NewCell(from.X+a.sideDX[i], from.Y+a.sideDY[i])
		costMult = util.Max(costMult, costs[e.grid.Index(side)])
	}
	if costMult >= threshold {
		return to, 0, false
	}
	return to, (int(costMult) + 1) * a.distanceMM, true
}

func (e *Nav2D) Successors(id StateID, out []Successor) []Successor {
	if e.grid == nil || !e.validState(id) {
		return out
	}
	from := e.grid.CellAt(int(id))
	for _, a := range e.actions {
		to, cost, ok := e.edgeCost(from, a)
		if !ok {
			continue
		}
		out = append(out, Successor{ID: StateID(e.grid.Index(to)), Cost: cost})
	}
	return out
}

func (e *Nav2D) Predecessors(id StateID, out []Successor) []Successor {
	if e.grid == nil || !e.validState(id) {
		return out
	}
	to := e.grid.CellAt(int(id))
	for _, a := range e.actions {
		from := costmap.NewCell(to.X-a.dx, to.Y-a.dy)
		if !e.grid.InBounds(from) {
			continue
		}
		_, cost, ok := e.edgeCost(from, a)
		if !ok {
			continue
		}
		out = append(out, Successor{ID: StateID(e.grid.Index(from)), Cost: cost})
	}
	return out
}

// Heuristic lower bound of the path cost in millimetres: octile distance when 8-connected,
// chebyshev distance when 16-connected (a knight move covers two cells of one axis for 2236mm).
func (e *Nav2D) Heuristic(from, to StateID) int {
	if e.grid == nil || !e.validState(from) || !e.validState(to) {
		return 0
	}
	a, b := e.grid.CellAt(int(from)), e.grid.CellAt(int(to))
	dx, dy := util.Abs(a.X-b.X), util.Abs(a.Y-b.Y)
	long, short := util.Max(dx, dy), util.MinInt(dx, dy)
	if e.connectivity == 16 {
		return long * pkg.CELL_SIZE_MM
	}
	return (long-short)*pkg.CELL_SIZE_MM + short*e.actions[1].distanceMM
}

// RandomStatesAtDistance samples cells on the square ring at chebyshev distance `distance` around id.
func (e *Nav2D) RandomStatesAtDistance(id StateID, distance, k int, rd *rand.Rand) []StateID {
	if e.grid == nil || !e.validState(id) || distance < 1 || k < 1 {
		return nil
	}
	center := e.grid.CellAt(int(id))
	ringSize := 8 * distance
	seen := make(map[StateID]struct{}, k)
	out := make([]StateID, 0, k)
	for try := 0; try < 4*k && len(out) < k; try++ {
		c := ringCell(center, distance, rd.Intn(ringSize))
		if !e.grid.InBounds(c) {
			continue
		}
		sid := StateID(e.grid.Index(c))
		if _, ok := seen[sid]; ok {
			continue
		}
		seen[sid] = struct{}{}
		out = append(out, sid)
	}
	return out
}

// ringCell i-th cell, i in [0, 8*d), of the square ring of radius d around c, walking clockwise from the top-left corner.
func ringCell(c costmap.Cell, d, i int) costmap.Cell {
	side := 2 * d
	switch {
	case i < side:
		return costmap.NewCell(c.X-d+i, c.Y-d)
	case i < 2*side:
		return costmap.NewCell(c.X+d, c.Y-d+(i-side))
	case i < 3*side:
		return costmap.NewCell(c.X+d-(i-2*side), c.Y+d)
	default:
		return costmap.NewCell(c.X-d, c.Y+d-(i-3*side))
	}
}

func (e *Nav2D) WithinDistance(a, b StateID, distance int) bool {
	if e.grid == nil || !e.validState(a) || !e.validState(b) {
		return false
	}
	ca, cb := e.grid.CellAt(int(a)), e.grid.CellAt(int(b))
	return util.Abs(ca.X-cb.X) <= distance && util.Abs(ca.Y-cb.Y) <= distance
}
