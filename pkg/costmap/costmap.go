// Package costmap holds the per-cell traversal cost grids used by the navigation loop.
//
// The same layout is used for the ground-truth map and the agent's belief map:
// a flat []uint8 indexed by x + y*width.
package costmap

import (
	"fmt"

	"github.com/lintang-b-s/gridnav/pkg/util"
)

// Cell is a grid coordinate.
type Cell struct {
	X, Y int
}

func NewCell(x, y int) Cell {
	return Cell{X: x, Y: y}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// WithinThreshold true if |c.X-o.X| <= threshold and |c.Y-o.Y| <= threshold.
func (c Cell) WithinThreshold(o Cell, threshold int) bool {
	return util.Abs(c.X-o.X) <= threshold && util.Abs(c.Y-o.Y) <= threshold
}

// ManhattanDistance |dx| + |dy|.
func (c Cell) ManhattanDistance(o Cell) int {
	return util.Abs(c.X-o.X) + util.Abs(c.Y-o.Y)
}

// CostMap is a fixed-size grid of costs in [0,255]. Any cost >= obstacleThreshold is untraversable.
type CostMap struct {
	width             int
	height            int
	obstacleThreshold uint8
	costs             []uint8
}

// New returns a width x height map with every cell at cost 0.
func New(width, height int, obstacleThreshold uint8) (*CostMap, error) {
	if width < 1 || height < 1 {
		return nil, util.WrapErrorf(nil, ErrEmptyMap, "costmap: invalid extents %dx%d", width, height)
	}
	return &CostMap{
		width:             width,
		height:            height,
		obstacleThreshold: obstacleThreshold,
		costs:             make([]uint8, width*height),
	}, nil
}

// NewFromRows builds a map from rows[y][x].
func NewFromRows(rows [][]uint8, obstacleThreshold uint8) (*CostMap, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyMap
	}
	cm, err := New(len(rows[0]), len(rows), obstacleThreshold)
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != cm.width {
			return nil, util.WrapErrorf(nil, ErrMalformedConfig, "costmap: row %d has %d columns, want %d", y, len(row), cm.width)
		}
		copy(cm.costs[y*cm.width:(y+1)*cm.width], row)
	}
	return cm, nil
}

func (cm *CostMap) Width() int {
	return cm.width
}

func (cm *CostMap) Height() int {
	return cm.height
}

func (cm *CostMap) ObstacleThreshold() uint8 {
	return cm.obstacleThreshold
}

func (cm *CostMap) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < cm.width && c.Y >= 0 && c.Y < cm.height
}

// Index flat index of c. c must be in bounds.
func (cm *CostMap) Index(c Cell) int {
	return c.X + c.Y*cm.width
}

func (cm *CostMap) CellAt(index int) Cell {
	return Cell{X: index % cm.width, Y: index / cm.width}
}

func (cm *CostMap) Get(c Cell) (uint8, error) {
	if !cm.InBounds(c) {
		return 0, util.WrapErrorf(nil, ErrOutOfBounds, "costmap: get %v on %dx%d map", c, cm.width, cm.height)
	}
	return cm.costs[cm.Index(c)], nil
}

// Set overwrites the cost at c and reports whether the stored value actually changed.
func (cm *CostMap) Set(c Cell, cost uint8) (bool, error) {
	if !cm.InBounds(c) {
		return false, util.WrapErrorf(nil, ErrOutOfBounds, "costmap: set %v on %dx%d map", c, cm.width, cm.height)
	}
	idx := cm.Index(c)
	if cm.costs[idx] == cost {
		return false, nil
	}
	cm.costs[idx] = cost
	return true, nil
}

func (cm *CostMap) IsObstacle(c Cell) (bool, error) {
	cost, err := cm.Get(c)
	if err != nil {
		return false, err
	}
	return cost >= cm.obstacleThreshold, nil
}

// Clone deep copy.
func (cm *CostMap) Clone() *CostMap {
	costs := make([]uint8, len(cm.costs))
	copy(costs, cm.costs)
	return &CostMap{
		width:             cm.width,
		height:            cm.height,
		obstacleThreshold: cm.obstacleThreshold,
		costs:             costs,
	}
}

// Costs returns the backing slice, row-major. Callers must not modify it.
func (cm *CostMap) Costs() []uint8 {
	return cm.costs
}
