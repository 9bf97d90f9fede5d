package costmap

import (
	"math/rand"

	"github.com/lintang-b-s/gridnav/pkg/util"
)

const maxGenerateTries = 100

var dx8 = [8]int{-1, -1, -1, 0, 0, 1, 1, 1}
var dy8 = [8]int{-1, 0, 1, -1, 1, -1, 0, 1}

// GenerateOptions for Generate.
type GenerateOptions struct {
	Width, Height int

	// ObstacleDensity fraction of cells set to ObstacleCost, in [0,1).
	ObstacleDensity float64

	// MaxFreeCost exclusive upper bound of the random cost of free cells, clamped to ObstacleThreshold; 0 keeps them at 0.
	MaxFreeCost       uint8
	ObstacleThreshold uint8
	ObstacleCost      uint8
	Seed              int64
}

// Generate builds a random map whose start and goal are connected through free cells
// (8-connected, diagonal moves need both side cells free). Same seed, same map.
func Generate(opts GenerateOptions) (*EnvConfig, error) {
	rd := rand.New(rand.NewSource(opts.Seed))
	maxFree := opts.MaxFreeCost
	if maxFree > opts.ObstacleThreshold {
		maxFree = opts.ObstacleThreshold
	}
	for try := 0; try < maxGenerateTries; try++ {
		cm, err := New(opts.Width, opts.Height, opts.ObstacleThreshold)
		if err != nil {
			return nil, err
		}
		for i := range cm.costs {
			if rd.Float64() < opts.ObstacleDensity {
				cm.costs[i] = opts.ObstacleCost
			} else if maxFree > 0 {
				cm.costs[i] = uint8(rd.Intn(int(maxFree)))
			}
		}

		start := cm.CellAt(rd.Intn(len(cm.costs)))
		goal := cm.CellAt(rd.Intn(len(cm.costs)))
		cm.costs[cm.Index(start)] = 0
		cm.costs[cm.Index(goal)] = 0

		if Reachable(cm, start, goal) {
			return &EnvConfig{Map: cm, Start: start, Goal: goal}, nil
		}
	}
	return nil, util.WrapErrorf(nil, ErrNoFeasibleMap, "costmap: no feasible %dx%d map with density %.2f after %d tries",
		opts.Width, opts.Height, opts.ObstacleDensity, maxGenerateTries)
}

// Reachable breadth-first search over free cells of cm from start to goal.
func Reachable(cm *CostMap, start, goal Cell) bool {
	if !cm.InBounds(start) || !cm.InBounds(goal) {
		return false
	}
	free := func(c Cell) bool {
		return cm.InBounds(c) && cm.costs[cm.Index(c)] < cm.obstacleThreshold
	}
	if !free(start) || !free(goal) {
		return false
	}

	visited := make([]bool, len(cm.costs))
	queue := []Cell{start}
	visited[cm.Index(start)] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if u == goal {
			return true
		}
		for i := 0; i < 8; i++ {
			v := NewCell(u.X+dx8[i], u.Y+dy8[i])
			if !free(v) || visited[cm.Index(v)] {
				continue
			}
			if dx8[i] != 0 && dy8[i] != 0 && (!free(NewCell(u.X+dx8[i], u.Y)) || !free(NewCell(u.X, u.Y+dy8[i]))) {
				continue
			}
			visited[cm.Index(v)] = true
			queue = append(queue, v)
		}
	}
	return false
}
