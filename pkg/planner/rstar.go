package planner

import (
	"math"
	"math/rand"
	"time"

	"github.com/lintang-b-s/gridnav/pkg"
	da "github.com/lintang-b-s/gridnav/pkg/datastructure"
	"github.com/lintang-b-s/gridnav/pkg/environment"
)

const (
	DEFAULT_RSTAR_DISTANCE        = 5
	DEFAULT_RSTAR_NUM_SUCCESSORS  = 5
	DEFAULT_RSTAR_EXPANSION_LIMIT = 200

	rstarAvoidRank = 1.0
)

// RStarOptions tune the sparse high-level graph of R*.
type RStarOptions struct {
	// Distance of the random successors from the expanded state, in cells.
	Distance int
	// NumSuccessors random successors generated per expansion.
	NumSuccessors int
	// ExpansionLimit of the first local search towards a state; hitting it marks the state AVOID.
	ExpansionLimit int

	Seed int64
}

func DefaultRStarOptions() RStarOptions {
	return RStarOptions{
		Distance:       DEFAULT_RSTAR_DISTANCE,
		NumSuccessors:  DEFAULT_RSTAR_NUM_SUCCESSORS,
		ExpansionLimit: DEFAULT_RSTAR_EXPANSION_LIMIT,
		Seed:           pkg.DEFAULT_SEED,
	}
}

type rstarNode struct {
	id       environment.StateID
	g        int
	parent   *rstarNode
	local    []environment.StateID // path parent -> id, nil until computed
	avoid    bool
	closed   bool
	heapNode *da.PriorityQueueNode[environment.StateID]
}

/*
RStarPlanner randomized A*: decomposes the query into short local searches between randomly
sampled states, postponing (AVOID) the local searches that turn out hard.

Likhachev, M. and Stentz, A. (2008) "R* Search", AAAI-08.

Each iteration runs at a fixed epsilon; Replan lowers epsilon between iterations while the budget
lasts and keeps the best path found. Every Replan searches from scratch.
*/
type RStarPlanner struct {
	graph environment.SamplingGraph
	opts  RStarOptions
	rd    *rand.Rand

	start, goal environment.StateID

	initialEps          float64
	solutionEps         float64
	stopAtFirstSolution bool

	numLocalSearches int
}

func NewRStarPlanner(graph environment.SamplingGraph, opts RStarOptions) *RStarPlanner {
	if opts.Distance < 1 {
		opts.Distance = DEFAULT_RSTAR_DISTANCE
	}
	if opts.NumSuccessors < 1 {
		opts.NumSuccessors = DEFAULT_RSTAR_NUM_SUCCESSORS
	}
	return &RStarPlanner{
		graph:       graph,
		opts:        opts,
		rd:          rand.New(rand.NewSource(opts.Seed)),
		start:       environment.INVALID_STATE_ID,
		goal:        environment.INVALID_STATE_ID,
		initialEps:  pkg.DEFAULT_INITIAL_EPSILON,
		solutionEps: math.Inf(1),
	}
}

func (rs *RStarPlanner) valid(id environment.StateID) bool {
	return id >= 0 && int(id) < rs.graph.NumStates()
}

func (rs *RStarPlanner) SetStart(id environment.StateID) bool {
	if !rs.valid(id) {
		return false
	}
	rs.start = id
	return true
}

func (rs *RStarPlanner) SetGoal(id environment.StateID) bool {
	if !rs.valid(id) {
		return false
	}
	rs.goal = id
	return true
}

func (rs *RStarPlanner) SetInitialEpsilon(eps float64) {
	rs.initialEps = math.Max(eps, FINAL_EPS)
}

func (rs *RStarPlanner) SetSearchMode(stopAtFirstSolution bool) {
	rs.stopAtFirstSolution = stopAtFirstSolution
}

func (rs *RStarPlanner) SolutionEpsilon() float64 {
	return rs.solutionEps
}

func (rs *RStarPlanner) NumLocalSearches() int {
	return rs.numLocalSearches
}

func (rs *RStarPlanner) Replan(budget time.Duration) ([]environment.StateID, Result) {
	rs.solutionEps = math.Inf(1)
	rs.numLocalSearches = 0
	if !rs.valid(rs.start) || !rs.valid(rs.goal) {
		return nil, NoSolution
	}

	clock := newSearchClock(budget)
	var best []environment.StateID
	bestCost := pkg.INF_COST
	for eps := rs.initialEps; ; eps = decreaseEps(eps) {
		path, cost, done := rs.iterate(eps, clock)
		if !done {
			break
		}
		if path == nil {
			// the goal is unreachable, lowering eps will not change that
			break
		}
		if cost < bestCost {
			best, bestCost = path, cost
		}
		rs.solutionEps = eps
		if rs.stopAtFirstSolution || da.Le(eps, FINAL_EPS) {
			break
		}
	}

	if best == nil {
		return nil, NoSolution
	}
	return best, Solved
}

func (rs *RStarPlanner) key(n *rstarNode, eps float64) (float64, float64) {
	rank := 0.0
	if n.avoid {
		rank = rstarAvoidRank
	}
	return rank, float64(n.g) + eps*float64(rs.graph.Heuristic(n.id, rs.goal))
}

func (rs *RStarPlanner) push(open *da.MinHeap[environment.StateID], n *rstarNode, eps float64) {
	k1, k2 := rs.key(n, eps)
	if n.heapNode != nil && n.heapNode.InHeap() {
		heapUpdate(open, n.heapNode, k1, k2)
		return
	}
	n.heapNode = da.NewPriorityQueueNodeWithTieBreak(k1, k2, n.id)
	open.Insert(n.heapNode)
}

// iterate one R* search at eps. done is false when the budget ran out; path is nil when the goal is unreachable.
func (rs *RStarPlanner) iterate(eps float64, clock *searchClock) ([]environment.StateID, int, bool) {
	nodes := map[environment.StateID]*rstarNode{}
	open := da.NewBinaryHeap[environment.StateID]()

	root := &rstarNode{id: rs.start, g: 0, local: []environment.StateID{rs.start}}
	nodes[rs.start] = root
	rs.push(open, root, eps)

	for !open.IsEmpty() {
		if clock.ExpiredNow() {
			return nil, 0, false
		}
		top := heapPop(open)
		n := nodes[top.GetItem()]

		if n.local == nil {
			limit := rs.opts.ExpansionLimit
			if n.avoid {
				limit = 0
			}
			rs.numLocalSearches++
			path, cost, status := weightedAStar(rs.graph, n.parent.id, n.id, eps, limit, clock)
			switch status {
			case localTimeout:
				return nil, 0, false
			case localUnreachable:
				continue
			case localExpansionLimit:
				n.avoid = true
				rs.push(open, n, eps)
				continue
			}
			n.local = path
			n.g = addCost(n.parent.g, cost)
			rs.push(open, n, eps)
			continue
		}

		if n.id == rs.goal {
			return rs.trace(n), n.g, true
		}
		n.closed = true
		rs.expand(open, nodes, n, eps)
	}

	// the sampled graph never got close enough to the goal: fall back to one unbounded local search
	rs.numLocalSearches++
	path, cost, status := weightedAStar(rs.graph, rs.start, rs.goal, eps, 0, clock)
	switch status {
	case localTimeout:
		return nil, 0, false
	case localFound:
		return path, cost, true
	}
	return nil, 0, true
}

func (rs *RStarPlanner) expand(open *da.MinHeap[environment.StateID], nodes map[environment.StateID]*rstarNode,
	n *rstarNode, eps float64) {
	succs := rs.graph.RandomStatesAtDistance(n.id, rs.opts.Distance, rs.opts.NumSuccessors, rs.rd)
	if rs.graph.WithinDistance(n.id, rs.goal, rs.opts.Distance) {
		succs = append(succs, rs.goal)
	}
	preds := make([]environment.Successor, 0, 16)
	for _, id := range succs {
		if id == n.id {
			continue
		}
		// no in-edges: an obstacle, no local search can reach it
		if preds = rs.graph.Predecessors(id, preds[:0]); len(preds) == 0 {
			continue
		}
		estimate := addCost(n.g, rs.graph.Heuristic(n.id, id))
		m, ok := nodes[id]
		if ok && (m.closed || m.g <= estimate) {
			continue
		}
		if !ok {
			m = &rstarNode{id: id}
			nodes[id] = m
		}
		m.parent = n
		m.g = estimate
		m.local = nil
		m.avoid = false
		rs.push(open, m, eps)
	}
}

func (rs *RStarPlanner) trace(n *rstarNode) []environment.StateID {
	segments := [][]environment.StateID{}
	for m := n; m != nil; m = m.parent {
		segments = append(segments, m.local)
	}
	path := []environment.StateID{}
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if len(path) > 0 && len(seg) > 0 {
			seg = seg[1:]
		}
		path = append(path, seg...)
	}
	return path
}
