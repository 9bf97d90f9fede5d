package planner

import (
	"math"
	"time"

	"github.com/lintang-b-s/gridnav/pkg"
	da "github.com/lintang-b-s/gridnav/pkg/datastructure"
	"github.com/lintang-b-s/gridnav/pkg/environment"
)

type anaState struct {
	g      int
	parent environment.StateID
	node   *da.PriorityQueueNode[environment.StateID]
}

/*
ANAPlanner anytime nonparametric A*: expands the state maximizing e(s) = (G - g(s)) / h(s), where
G is the cost of the incumbent solution, and prunes states that cannot beat it.

van den Berg, J., Shah, R., Huang, A. and Goldberg, K. (2011) "ANA*: Anytime Nonparametric A*",
AAAI-11.

Before the first solution (G infinite) the open list is ordered greedily by h. Every Replan searches
from scratch, there is no incremental update. The initial epsilon is not used.
*/
type ANAPlanner struct {
	graph environment.Graph

	start, goal environment.StateID

	stopAtFirstSolution bool
	solutionEps         float64

	states    map[environment.StateID]*anaState
	open      *da.MinHeap[environment.StateID]
	incumbent int
	best      []environment.StateID

	numExpanded int
}

func NewANAPlanner(graph environment.Graph) *ANAPlanner {
	return &ANAPlanner{
		graph:       graph,
		start:       environment.INVALID_STATE_ID,
		goal:        environment.INVALID_STATE_ID,
		solutionEps: math.Inf(1),
		open:        da.NewFourAryHeap[environment.StateID](),
	}
}

func (ana *ANAPlanner) valid(id environment.StateID) bool {
	return id >= 0 && int(id) < ana.graph.NumStates()
}

func (ana *ANAPlanner) SetStart(id environment.StateID) bool {
	if !ana.valid(id) {
		return false
	}
	ana.start = id
	return true
}

func (ana *ANAPlanner) SetGoal(id environment.StateID) bool {
	if !ana.valid(id) {
		return false
	}
	ana.goal = id
	return true
}

func (ana *ANAPlanner) SetInitialEpsilon(float64) {}

func (ana *ANAPlanner) SetSearchMode(stopAtFirstSolution bool) {
	ana.stopAtFirstSolution = stopAtFirstSolution
}

func (ana *ANAPlanner) SolutionEpsilon() float64 {
	return ana.solutionEps
}

func (ana *ANAPlanner) NumExpanded() int {
	return ana.numExpanded
}

// rank min-heap rank: -e(s) once an incumbent exists, h(s) before.
func (ana *ANAPlanner) rank(id environment.StateID, s *anaState) (float64, float64) {
	h := float64(ana.graph.Heuristic(id, ana.goal))
	if ana.incumbent >= pkg.INF_COST {
		return h, float64(s.g)
	}
	if h == 0 {
		return math.Inf(-1), float64(s.g)
	}
	return -float64(ana.incumbent-s.g) / h, float64(s.g)
}

func (ana *ANAPlanner) push(id environment.StateID, s *anaState) {
	k1, k2 := ana.rank(id, s)
	if s.node != nil && s.node.InHeap() {
		heapUpdate(ana.open, s.node, k1, k2)
		return
	}
	s.node = da.NewPriorityQueueNodeWithTieBreak(k1, k2, id)
	ana.open.Insert(s.node)
}

// improveSolution returns true when a better solution was found, false when OPEN ran dry or the
// budget ran out.
func (ana *ANAPlanner) improveSolution(clock *searchClock) bool {
	succs := make([]environment.Successor, 0, 16)
	for !ana.open.IsEmpty() {
		if clock.Expired() {
			return false
		}
		top := heapPop(ana.open)
		u := top.GetItem()
		us := ana.states[u]
		ana.numExpanded++

		if u == ana.goal {
			ana.incumbent = us.g
			ana.best = ana.trace(u)
			return true
		}

		succs = ana.graph.Successors(u, succs[:0])
		for _, e := range succs {
			ng := addCost(us.g, e.Cost)
			vs, ok := ana.states[e.ID]
			if ok && vs.g <= ng {
				continue
			}
			if !ok {
				vs = &anaState{}
				ana.states[e.ID] = vs
			}
			vs.g = ng
			vs.parent = u
			if ng+ana.graph.Heuristic(e.ID, ana.goal) < ana.incumbent {
				ana.push(e.ID, vs)
			}
		}
	}
	return false
}

// prune drops states that cannot improve on the incumbent and re-ranks the rest.
func (ana *ANAPlanner) prune() {
	items := make([]environment.StateID, 0, ana.open.Size())
	for _, n := range ana.open.Items() {
		items = append(items, n.GetItem())
	}
	ana.open.Clear()
	for _, id := range items {
		s := ana.states[id]
		if s.g+ana.graph.Heuristic(id, ana.goal) >= ana.incumbent {
			continue
		}
		ana.push(id, s)
	}
}

// bound G / min over OPEN of g+h, 1 when OPEN is empty.
func (ana *ANAPlanner) bound() float64 {
	lower := math.Inf(1)
	for _, n := range ana.open.Items() {
		id := n.GetItem()
		f := float64(ana.states[id].g + ana.graph.Heuristic(id, ana.goal))
		lower = math.Min(lower, f)
	}
	if math.IsInf(lower, 1) || lower <= 0 {
		return FINAL_EPS
	}
	return math.Max(FINAL_EPS, float64(ana.incumbent)/lower)
}

func (ana *ANAPlanner) trace(to environment.StateID) []environment.StateID {
	path := []environment.StateID{}
	for s := to; s != environment.INVALID_STATE_ID; s = ana.states[s].parent {
		path = append(path, s)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (ana *ANAPlanner) Replan(budget time.Duration) ([]environment.StateID, Result) {
	ana.numExpanded = 0
	ana.solutionEps = math.Inf(1)
	if !ana.valid(ana.start) || !ana.valid(ana.goal) {
		return nil, NoSolution
	}

	ana.states = map[environment.StateID]*anaState{}
	ana.open.Clear()
	ana.incumbent = pkg.INF_COST
	ana.best = nil

	startState := &anaState{g: 0, parent: environment.INVALID_STATE_ID}
	ana.states[ana.start] = startState
	ana.push(ana.start, startState)

	clock := newSearchClock(budget)
	for !ana.open.IsEmpty() {
		if !ana.improveSolution(clock) {
			break
		}
		ana.prune()
		ana.solutionEps = ana.bound()
		if ana.stopAtFirstSolution {
			break
		}
	}

	if ana.best == nil {
		return nil, NoSolution
	}
	return ana.best, Solved
}
