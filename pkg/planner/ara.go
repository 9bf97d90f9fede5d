package planner

import (
	"math"
	"time"

	"github.com/lintang-b-s/gridnav/pkg"
	da "github.com/lintang-b-s/gridnav/pkg/datastructure"
	"github.com/lintang-b-s/gridnav/pkg/environment"
)

type araState struct {
	g         int
	bestNext  environment.StateID
	node      *da.PriorityQueueNode[environment.StateID]
	closedIn  int
	inIncons  bool
	generated int
}

/*
ARAPlanner anytime repairing A*, searching backward from the goal so that the search tree stays
valid while the start (the agent) moves.

Likhachev, M., Gordon, G. and Thrun, S. (2003) "ARA*: Anytime A* with Provable Bounds on
Sub-Optimality", NIPS 16.

Each Replan continues the current epsilon schedule. CostsChanged throws the search away and the
next Replan restarts from the initial epsilon. A new start only re-keys the open list, g-values
(cost-to-goal) stay valid.
*/
type ARAPlanner struct {
	graph environment.Graph

	start, goal environment.StateID

	initialEps  float64
	eps         float64
	solutionEps float64

	stopAtFirstSolution bool

	states    []araState
	open      *da.MinHeap[environment.StateID]
	incons    []environment.StateID
	iteration int
	search    int

	needsReinit  bool
	needsRekey   bool
	searchExists bool
	numExpanded  int
}

func NewARAPlanner(graph environment.Graph) *ARAPlanner {
	return &ARAPlanner{
		graph:       graph,
		start:       environment.INVALID_STATE_ID,
		goal:        environment.INVALID_STATE_ID,
		initialEps:  pkg.DEFAULT_INITIAL_EPSILON,
		eps:         pkg.DEFAULT_INITIAL_EPSILON,
		solutionEps: math.Inf(1),
		open:        da.NewFourAryHeap[environment.StateID](),
		incons:      make([]environment.StateID, 0),
		needsReinit: true,
	}
}

func (ara *ARAPlanner) valid(id environment.StateID) bool {
	return id >= 0 && int(id) < ara.graph.NumStates()
}

func (ara *ARAPlanner) SetStart(id environment.StateID) bool {
	if !ara.valid(id) {
		return false
	}
	if id != ara.start {
		ara.start = id
		ara.needsRekey = true
	}
	return true
}

func (ara *ARAPlanner) SetGoal(id environment.StateID) bool {
	if !ara.valid(id) {
		return false
	}
	if id != ara.goal {
		ara.goal = id
		ara.needsReinit = true
	}
	return true
}

func (ara *ARAPlanner) SetInitialEpsilon(eps float64) {
	ara.initialEps = math.Max(eps, FINAL_EPS)
	ara.needsReinit = true
}

func (ara *ARAPlanner) SetSearchMode(stopAtFirstSolution bool) {
	ara.stopAtFirstSolution = stopAtFirstSolution
}

// CostsChanged discards all search progress.
func (ara *ARAPlanner) CostsChanged() {
	ara.needsReinit = true
}

func (ara *ARAPlanner) SolutionEpsilon() float64 {
	return ara.solutionEps
}

// NumExpanded expansions of the last Replan.
func (ara *ARAPlanner) NumExpanded() int {
	return ara.numExpanded
}

func (ara *ARAPlanner) reinitialize() {
	n := ara.graph.NumStates()
	if len(ara.states) != n {
		ara.states = make([]araState, n)
	}
	ara.search++
	ara.open.Clear()
	ara.incons = ara.incons[:0]
	ara.iteration = 1
	ara.eps = ara.initialEps
	ara.solutionEps = math.Inf(1)

	goal := ara.state(ara.goal)
	goal.g = 0
	ara.insertOpen(ara.goal, goal)

	ara.needsReinit = false
	ara.needsRekey = false
	ara.searchExists = true
}

// state lazily resets states left over from an older search.
func (ara *ARAPlanner) state(id environment.StateID) *araState {
	s := &ara.states[id]
	if s.generated != ara.search {
		*s = araState{
			g:         pkg.INF_COST,
			bestNext:  environment.INVALID_STATE_ID,
			generated: ara.search,
		}
	}
	return s
}

func (ara *ARAPlanner) key(id environment.StateID, s *araState) (float64, float64) {
	h := float64(ara.graph.Heuristic(ara.start, id))
	return float64(s.g) + ara.eps*h, h
}

func (ara *ARAPlanner) insertOpen(id environment.StateID, s *araState) {
	k1, k2 := ara.key(id, s)
	if s.node != nil && s.node.InHeap() {
		heapUpdate(ara.open, s.node, k1, k2)
		return
	}
	s.node = da.NewPriorityQueueNodeWithTieBreak(k1, k2, id)
	ara.open.Insert(s.node)
}

// rekey moves INCONS into OPEN and recomputes every key with the current eps and start.
func (ara *ARAPlanner) rekey() {
	items := make([]environment.StateID, 0, ara.open.Size()+len(ara.incons))
	for _, n := range ara.open.Items() {
		items = append(items, n.GetItem())
	}
	for _, id := range ara.incons {
		ara.state(id).inIncons = false
		items = append(items, id)
	}
	ara.incons = ara.incons[:0]
	ara.open.Clear()
	for _, id := range items {
		ara.insertOpen(id, ara.state(id))
	}
	ara.needsRekey = false
}

// improvePath returns false if the budget ran out first.
func (ara *ARAPlanner) improvePath(clock *searchClock) bool {
	preds := make([]environment.Successor, 0, 16)
	for !ara.open.IsEmpty() {
		startState := ara.state(ara.start)
		minKey := ara.open.GetMinrank()
		if float64(startState.g) <= minKey {
			return true
		}
		if clock.Expired() {
			return false
		}

		top := heapPop(ara.open)
		u := top.GetItem()
		us := ara.state(u)
		us.closedIn = ara.iteration
		ara.numExpanded++

		preds = ara.graph.Predecessors(u, preds[:0])
		for _, p := range preds {
			ps := ara.state(p.ID)
			ng := addCost(us.g, p.Cost)
			if ng >= ps.g {
				continue
			}
			ps.g = ng
			ps.bestNext = u
			if ps.closedIn != ara.iteration {
				ara.insertOpen(p.ID, ps)
			} else if !ps.inIncons {
				ps.inIncons = true
				ara.incons = append(ara.incons, p.ID)
			}
		}
	}
	return true
}

func (ara *ARAPlanner) Replan(budget time.Duration) ([]environment.StateID, Result) {
	ara.numExpanded = 0
	if !ara.valid(ara.start) || !ara.valid(ara.goal) {
		return nil, NoSolution
	}
	if ara.needsReinit || !ara.searchExists {
		ara.reinitialize()
	} else if ara.needsRekey {
		ara.rekey()
	}

	clock := newSearchClock(budget)
	for {
		if !ara.improvePath(clock) {
			break
		}
		if ara.state(ara.start).g >= pkg.INF_COST {
			// OPEN exhausted: start is not connected to the goal
			break
		}
		ara.solutionEps = ara.eps
		if ara.stopAtFirstSolution || da.Le(ara.eps, FINAL_EPS) {
			break
		}
		ara.eps = decreaseEps(ara.eps)
		ara.iteration++
		ara.rekey()
		if clock.ExpiredNow() {
			break
		}
	}

	if ara.state(ara.start).g >= pkg.INF_COST {
		return nil, NoSolution
	}
	if math.IsInf(ara.solutionEps, 1) {
		// budget ran out inside the first iteration: report the eps that iteration was running with
		ara.solutionEps = ara.eps
	}
	return ara.extractPath(), Solved
}

func (ara *ARAPlanner) extractPath() []environment.StateID {
	path := []environment.StateID{ara.start}
	for s := ara.start; s != ara.goal; {
		next := ara.state(s).bestNext
		if next == environment.INVALID_STATE_ID || len(path) > ara.graph.NumStates() {
			return nil
		}
		path = append(path, next)
		s = next
	}
	return path
}
