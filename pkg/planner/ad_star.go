package planner

import (
	"math"
	"time"

	"github.com/lintang-b-s/gridnav/pkg"
	da "github.com/lintang-b-s/gridnav/pkg/datastructure"
	"github.com/lintang-b-s/gridnav/pkg/environment"
)

type adState struct {
	g, rhs   int
	node     *da.PriorityQueueNode[environment.StateID]
	closedIn int
	inIncons bool
}

/*
ADStarPlanner anytime dynamic A*: a backward incremental search whose overconsistent states are
keyed with an inflated heuristic, so a first bounded solution comes cheap and later Replans tighten
it while only the part of the search tree touched by changed edges is repaired.

Likhachev, M., Ferguson, D., Gordon, G., Stentz, A. and Thrun, S. (2005) "Anytime Dynamic A*: An
Anytime, Replanning Algorithm", ICAPS-05.

Each Replan continues the epsilon schedule. Changed edges restart it from the initial epsilon.
When the budget runs out mid-iteration the path is read off the current g-values.
*/
type ADStarPlanner struct {
	graph environment.Graph

	start, goal environment.StateID

	initialEps  float64
	eps         float64
	solutionEps float64

	stopAtFirstSolution bool

	states    []adState
	open      *da.MinHeap[environment.StateID]
	incons    []environment.StateID
	iteration int

	initialized  bool
	needsRekey   bool
	edgesChanged bool
	numExpanded  int
	numRepaired  int
}

func NewADStarPlanner(graph environment.Graph) *ADStarPlanner {
	return &ADStarPlanner{
		graph:       graph,
		start:       environment.INVALID_STATE_ID,
		goal:        environment.INVALID_STATE_ID,
		initialEps:  pkg.DEFAULT_INITIAL_EPSILON,
		eps:         pkg.DEFAULT_INITIAL_EPSILON,
		solutionEps: math.Inf(1),
		open:        da.NewFourAryHeap[environment.StateID](),
		incons:      make([]environment.StateID, 0),
	}
}

func (ad *ADStarPlanner) valid(id environment.StateID) bool {
	return id >= 0 && int(id) < ad.graph.NumStates()
}

func (ad *ADStarPlanner) SetStart(id environment.StateID) bool {
	if !ad.valid(id) {
		return false
	}
	if id != ad.start {
		ad.start = id
		ad.needsRekey = true
	}
	return true
}

func (ad *ADStarPlanner) SetGoal(id environment.StateID) bool {
	if !ad.valid(id) {
		return false
	}
	if id != ad.goal {
		ad.goal = id
		ad.initialized = false
	}
	return true
}

func (ad *ADStarPlanner) SetInitialEpsilon(eps float64) {
	ad.initialEps = math.Max(eps, FINAL_EPS)
	ad.initialized = false
}

func (ad *ADStarPlanner) SetSearchMode(stopAtFirstSolution bool) {
	ad.stopAtFirstSolution = stopAtFirstSolution
}

func (ad *ADStarPlanner) SolutionEpsilon() float64 {
	return ad.solutionEps
}

// NumExpanded expansions of the last Replan.
func (ad *ADStarPlanner) NumExpanded() int {
	return ad.numExpanded
}

// NumRepaired states re-evaluated by the last UpdatePredecessorsOfChangedEdges.
func (ad *ADStarPlanner) NumRepaired() int {
	return ad.numRepaired
}

func (ad *ADStarPlanner) initialize() {
	n := ad.graph.NumStates()
	ad.states = make([]adState, n)
	for i := range ad.states {
		ad.states[i] = adState{g: pkg.INF_COST, rhs: pkg.INF_COST}
	}
	ad.open.Clear()
	ad.incons = ad.incons[:0]
	ad.iteration = 1
	ad.eps = ad.initialEps
	ad.solutionEps = math.Inf(1)

	ad.states[ad.goal].rhs = 0
	ad.pushOrUpdate(ad.goal)

	ad.initialized = true
	ad.needsRekey = false
	ad.edgesChanged = false
}

// key inflates the heuristic only for overconsistent states; underconsistent ones must be
// propagated with an admissible key.
func (ad *ADStarPlanner) key(id environment.StateID) (float64, float64) {
	s := &ad.states[id]
	h := float64(ad.graph.Heuristic(ad.start, id))
	if s.g > s.rhs {
		return float64(s.rhs) + ad.eps*h, float64(s.rhs)
	}
	if s.g >= pkg.INF_COST {
		return float64(pkg.INF_COST), float64(pkg.INF_COST)
	}
	return float64(s.g) + h, float64(s.g)
}

func keyLess(a1, a2, b1, b2 float64) bool {
	if a1 != b1 {
		return a1 < b1
	}
	return a2 < b2
}

func (ad *ADStarPlanner) pushOrUpdate(id environment.StateID) {
	s := &ad.states[id]
	k1, k2 := ad.key(id)
	if s.node != nil && s.node.InHeap() {
		heapUpdate(ad.open, s.node, k1, k2)
		return
	}
	s.node = da.NewPriorityQueueNodeWithTieBreak(k1, k2, id)
	ad.open.Insert(s.node)
}

// updateMembership puts an inconsistent state in OPEN, or in INCONS when it was already expanded
// in the current iteration.
func (ad *ADStarPlanner) updateMembership(id environment.StateID) {
	s := &ad.states[id]
	if s.g != s.rhs {
		if s.closedIn != ad.iteration {
			ad.pushOrUpdate(id)
		} else if !s.inIncons {
			s.inIncons = true
			ad.incons = append(ad.incons, id)
		}
		return
	}
	if s.node != nil && s.node.InHeap() {
		heapRemove(ad.open, s.node)
	}
}

func (ad *ADStarPlanner) recomputeRhs(id environment.StateID, succs []environment.Successor) []environment.Successor {
	if id == ad.goal {
		return succs
	}
	best := pkg.INF_COST
	succs = ad.graph.Successors(id, succs[:0])
	for _, e := range succs {
		best = min(best, addCost(e.Cost, ad.states[e.ID].g))
	}
	ad.states[id].rhs = best
	return succs
}

// UpdatePredecessorsOfChangedEdges re-evaluates rhs of the sources of the changed edges.
func (ad *ADStarPlanner) UpdatePredecessorsOfChangedEdges(states []environment.StateID) {
	ad.numRepaired = 0
	if !ad.initialized {
		return
	}
	succs := make([]environment.Successor, 0, 16)
	for _, id := range states {
		if !ad.valid(id) {
			continue
		}
		succs = ad.recomputeRhs(id, succs)
		ad.updateMembership(id)
		ad.numRepaired++
	}
	if ad.numRepaired > 0 {
		ad.edgesChanged = true
	}
}

// beginIteration moves INCONS into OPEN, re-keys OPEN with the current eps and start and empties CLOSED.
func (ad *ADStarPlanner) beginIteration() {
	ad.iteration++
	items := make([]environment.StateID, 0, ad.open.Size()+len(ad.incons))
	for _, n := range ad.open.Items() {
		items = append(items, n.GetItem())
	}
	for _, id := range ad.incons {
		ad.states[id].inIncons = false
		if s := &ad.states[id]; s.g != s.rhs {
			items = append(items, id)
		}
	}
	ad.incons = ad.incons[:0]
	ad.open.Clear()
	for _, id := range items {
		ad.pushOrUpdate(id)
	}
	ad.needsRekey = false
}

// computeOrImprovePath returns false if the budget ran out first.
func (ad *ADStarPlanner) computeOrImprovePath(clock *searchClock) bool {
	preds := make([]environment.Successor, 0, 16)
	succs := make([]environment.Successor, 0, 16)
	for !ad.open.IsEmpty() {
		top, err := ad.open.GetMin()
		if err != nil {
			panic(err)
		}
		sk1, sk2 := ad.key(ad.start)
		start := &ad.states[ad.start]
		if !keyLess(top.GetRank(), top.GetTieBreak(), sk1, sk2) && start.rhs == start.g {
			return true
		}
		if clock.Expired() {
			return false
		}

		heapRemove(ad.open, top)
		u := top.GetItem()
		us := &ad.states[u]
		ad.numExpanded++

		preds = ad.graph.Predecessors(u, preds[:0])
		if us.g > us.rhs {
			us.g = us.rhs
			us.closedIn = ad.iteration
			for _, p := range preds {
				ps := &ad.states[p.ID]
				if p.ID != ad.goal {
					ps.rhs = min(ps.rhs, addCost(p.Cost, us.g))
				}
				ad.updateMembership(p.ID)
			}
			continue
		}

		oldG := us.g
		us.g = pkg.INF_COST
		for _, p := range preds {
			if ad.states[p.ID].rhs == addCost(p.Cost, oldG) {
				succs = ad.recomputeRhs(p.ID, succs)
			}
			ad.updateMembership(p.ID)
		}
		ad.updateMembership(u)
	}
	return true
}

func (ad *ADStarPlanner) Replan(budget time.Duration) ([]environment.StateID, Result) {
	ad.numExpanded = 0
	if !ad.valid(ad.start) || !ad.valid(ad.goal) {
		return nil, NoSolution
	}
	switch {
	case !ad.initialized:
		ad.initialize()
	case ad.edgesChanged:
		ad.edgesChanged = false
		ad.eps = ad.initialEps
		ad.solutionEps = math.Inf(1)
		ad.beginIteration()
	case ad.needsRekey:
		ad.beginIteration()
	}

	clock := newSearchClock(budget)
	for {
		if !ad.computeOrImprovePath(clock) {
			break
		}
		if ad.states[ad.start].g >= pkg.INF_COST {
			// OPEN exhausted: start is not connected to the goal
			break
		}
		ad.solutionEps = ad.eps
		if ad.stopAtFirstSolution || da.Le(ad.eps, FINAL_EPS) {
			break
		}
		ad.eps = decreaseEps(ad.eps)
		ad.beginIteration()
		if clock.ExpiredNow() {
			break
		}
	}

	start := &ad.states[ad.start]
	if min(start.g, start.rhs) >= pkg.INF_COST {
		return nil, NoSolution
	}
	path := ad.extractPath()
	if path == nil {
		return nil, NoSolution
	}
	if math.IsInf(ad.solutionEps, 1) {
		// budget ran out inside the first iteration: report the eps that iteration was running with
		ad.solutionEps = ad.eps
	}
	return path, Solved
}

// extractPath greedily follows argmin c(s,s') + g(s') from the start.
func (ad *ADStarPlanner) extractPath() []environment.StateID {
	path := []environment.StateID{ad.start}
	succs := make([]environment.Successor, 0, 16)
	for s := ad.start; s != ad.goal; {
		best, bestCost := environment.INVALID_STATE_ID, pkg.INF_COST
		succs = ad.graph.Successors(s, succs[:0])
		for _, e := range succs {
			if c := addCost(e.Cost, ad.states[e.ID].g); c < bestCost {
				best, bestCost = e.ID, c
			}
		}
		if best == environment.INVALID_STATE_ID || len(path) > ad.graph.NumStates() {
			return nil
		}
		path = append(path, best)
		s = best
	}
	return path
}
