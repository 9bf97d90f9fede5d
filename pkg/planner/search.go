package planner

import (
	"time"

	"github.com/lintang-b-s/gridnav/pkg"
	da "github.com/lintang-b-s/gridnav/pkg/datastructure"
	"github.com/lintang-b-s/gridnav/pkg/environment"
)

const (
	// DECREASE_EPS step between two anytime iterations.
	DECREASE_EPS = 0.2
	// FINAL_EPS no anytime planner goes below it.
	FINAL_EPS = 1.0

	clockCheckInterval = 32
)

// searchClock checks the deadline every clockCheckInterval ticks.
type searchClock struct {
	deadline time.Time
	ticks    int
	expired  bool
}

func newSearchClock(budget time.Duration) *searchClock {
	return &searchClock{deadline: time.Now().Add(budget)}
}

func (c *searchClock) Expired() bool {
	if c.expired {
		return true
	}
	c.ticks++
	if c.ticks%clockCheckInterval == 0 && !time.Now().Before(c.deadline) {
		c.expired = true
	}
	return c.expired
}

// ExpiredNow checks the deadline immediately.
func (c *searchClock) ExpiredNow() bool {
	if !c.expired && !time.Now().Before(c.deadline) {
		c.expired = true
	}
	return c.expired
}

// decreaseEps next epsilon of an anytime schedule, snapped to FINAL_EPS so repeated subtraction
// cannot leave it a rounding error above.
func decreaseEps(eps float64) float64 {
	next := eps - DECREASE_EPS
	if da.Le(next, FINAL_EPS) {
		return FINAL_EPS
	}
	return next
}

// heapPop, heapUpdate and heapRemove panic when the heap invariant is broken: every caller checks
// IsEmpty or InHeap first.
func heapPop[T comparable](h *da.MinHeap[T]) *da.PriorityQueueNode[T] {
	n, err := h.ExtractMin()
	if err != nil {
		panic(err)
	}
	return n
}

func heapUpdate[T comparable](h *da.MinHeap[T], n *da.PriorityQueueNode[T], rank, tieBreak float64) {
	if err := h.Update(n, rank, tieBreak); err != nil {
		panic(err)
	}
}

func heapRemove[T comparable](h *da.MinHeap[T], n *da.PriorityQueueNode[T]) {
	if err := h.Remove(n); err != nil {
		panic(err)
	}
}

func addCost(a, b int) int {
	if a >= pkg.INF_COST || b >= pkg.INF_COST {
		return pkg.INF_COST
	}
	return a + b
}

// localSearchStatus outcome of a bounded point-to-point search.
type localSearchStatus uint8

const (
	localFound localSearchStatus = iota
	localExpansionLimit
	localUnreachable
	localTimeout
)

type localNode struct {
	g      int
	parent environment.StateID
	node   *da.PriorityQueueNode[environment.StateID]
	closed bool
}

// weightedAStar forward weighted A* from -> to. expansionLimit <= 0 means unlimited.
// The returned path contains both endpoints.
func weightedAStar(g environment.Graph, from, to environment.StateID, eps float64, expansionLimit int,
	clock *searchClock) ([]environment.StateID, int, localSearchStatus) {
	if from == to {
		return []environment.StateID{from}, 0, localFound
	}

	info := map[environment.StateID]*localNode{}
	pq := da.NewFourAryHeap[environment.StateID]()
	key := func(s environment.StateID, gs int) (float64, float64) {
		h := float64(g.Heuristic(s, to))
		return float64(gs) + eps*h, h
	}

	start := &localNode{g: 0, parent: environment.INVALID_STATE_ID}
	k1, k2 := key(from, 0)
	start.node = da.NewPriorityQueueNodeWithTieBreak(k1, k2, from)
	info[from] = start
	pq.Insert(start.node)

	succs := make([]environment.Successor, 0, 16)
	expansions := 0
	for !pq.IsEmpty() {
		if clock.Expired() {
			return nil, 0, localTimeout
		}
		if expansionLimit > 0 && expansions >= expansionLimit {
			return nil, 0, localExpansionLimit
		}
		top := heapPop(pq)
		u := top.GetItem()
		un := info[u]
		un.closed = true
		expansions++

		if u == to {
			return tracePath(info, to), un.g, localFound
		}

		succs = g.Successors(u, succs[:0])
		for _, s := range succs {
			ng := addCost(un.g, s.Cost)
			sn, ok := info[s.ID]
			if ok && (sn.closed || sn.g <= ng) {
				continue
			}
			k1, k2 := key(s.ID, ng)
			if !ok {
				sn = &localNode{parent: u, g: ng}
				sn.node = da.NewPriorityQueueNodeWithTieBreak(k1, k2, s.ID)
				info[s.ID] = sn
				pq.Insert(sn.node)
				continue
			}
			sn.g = ng
			sn.parent = u
			heapUpdate(pq, sn.node, k1, k2)
		}
	}
	return nil, 0, localUnreachable
}

func tracePath(info map[environment.StateID]*localNode, to environment.StateID) []environment.StateID {
	path := []environment.StateID{}
	for s := to; s != environment.INVALID_STATE_ID; s = info[s].parent {
		path = append(path, s)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
