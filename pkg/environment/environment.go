// Package environment defines the search-graph capability the navigation loop and the planners
// consume, and ships a 2D grid implementation of it (Nav2D).
package environment

import (
	"errors"
	"math/rand"

	"github.com/lintang-b-s/gridnav/pkg/costmap"
)

// StateID identifies a state of the search graph. Only an Environment allocates them.
type StateID int

const INVALID_STATE_ID StateID = -1

var (
	ErrInvalidState   = errors.New("environment: invalid state id")
	ErrNotInitialized = errors.New("environment: not initialized")
	ErrConnectivity   = errors.New("environment: connectivity must be 8 or 16")
)

// Extents are the map size, endpoints and obstacle threshold of an initialized environment.
type Extents struct {
	Width             int
	Height            int
	Start             costmap.Cell
	Goal              costmap.Cell
	ObstacleThreshold uint8
}

// Environment is what the navigation loop needs from the discretized world.
type Environment interface {
	InitializeFromConfig(path string) error
	CellToStateID(c costmap.Cell) (StateID, error)
	StateIDToCell(id StateID) (costmap.Cell, error)
	// PredecessorsAffectedByCell states whose outgoing edge costs depend on the cost of c.
	PredecessorsAffectedByCell(c costmap.Cell) []StateID
	UpdateCost(c costmap.Cell, cost uint8) error
	MapExtentsAndEndpoints() Extents
}

// Successor an edge endpoint with its cost.
type Successor struct {
	ID   StateID
	Cost int
}

// Graph is what the planners search over.
type Graph interface {
	NumStates() int
	// Successors appends the out-edges of id to out and returns it.
	Successors(id StateID, out []Successor) []Successor
	// Predecessors appends the in-edges of id to out and returns it. Successor.ID is the edge source.
	Predecessors(id StateID, out []Successor) []Successor
	// Heuristic admissible estimate of the cost from -> to.
	Heuristic(from, to StateID) int
}

// SearchEnvironment is both capabilities, as implemented by Nav2D.
type SearchEnvironment interface {
	Environment
	Graph
}

// Sampler draws random states around a state, as needed by randomized decomposition planners.
type Sampler interface {
	// RandomStatesAtDistance up to k distinct states exactly distance steps away from id.
	RandomStatesAtDistance(id StateID, distance, k int, rd *rand.Rand) []StateID
	// WithinDistance true if b is at most distance steps away from a.
	WithinDistance(a, b StateID, distance int) bool
}

// SamplingGraph is a Graph that also supports random sampling.
type SamplingGraph interface {
	Graph
	Sampler
}
