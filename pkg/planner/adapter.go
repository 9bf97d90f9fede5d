package planner

import (
	"time"

	"github.com/lintang-b-s/gridnav/pkg/environment"
	"github.com/lintang-b-s/gridnav/pkg/util"
	"go.uber.org/zap"
)

// Options for NewAdapter.
type Options struct {
	InitialEpsilon      float64
	StopAtFirstSolution bool
	// Seed of the randomized planners.
	Seed int64
}

// Adapter is the single planner capability the navigation loop talks to. The family tag is fixed at
// construction and selects how cost changes are forwarded.
type Adapter struct {
	family  Family
	planner Planner

	full        CostsChangedNotifier
	incremental EdgeRepairer

	logger *zap.Logger
}

// NewAdapter builds the concrete planner of family over graph and applies opts.
func NewAdapter(family Family, graph environment.SamplingGraph, opts Options, logger *zap.Logger) (*Adapter, error) {
	var a *Adapter
	switch family {
	case FamilyFullAnytimeReplanning:
		a = NewFullAnytimeAdapter(NewARAPlanner(graph), logger)
	case FamilyIncrementalForwardRepair:
		a = NewIncrementalAdapter(NewADStarPlanner(graph), logger)
	case FamilyRandomizedDecomposition:
		rOpts := DefaultRStarOptions()
		rOpts.Seed = opts.Seed
		a = NewNonIncrementalAdapter(family, NewRStarPlanner(graph, rOpts), logger)
	case FamilyAnytimeNonAdmissible:
		a = NewNonIncrementalAdapter(family, NewANAPlanner(graph), logger)
	default:
		return nil, util.WrapErrorf(nil, ErrUnknownFamily, "planner: cannot build %v", family)
	}

	a.planner.SetInitialEpsilon(opts.InitialEpsilon)
	a.planner.SetSearchMode(opts.StopAtFirstSolution)
	logger.Info("Initialized planner", zap.String("family", family.String()),
		zap.Float64("initial_eps", opts.InitialEpsilon), zap.Bool("stop_at_first_solution", opts.StopAtFirstSolution))
	return a, nil
}

// NewFullAnytimeAdapter wraps a planner that can only discard its progress on a cost change.
func NewFullAnytimeAdapter(p interface {
	Planner
	CostsChangedNotifier
}, logger *zap.Logger) *Adapter {
	return &Adapter{family: FamilyFullAnytimeReplanning, planner: p, full: p, logger: logger}
}

// NewIncrementalAdapter wraps a planner that repairs around the sources of the changed edges.
func NewIncrementalAdapter(p interface {
	Planner
	EdgeRepairer
}, logger *zap.Logger) *Adapter {
	return &Adapter{family: FamilyIncrementalForwardRepair, planner: p, incremental: p, logger: logger}
}

// NewNonIncrementalAdapter wraps a planner that is not told about cost changes.
func NewNonIncrementalAdapter(family Family, p Planner, logger *zap.Logger) *Adapter {
	return &Adapter{family: family, planner: p, logger: logger}
}

func (a *Adapter) Family() Family {
	return a.family
}

func (a *Adapter) SetStart(id environment.StateID) bool {
	return a.planner.SetStart(id)
}

func (a *Adapter) SetGoal(id environment.StateID) bool {
	return a.planner.SetGoal(id)
}

func (a *Adapter) SetInitialEpsilon(eps float64) {
	a.planner.SetInitialEpsilon(eps)
}

func (a *Adapter) SetSearchMode(stopAtFirstSolution bool) {
	a.planner.SetSearchMode(stopAtFirstSolution)
}

func (a *Adapter) Replan(budget time.Duration) ([]environment.StateID, Result) {
	return a.planner.Replan(budget)
}

func (a *Adapter) SolutionEpsilon() float64 {
	return a.planner.SolutionEpsilon()
}

// Notify forwards a non-empty set of states whose outgoing edges changed.
// Returns false when the family ignores cost changes.
func (a *Adapter) Notify(affected []environment.StateID) bool {
	switch a.family {
	case FamilyFullAnytimeReplanning:
		a.full.CostsChanged()
		a.logger.Debug("costs changed, anytime search restarts", zap.Int("affected_states", len(affected)))
		return true
	case FamilyIncrementalForwardRepair:
		a.incremental.UpdatePredecessorsOfChangedEdges(affected)
		a.logger.Debug("repairing predecessors of changed edges", zap.Int("affected_states", len(affected)))
		return true
	default:
		return false
	}
}
