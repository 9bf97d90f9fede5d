// Package planner wraps the incremental and anytime search algorithms the navigation loop can
// drive. Every planner honours its own wall-clock budget in Replan.
package planner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lintang-b-s/gridnav/pkg/environment"
	"github.com/lintang-b-s/gridnav/pkg/util"
)

// Result of a Replan call.
type Result uint8

const (
	NoSolution Result = iota
	Solved
)

func (r Result) String() string {
	if r == Solved {
		return "solved"
	}
	return "no_solution"
}

// Family of planners, selected once at construction. Change notification is dispatched on it.
type Family uint8

const (
	// FamilyFullAnytimeReplanning ARA*: a cost change discards cached progress.
	FamilyFullAnytimeReplanning Family = iota
	// FamilyIncrementalForwardRepair AD*: repairs only around the changed edges.
	FamilyIncrementalForwardRepair
	// FamilyRandomizedDecomposition R*: searches from scratch on every call.
	FamilyRandomizedDecomposition
	// FamilyAnytimeNonAdmissible ANA*: searches from scratch on every call.
	FamilyAnytimeNonAdmissible
)

var ErrUnknownFamily = errors.New("planner: unknown planner family")

var familyNames = map[Family]string{
	FamilyFullAnytimeReplanning:    "arastar",
	FamilyIncrementalForwardRepair: "adstar",
	FamilyRandomizedDecomposition:  "rstar",
	FamilyAnytimeNonAdmissible:     "anastar",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// Families all planner families, in declaration order.
func Families() []Family {
	return []Family{
		FamilyFullAnytimeReplanning,
		FamilyIncrementalForwardRepair,
		FamilyRandomizedDecomposition,
		FamilyAnytimeNonAdmissible,
	}
}

// ParseFamily accepts arastar, adstar, rstar, anastar (case insensitive).
func ParseFamily(name string) (Family, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, util.WrapErrorf(nil, ErrUnknownFamily, "planner: unknown planner %q", name)
}

// Planner is the capability shared by every family.
type Planner interface {
	SetStart(id environment.StateID) bool
	SetGoal(id environment.StateID) bool
	SetInitialEpsilon(eps float64)
	SetSearchMode(stopAtFirstSolution bool)
	// Replan returns a path from the current start to the goal, start and goal included.
	Replan(budget time.Duration) ([]environment.StateID, Result)
	// SolutionEpsilon suboptimality bound of the last returned solution.
	SolutionEpsilon() float64
}

// CostsChangedNotifier is implemented by full-anytime-replanning planners.
type CostsChangedNotifier interface {
	CostsChanged()
}

// EdgeRepairer is implemented by incremental-forward-repair planners.
type EdgeRepairer interface {
	UpdatePredecessorsOfChangedEdges(states []environment.StateID)
}
