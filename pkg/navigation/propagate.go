package navigation

import (
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/environment"
)

// AffectedPredecessors maps a cell to the states whose outgoing edges depend on its cost.
type AffectedPredecessors interface {
	PredecessorsAffectedByCell(c costmap.Cell) []environment.StateID
}

// Propagate unions the affected predecessors of every changed cell, in first-seen order.
// Returns nil when nothing changed.
func Propagate(env AffectedPredecessors, changed []costmap.Cell) []environment.StateID {
	if len(changed) == 0 {
		return nil
	}
	seen := make(map[environment.StateID]struct{}, 16*len(changed))
	var affected []environment.StateID
	for _, c := range changed {
		for _, id := range env.PredecessorsAffectedByCell(c) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			affected = append(affected, id)
		}
	}
	return affected
}
