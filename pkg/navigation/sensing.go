package navigation

import (
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/util"
)

// CostUpdater receives every belief correction made by Sense.
type CostUpdater interface {
	UpdateCost(c costmap.Cell, cost uint8) error
}

// Sense copies the true cost of every cell of the (2*radius+1)^2 window around pose into belief
// and env, and returns the cells whose belief actually changed. Cells outside the map are skipped.
func Sense(truth, belief *costmap.CostMap, env CostUpdater, pose costmap.Cell, radius int) ([]costmap.Cell, error) {
	var changed []costmap.Cell
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			c := costmap.NewCell(pose.X+dx, pose.Y+dy)
			if !truth.InBounds(c) {
				continue
			}
			trueCost, err := truth.Get(c)
			if err != nil {
				return nil, err
			}
			ok, err := belief.Set(c, trueCost)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if err := env.UpdateCost(c, trueCost); err != nil {
				return nil, util.WrapErrorf(err, ErrConfiguration, "navigation: environment rejected cost of %v", c)
			}
			changed = append(changed, c)
		}
	}
	return changed, nil
}
