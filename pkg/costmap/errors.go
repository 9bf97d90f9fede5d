package costmap

import "errors"

var (
	// ErrOutOfBounds indicates a cell outside [0,width)x[0,height).
	ErrOutOfBounds = errors.New("costmap: cell out of bounds")
	// ErrEmptyMap indicates a width or height below one.
	ErrEmptyMap = errors.New("costmap: map must have at least one row and one column")
	// ErrMalformedConfig indicates an environment config file that could not be parsed.
	ErrMalformedConfig = errors.New("costmap: malformed environment config")
	// ErrNoFeasibleMap indicates the generator gave up finding a map with a start-goal path.
	ErrNoFeasibleMap = errors.New("costmap: could not generate a feasible map")
)
