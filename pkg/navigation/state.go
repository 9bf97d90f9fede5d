package navigation

// State of the navigation loop within one cycle.
type State uint8

const (
	StateSensing State = iota
	StatePropagating
	StateNotifying
	StatePlanning
	StateAdvancing
	StateTerminated
)

var stateNames = [...]string{
	StateSensing:     "sensing",
	StatePropagating: "propagating",
	StateNotifying:   "notifying",
	StatePlanning:    "planning",
	StateAdvancing:   "advancing",
	StateTerminated:  "terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
