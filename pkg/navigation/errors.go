package navigation

import "errors"

var (
	// ErrConfiguration a start or goal rejected by the planner, or inconsistent loop inputs.
	ErrConfiguration = errors.New("navigation: configuration error")
	// ErrPlanning a solved plan that cannot be followed.
	ErrPlanning = errors.New("navigation: planning error")
	// ErrNavigationFailure no solution, or a next step on a true obstacle.
	ErrNavigationFailure = errors.New("navigation: navigation failure")
)
