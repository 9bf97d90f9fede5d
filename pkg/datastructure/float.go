package datastructure

const (
	EPS = 1e-6
)

// Le reports a <= b with EPS tolerance, for suboptimality bounds reached by repeated subtraction.
func Le(a, b float64) bool {
	return a <= b+EPS
}
