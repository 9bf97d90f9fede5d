package pkg

const (
	INF_WEIGHT float64 = 1e15
	// INF_COST is the integer edge/path cost used by the planners for "unreachable".
	INF_COST int = 1_000_000_000
)

// defaults of the navigation run
const (
	DEFAULT_TIME_BUDGET_SECONDS = 0.2
	DEFAULT_SENSING_RADIUS      = 2
	DEFAULT_GOAL_THRESHOLD      = 0
	DEFAULT_INITIAL_EPSILON     = 2.0
	DEFAULT_PLANNER             = "arastar"
	DEFAULT_CONNECTIVITY        = 16
	DEFAULT_SOLUTION_PATH       = "sol.txt"
	DEFAULT_SEED                = 0
)

// nav2d cost model: the cost of moving one cell is CELL_SIZE_MM (times sqrt(2) or sqrt(5) for diagonal/knight moves)
// multiplied by 1 + max(cell cost) over the touched cells.
const (
	CELL_SIZE_MM = 1000
)
