package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PlanningMetrics prometheus collectors shared by every loop of a process.
type PlanningMetrics struct {
	planningSeconds *prometheus.HistogramVec
	cycles          *prometheus.CounterVec
	changedCells    *prometheus.CounterVec
}

// NewPlanningMetrics registers the collectors on reg. Histogram buckets are the latency bands of CycleStats.
func NewPlanningMetrics(reg prometheus.Registerer) (*PlanningMetrics, error) {
	pm := &PlanningMetrics{
		planningSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gridnav",
			Name:      "planning_duration_seconds",
			Help:      "Wall-clock duration of one Replan call",
			Buckets:   []float64{0.05, 0.1, 0.5, 1},
		}, []string{"planner"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridnav",
			Name:      "cycles_total",
			Help:      "Navigation cycles run",
		}, []string{"planner"}),
		changedCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridnav",
			Name:      "changed_cells_total",
			Help:      "Cells whose believed cost was corrected by sensing",
		}, []string{"planner"}),
	}

	for _, c := range []prometheus.Collector{pm.planningSeconds, pm.cycles, pm.changedCells} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

func (pm *PlanningMetrics) observeCycle(planner string, seconds float64, changed int) {
	pm.planningSeconds.WithLabelValues(planner).Observe(seconds)
	pm.cycles.WithLabelValues(planner).Inc()
	pm.changedCells.WithLabelValues(planner).Add(float64(changed))
}
