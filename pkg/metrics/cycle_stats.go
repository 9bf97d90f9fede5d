// Package metrics keeps the per-cycle planning records of a navigation run and summarizes their
// latencies.
package metrics

import (
	"fmt"
	"io"

	"github.com/lintang-b-s/gridnav/pkg/costmap"
)

// CycleRecord one navigation cycle.
type CycleRecord struct {
	Cycle           int
	Start           costmap.Cell
	PlanningSeconds float64
	SolutionEpsilon float64
	ChangedCells    int
}

// Bands planning latency histogram: strictly over 1s, over 0.5s, over 0.1s, over 0.05s, and the rest.
type Bands struct {
	Over1    int
	Over05   int
	Over01   int
	Over005  int
	Below005 int
}

func (b *Bands) add(seconds float64) {
	switch {
	case seconds > 1:
		b.Over1++
	case seconds > 0.5:
		b.Over05++
	case seconds > 0.1:
		b.Over01++
	case seconds > 0.05:
		b.Over005++
	default:
		b.Below005++
	}
}

// CycleStats accumulates the records of one run. Not safe for concurrent use.
type CycleStats struct {
	planner string
	records []CycleRecord
	bands   Bands
	metrics *PlanningMetrics
}

// NewCycleStats pm may be nil.
func NewCycleStats(planner string, pm *PlanningMetrics) *CycleStats {
	return &CycleStats{
		planner: planner,
		records: make([]CycleRecord, 0),
		metrics: pm,
	}
}

func (cs *CycleStats) Record(rec CycleRecord) {
	cs.records = append(cs.records, rec)
	cs.bands.add(rec.PlanningSeconds)
	if cs.metrics != nil {
		cs.metrics.observeCycle(cs.planner, rec.PlanningSeconds, rec.ChangedCells)
	}
}

func (cs *CycleStats) Records() []CycleRecord {
	out := make([]CycleRecord, len(cs.records))
	copy(out, cs.records)
	return out
}

func (cs *CycleStats) Len() int {
	return len(cs.records)
}

func (cs *CycleStats) Bands() Bands {
	return cs.bands
}

// TotalPlanningSeconds sum over all cycles.
func (cs *CycleStats) TotalPlanningSeconds() float64 {
	total := 0.0
	for _, r := range cs.records {
		total += r.PlanningSeconds
	}
	return total
}

// WriteSummary writes the latency bands line.
func (cs *CycleStats) WriteSummary(w io.Writer) error {
	b := cs.bands
	_, err := fmt.Fprintf(w,
		"stats: plantimes over 1 secs=%d; over 0.5; secs=%d; over 0.1 secs=%d; over 0.05 secs=%d; below 0.05 secs=%d\n",
		b.Over1, b.Over05, b.Over01, b.Over005, b.Below005)
	return err
}
