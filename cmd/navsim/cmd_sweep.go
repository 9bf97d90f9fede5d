package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/planner"
	"github.com/lintang-b-s/gridnav/pkg/simulation"
	"github.com/spf13/cobra"
)

var (
	sweepMaps    int
	sweepWorkers int
	sweepGen     costmap.GenerateOptions

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Runs every planner over many random maps on a worker pool",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
)

func init() {
	flags := sweepCmd.Flags()
	flags.IntVar(&sweepMaps, "maps", 20, "number of random maps")
	flags.IntVar(&sweepWorkers, "workers", 0, "concurrent runs, 0 for one per CPU")
	addGenerateFlags(flags, &sweepGen)
}

type sweepAggregate struct {
	runs, reached, cycles int
	planningSeconds       float64
}

func runSweep(cmd *cobra.Command, args []string) error {
	scenarios, err := simulation.GenerateScenarios(sweepMaps, sweepGen)
	if err != nil {
		return err
	}
	jobs := simulation.CrossJobs(scenarios, planner.Families())
	outcomes := simulation.NewRunner(params, nil, log).RunBatch(cmd.Context(), jobs, sweepWorkers)

	agg := map[planner.Family]*sweepAggregate{}
	for _, f := range planner.Families() {
		agg[f] = &sweepAggregate{}
	}
	for _, o := range outcomes {
		a := agg[o.Family]
		a.runs++
		if o.Err == nil && o.Result.GoalReached {
			a.reached++
		}
		a.cycles += o.Result.Cycles
		a.planningSeconds += o.PlanningSeconds
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "planner\truns\treached\tmean cycles\tmean planning s/cycle")
	for _, f := range planner.Families() {
		a := agg[f]
		meanCycles, perCycle := 0.0, 0.0
		if a.runs > 0 {
			meanCycles = float64(a.cycles) / float64(a.runs)
		}
		if a.cycles > 0 {
			perCycle = a.planningSeconds / float64(a.cycles)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.5f\n", f, a.runs, a.reached, meanCycles, perCycle)
	}
	return tw.Flush()
}
