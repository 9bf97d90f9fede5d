// Package simulation runs complete navigation runs: one map and planner at a time, or a batch of
// independent runs on a worker pool.
package simulation

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/lintang-b-s/gridnav/pkg/concurrent"
	"github.com/lintang-b-s/gridnav/pkg/config"
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/environment"
	"github.com/lintang-b-s/gridnav/pkg/metrics"
	"github.com/lintang-b-s/gridnav/pkg/navigation"
	"github.com/lintang-b-s/gridnav/pkg/planner"
	"go.uber.org/zap"
)

// Scenario a true map with its endpoints.
type Scenario struct {
	Name   string
	Config *costmap.EnvConfig
}

// Job one run of the batch.
type Job struct {
	Scenario Scenario
	Family   planner.Family
}

// Outcome of one Job. Err is nil when the goal was reached.
type Outcome struct {
	Scenario        string
	Family          planner.Family
	Result          navigation.Result
	Bands           metrics.Bands
	PlanningSeconds float64
	Err             error
}

type Runner struct {
	params  config.RunParams
	metrics *metrics.PlanningMetrics
	logger  *zap.Logger
}

// NewRunner pm may be nil.
func NewRunner(params config.RunParams, pm *metrics.PlanningMetrics, logger *zap.Logger) *Runner {
	return &Runner{
		params:  params,
		metrics: pm,
		logger:  logger,
	}
}

// NewBeliefEnvironment an environment over an all-free map with the extents, threshold and endpoints of cfg.
func NewBeliefEnvironment(cfg *costmap.EnvConfig, connectivity int) (*environment.Nav2D, error) {
	env, err := environment.NewNav2D(connectivity)
	if err != nil {
		return nil, err
	}
	blank, err := costmap.New(cfg.Map.Width(), cfg.Map.Height(), cfg.Map.ObstacleThreshold())
	if err != nil {
		return nil, err
	}
	if err := env.InitializeFromMap(blank, cfg.Start, cfg.Goal); err != nil {
		return nil, err
	}
	return env, nil
}

// Run navigates cfg with family, writing the solution lines to out.
func (r *Runner) Run(ctx context.Context, cfg *costmap.EnvConfig, family planner.Family, out io.Writer) (navigation.Result,
	*metrics.CycleStats, error) {
	env, err := NewBeliefEnvironment(cfg, r.params.Connectivity)
	if err != nil {
		return navigation.Result{}, nil, err
	}
	a, err := planner.NewAdapter(family, env, r.params.PlannerOptions(), r.logger)
	if err != nil {
		return navigation.Result{}, nil, err
	}

	stats := metrics.NewCycleStats(family.String(), r.metrics)
	loop, err := navigation.New(cfg.Map, env, a, r.params.NavigationParams(), out, stats, r.logger)
	if err != nil {
		return navigation.Result{}, stats, err
	}
	res, err := loop.Run(ctx)
	return res, stats, err
}

// RunBatch runs every job on its own maps and planner, numWorkers at a time (all CPUs when < 1).
// Outcomes are in job order.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job, numWorkers int) []Outcome {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	r.logger.Info("running batch", zap.Int("jobs", len(jobs)), zap.Int("workers", numWorkers))

	return concurrent.Map(ctx, numWorkers, jobs, func(ctx context.Context, job Job) Outcome {
		res, stats, err := r.Run(ctx, job.Scenario.Config, job.Family, nil)
		o := Outcome{
			Scenario: job.Scenario.Name,
			Family:   job.Family,
			Result:   res,
			Err:      err,
		}
		if stats != nil {
			o.Bands = stats.Bands()
			o.PlanningSeconds = stats.TotalPlanningSeconds()
		}
		if err != nil {
			r.logger.Warn("run failed", zap.String("scenario", job.Scenario.Name),
				zap.String("planner", job.Family.String()), zap.Error(err))
		}
		return o
	})
}

// GenerateScenarios n random feasible maps with seeds opts.Seed, opts.Seed+1, ...
func GenerateScenarios(n int, opts costmap.GenerateOptions) ([]Scenario, error) {
	scenarios := make([]Scenario, 0, n)
	base := opts.Seed
	for i := 0; i < n; i++ {
		opts.Seed = base + int64(i)
		cfg, err := costmap.Generate(opts)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, Scenario{
			Name:   fmt.Sprintf("%dx%d-seed%d", opts.Width, opts.Height, opts.Seed),
			Config: cfg,
		})
	}
	return scenarios, nil
}

// CrossJobs every scenario with every family.
func CrossJobs(scenarios []Scenario, families []planner.Family) []Job {
	jobs := make([]Job, 0, len(scenarios)*len(families))
	for _, s := range scenarios {
		for _, f := range families {
			jobs = append(jobs, Job{Scenario: s, Family: f})
		}
	}
	return jobs
}
