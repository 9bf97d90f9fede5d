package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/metrics"
	"github.com/lintang-b-s/gridnav/pkg/navigation"
	"github.com/lintang-b-s/gridnav/pkg/planner"
	"github.com/lintang-b-s/gridnav/pkg/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	metricsAddr string

	benchCmd = &cobra.Command{
		Use:   "bench <env.cfg>",
		Short: "Navigates one environment with every planner concurrently and compares them",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
)

func init() {
	benchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve prometheus metrics on this address until interrupted, e.g. :9090")
}

type benchRow struct {
	family planner.Family
	result navigation.Result
	stats  *metrics.CycleStats
	err    error
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := costmap.ReadEnvConfig(args[0])
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	pm, err := metrics.NewPlanningMetrics(reg)
	if err != nil {
		return err
	}
	var srv *http.Server
	if metricsAddr != "" {
		srv = serveMetrics(reg, metricsAddr)
	}

	runner := simulation.NewRunner(params, pm, log)
	families := planner.Families()
	rows := make([]benchRow, len(families))

	g, ctx := errgroup.WithContext(cmd.Context())
	for i, family := range families {
		i, family := i, family
		g.Go(func() error {
			var sol bytes.Buffer
			res, stats, err := runner.Run(ctx, cfg, family, &sol)
			rows[i] = benchRow{family: family, result: res, stats: stats, err: err}
			// one planner failing does not stop the others
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "planner\tgoal\tcycles\tplanning s\t>1s\t>0.5s\t>0.1s\t>0.05s\t<=0.05s\terror")
	for _, r := range rows {
		var b metrics.Bands
		total := 0.0
		if r.stats != nil {
			b = r.stats.Bands()
			total = r.stats.TotalPlanningSeconds()
		}
		errMsg := ""
		if r.err != nil {
			errMsg = r.err.Error()
		}
		fmt.Fprintf(tw, "%s\t%t\t%d\t%.5f\t%d\t%d\t%d\t%d\t%d\t%s\n", r.family, r.result.GoalReached, r.result.Cycles,
			total, b.Over1, b.Over05, b.Over01, b.Over005, b.Below005, errMsg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if srv != nil {
		log.Info("serving metrics until interrupted", zap.String("addr", metricsAddr))
		<-cmd.Context().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

// metricsHandler routes GET /metrics to the registry, behind CORS so browser dashboards can poll it.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	})
	return alice.New(corsHandler.Handler).Then(router)
}

func serveMetrics(reg *prometheus.Registry, addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
