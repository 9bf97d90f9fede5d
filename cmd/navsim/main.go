package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lintang-b-s/gridnav/pkg/config"
	"github.com/lintang-b-s/gridnav/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configFile string

	v      = viper.New()
	params config.RunParams
	log    *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "navsim",
		Short: "Simulates a robot navigating a partially known 2D grid with incremental and anytime planners",
		Long: `navsim reveals the true map to the robot only within its sensing window, corrects the
robot's belief map and replans under a fixed time budget every cycle until the goal is reached.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			params, err = config.Load(v, configFile)
			if err != nil {
				return err
			}
			log, err = logger.NewWithLevel(params.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./data/config.yaml if present)")
	flags.String("planner", "", "planner: arastar, adstar, rstar or anastar")
	flags.Float64("time-budget", 0, "planning time budget per cycle, in seconds")
	flags.Int("radius", 0, "sensing window radius, in cells")
	flags.Int("goal-threshold", 0, "goal tolerance, in cells")
	flags.Float64("eps", 0, "initial epsilon of the anytime planners")
	flags.Bool("first-solution", false, "stop every replan at the first solution")
	flags.Int64("seed", 0, "seed of the randomized planners")
	flags.Int("max-cycles", 0, "give up after this many cycles, 0 for no limit")
	flags.Int("connectivity", 0, "8 or 16")
	flags.String("log-level", "", "debug, info, warn or error")

	bindFlag(config.KeyPlanner, "planner")
	bindFlag(config.KeyTimeBudgetSeconds, "time-budget")
	bindFlag(config.KeySensingRadius, "radius")
	bindFlag(config.KeyGoalThreshold, "goal-threshold")
	bindFlag(config.KeyInitialEpsilon, "eps")
	bindFlag(config.KeyStopAtFirstSolution, "first-solution")
	bindFlag(config.KeySeed, "seed")
	bindFlag(config.KeyMaxCycles, "max-cycles")
	bindFlag(config.KeyConnectivity, "connectivity")
	bindFlag(config.KeyLogLevel, "log-level")

	rootCmd.AddCommand(runCmd, benchCmd, sweepCmd, genmapCmd)
}

// bindFlag binds a persistent flag to a viper key. Flag defaults are zero values, viper only
// takes the flag when it was set on the command line.
func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
